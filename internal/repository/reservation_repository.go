package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Reservation mirrors the reservations table: a time-bounded claim by a
// user on a spot.  LeavingTimestamp and ParkingCost stay NULL while the
// reservation is open; both are set exactly once by release.  At most one
// open reservation exists per spot at any time: that is the invariant the
// allocation transaction enforces.
type Reservation struct {
	ID               uint64
	SpotID           uint64
	UserID           uint64
	ParkingTimestamp time.Time
	LeavingTimestamp *time.Time
	ParkingCost      *float64
}

// ReservationDetail extends a reservation with the lot context needed for
// listings: which lot the spot belongs to and what it charges.  LotID and
// LotName are nullable because history is retained after a lot is deleted.
type ReservationDetail struct {
	Reservation
	LotID   *uint64
	LotName *string
}

// UserSummary carries per-user booking aggregates for the user dashboard.
type UserSummary struct {
	TotalBookings  uint64  `json:"total_bookings"`
	ActiveBookings uint64  `json:"active_bookings"`
	TotalSpent     float64 `json:"total_spent"`
}

// ReservationRepo provides CRUD operations for the reservation ledger.
// Rows are only ever inserted by allocation and closed by release; nothing
// is deleted, so the ledger doubles as the audit history.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// CreateTx inserts a new open reservation within the scope of an existing
// transaction.  It populates the generated ID on the provided record.  The
// caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *Reservation) error {
	const q = `INSERT INTO reservations (spot_id, user_id, parking_timestamp) VALUES (?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.SpotID, res.UserID, res.ParkingTimestamp)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a reservation and locks its row within the caller's
// transaction.  The lock serializes concurrent release attempts on the same
// reservation: the second caller blocks, then observes the closed state and
// gets ErrAlreadyClosed from the engine.  Returns ErrReservationNotFound
// when no row exists.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*Reservation, error) {
	const q = `SELECT id, spot_id, user_id, parking_timestamp, leaving_timestamp, parking_cost
	           FROM reservations WHERE id = ? FOR UPDATE`
	var res Reservation
	var leaving sql.NullTime
	var cost sql.NullFloat64
	err := tx.QueryRowContext(ctx, q, id).
		Scan(&res.ID, &res.SpotID, &res.UserID, &res.ParkingTimestamp, &leaving, &cost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if leaving.Valid {
		t := leaving.Time
		res.LeavingTimestamp = &t
	}
	if cost.Valid {
		c := cost.Float64
		res.ParkingCost = &c
	}
	return &res, nil
}

// CloseTx sets the leaving timestamp and computed cost on an open
// reservation within the caller's transaction.  The WHERE clause insists
// the reservation is still open so a double close can never overwrite the
// first one's cost.
func (r *ReservationRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, leaving time.Time, cost float64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE reservations SET leaving_timestamp = ?, parking_cost = ? WHERE id = ? AND leaving_timestamp IS NULL`,
		leaving, cost, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadyClosed
	}
	return nil
}

// ListByUser returns all reservations of one user, newest first, each with
// its lot context when the lot still exists.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, res.spot_id, res.user_id, res.parking_timestamp, res.leaving_timestamp, res.parking_cost,
	                  l.id, l.name
	           FROM reservations res
	           LEFT JOIN parking_spots s ON s.id = res.spot_id
	           LEFT JOIN parking_lots l ON l.id = s.lot_id
	           WHERE res.user_id = ?
	           ORDER BY res.parking_timestamp DESC, res.id DESC`
	return r.queryDetails(ctx, q, userID)
}

// ListByLot returns all reservations made against a lot's spots, newest
// first.  Used by the admin reporting endpoints.
func (r *ReservationRepo) ListByLot(ctx context.Context, lotID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, res.spot_id, res.user_id, res.parking_timestamp, res.leaving_timestamp, res.parking_cost,
	                  l.id, l.name
	           FROM reservations res
	           JOIN parking_spots s ON s.id = res.spot_id
	           JOIN parking_lots l ON l.id = s.lot_id
	           WHERE s.lot_id = ?
	           ORDER BY res.parking_timestamp DESC, res.id DESC`
	return r.queryDetails(ctx, q, lotID)
}

func (r *ReservationRepo) queryDetails(ctx context.Context, q string, arg interface{}) ([]ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var leaving sql.NullTime
		var cost sql.NullFloat64
		var lotID sql.NullInt64
		var lotName sql.NullString
		if err := rows.Scan(
			&d.ID, &d.SpotID, &d.UserID, &d.ParkingTimestamp, &leaving, &cost,
			&lotID, &lotName,
		); err != nil {
			return nil, err
		}
		if leaving.Valid {
			t := leaving.Time
			d.LeavingTimestamp = &t
		}
		if cost.Valid {
			c := cost.Float64
			d.ParkingCost = &c
		}
		if lotID.Valid {
			id := uint64(lotID.Int64)
			d.LotID = &id
		}
		if lotName.Valid {
			n := lotName.String
			d.LotName = &n
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryByUser returns booking counts and total spend for one user from
// aggregate queries; the spend sums only closed reservations.
func (r *ReservationRepo) SummaryByUser(ctx context.Context, userID uint64) (*UserSummary, error) {
	const q = `SELECT COUNT(*),
	                  COALESCE(SUM(leaving_timestamp IS NULL), 0),
	                  COALESCE(SUM(CASE WHEN leaving_timestamp IS NOT NULL THEN parking_cost ELSE 0 END), 0)
	           FROM reservations
	           WHERE user_id = ?`
	var s UserSummary
	if err := r.db.QueryRowContext(ctx, q, userID).
		Scan(&s.TotalBookings, &s.ActiveBookings, &s.TotalSpent); err != nil {
		return nil, err
	}
	return &s, nil
}

// OpenBySpotTx reports whether an open reservation exists for a spot,
// within a transaction.  Exposed for consistency checks.
func (r *ReservationRepo) OpenBySpotTx(ctx context.Context, tx *sql.Tx, spotID uint64) (bool, error) {
	var n uint64
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE spot_id = ? AND leaving_timestamp IS NULL`,
		spotID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
