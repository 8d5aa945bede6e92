package repository // repository holds data access logic for domain entities

import (
	"context"      // context is used to manage deadlines and cancellation
	"database/sql" // sql provides DB primitives
	"errors"
	"strings"
	"time"
)

// Lot represents a parking lot: a named location owning a fixed set of
// spots billed at one hourly rate.  Capacity equals the number of spots
// created with the lot and never changes afterwards; the only way spot
// count shrinks is deleting the whole lot.
type Lot struct {
	ID         uint64
	Name       string  // display name, e.g. "Downtown Mall Parking"
	HourlyRate float64 // positive; price per started hour
	Address    string
	PinCode    string // postal code
	Capacity   uint32 // number of spots owned by this lot
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LotAvailability pairs a lot with its live availability counts.  It is
// produced by a single aggregate query so listings never iterate spots in
// process.
type LotAvailability struct {
	Lot
	AvailableSpots uint32
	OccupiedSpots  uint32
}

// LotSummary carries the reporting aggregates for one lot: total revenue
// from closed reservations and the number of bookings ever made.  Both
// figures come from SUM/COUNT queries against the ledger.
type LotSummary struct {
	LotID        uint64  `json:"lot_id"`
	LotName      string  `json:"lot_name"`
	Revenue      float64 `json:"revenue"`
	BookingCount uint64  `json:"booking_count"`
}

// DashboardStats aggregates system-wide numbers for the admin dashboard.
type DashboardStats struct {
	TotalLots     uint64  `json:"total_lots"`
	TotalSpots    uint64  `json:"total_spots"`
	OccupiedSpots uint64  `json:"occupied_spots"`
	TotalUsers    uint64  `json:"total_users"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// LotRepo provides methods to create, query, update and delete parking
// lots.  Creation and deletion are multi-statement atomic units (lot plus
// its spots), so those methods manage their own transactions.
type LotRepo struct {
	db *sql.DB
}

// NewLotRepo constructs a LotRepo with the given DB handle.
func NewLotRepo(db *sql.DB) *LotRepo {
	return &LotRepo{db: db}
}

// DB exposes the underlying handle so callers can open transactions that
// span lots, spots and reservations.
func (r *LotRepo) DB() *sql.DB { return r.db }

// Create validates and inserts a new lot together with its spots.  Exactly
// Capacity spot rows are created, all Available, inside one transaction: a
// failure partway leaves no half-initialized lot behind.  On success the
// lot's ID and timestamps are populated.
func (r *LotRepo) Create(ctx context.Context, l *Lot) error {
	if strings.TrimSpace(l.Name) == "" || strings.TrimSpace(l.Address) == "" ||
		strings.TrimSpace(l.PinCode) == "" || l.HourlyRate <= 0 || l.Capacity == 0 {
		return ErrInvalidInput
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_lots (name, hourly_rate, address, pin_code, capacity) VALUES (?, ?, ?, ?, ?)`,
		l.Name, l.HourlyRate, l.Address, l.PinCode, l.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)

	// Bulk insert the spots in a single statement, one placeholder pair per
	// spot.
	query := `INSERT INTO parking_spots (lot_id, status) VALUES `
	args := make([]interface{}, 0, l.Capacity*2)
	for i := uint32(0); i < l.Capacity; i++ {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, l.ID, SpotAvailable)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	// Read the row back so timestamps and defaults are populated.
	if err := tx.QueryRowContext(ctx,
		`SELECT id, name, hourly_rate, address, pin_code, capacity, created_at, updated_at
		 FROM parking_lots WHERE id = ?`, l.ID).
		Scan(&l.ID, &l.Name, &l.HourlyRate, &l.Address, &l.PinCode, &l.Capacity, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID retrieves a lot by its ID.  It returns ErrLotNotFound when no row
// is found.
func (r *LotRepo) GetByID(ctx context.Context, id uint64) (*Lot, error) {
	const q = `SELECT id, name, hourly_rate, address, pin_code, capacity, created_at, updated_at
	           FROM parking_lots WHERE id = ?`
	var l Lot
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&l.ID, &l.Name, &l.HourlyRate, &l.Address, &l.PinCode, &l.Capacity, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLotNotFound
		}
		return nil, err
	}
	return &l, nil
}

// List returns all lots together with their live availability counts in one
// aggregate query, ordered by id for stable output.
func (r *LotRepo) List(ctx context.Context) ([]LotAvailability, error) {
	const q = `SELECT l.id, l.name, l.hourly_rate, l.address, l.pin_code, l.capacity, l.created_at, l.updated_at,
	                  COALESCE(SUM(s.status = 'A'), 0), COALESCE(SUM(s.status = 'O'), 0)
	           FROM parking_lots l
	           LEFT JOIN parking_spots s ON s.lot_id = l.id
	           GROUP BY l.id
	           ORDER BY l.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]LotAvailability, 0)
	for rows.Next() {
		var la LotAvailability
		if err := rows.Scan(
			&la.ID, &la.Name, &la.HourlyRate, &la.Address, &la.PinCode, &la.Capacity,
			&la.CreatedAt, &la.UpdatedAt, &la.AvailableSpots, &la.OccupiedSpots,
		); err != nil {
			return nil, err
		}
		out = append(out, la)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update changes a lot's mutable metadata: name, rate, address and pin
// code.  Capacity and existing spots are never touched here.  Returns
// ErrLotNotFound when the lot does not exist and ErrInvalidInput when the
// new values are out of range.
func (r *LotRepo) Update(ctx context.Context, l *Lot) error {
	if strings.TrimSpace(l.Name) == "" || strings.TrimSpace(l.Address) == "" ||
		strings.TrimSpace(l.PinCode) == "" || l.HourlyRate <= 0 {
		return ErrInvalidInput
	}
	if _, err := r.GetByID(ctx, l.ID); err != nil {
		return err
	}
	const q = `UPDATE parking_lots
	           SET name = ?, hourly_rate = ?, address = ?, pin_code = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, l.Name, l.HourlyRate, l.Address, l.PinCode, l.ID); err != nil {
		return err
	}
	return nil
}

// Delete removes a lot and all of its spots, but only when none of the
// spots is occupied.  The spot rows are locked first so a booking racing
// against the deletion either completes before the check or finds the lot
// gone.  Closed reservations referencing the deleted spots are retained for
// audit; open reservations cannot exist here because an open reservation
// implies an occupied spot.
func (r *LotRepo) Delete(ctx context.Context, lotID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM parking_lots WHERE id = ? FOR UPDATE`, lotID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLotNotFound
		}
		return err
	}

	var occupied uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_spots WHERE lot_id = ? AND status = 'O' FOR UPDATE`,
		lotID).Scan(&occupied); err != nil {
		return err
	}
	if occupied > 0 {
		return ErrLotNotEmpty
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_spots WHERE lot_id = ?`, lotID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM parking_lots WHERE id = ?`, lotID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RateBySpotTx returns the hourly rate of the lot owning the given spot,
// within a transaction.  Used by release to cost a reservation; the spot is
// guaranteed to exist while its reservation is open, since lot deletion is
// blocked by occupied spots.
func (r *LotRepo) RateBySpotTx(ctx context.Context, tx *sql.Tx, spotID uint64) (float64, error) {
	const q = `SELECT l.hourly_rate
	           FROM parking_lots l
	           JOIN parking_spots s ON s.lot_id = l.id
	           WHERE s.id = ?`
	var rate float64
	if err := tx.QueryRowContext(ctx, q, spotID).Scan(&rate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSpotNotFound
		}
		return 0, err
	}
	return rate, nil
}

// BySpot returns the lot owning the given spot.  Returns ErrSpotNotFound
// when the spot does not exist.
func (r *LotRepo) BySpot(ctx context.Context, spotID uint64) (*Lot, error) {
	const q = `SELECT l.id, l.name, l.hourly_rate, l.address, l.pin_code, l.capacity, l.created_at, l.updated_at
	           FROM parking_lots l
	           JOIN parking_spots s ON s.lot_id = l.id
	           WHERE s.id = ?`
	var l Lot
	err := r.db.QueryRowContext(ctx, q, spotID).
		Scan(&l.ID, &l.Name, &l.HourlyRate, &l.Address, &l.PinCode, &l.Capacity, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpotNotFound
		}
		return nil, err
	}
	return &l, nil
}

// Summary returns the revenue and booking count for one lot, computed with
// aggregate queries against the reservation ledger.  The join covers every
// reservation ever made on the lot's spots; spot rows only disappear when
// the whole lot does, and then there is no lot to summarize.
func (r *LotRepo) Summary(ctx context.Context, lotID uint64) (*LotSummary, error) {
	lot, err := r.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	const q = `SELECT COALESCE(SUM(res.parking_cost), 0), COUNT(*)
	           FROM reservations res
	           JOIN parking_spots s ON s.id = res.spot_id
	           WHERE s.lot_id = ?`
	sum := LotSummary{LotID: lot.ID, LotName: lot.Name}
	if err := r.db.QueryRowContext(ctx, q, lotID).Scan(&sum.Revenue, &sum.BookingCount); err != nil {
		return nil, err
	}
	return &sum, nil
}

// Dashboard returns system-wide totals for the admin overview.  Each figure
// is one aggregate query; nothing is accumulated in process.
func (r *LotRepo) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var st DashboardStats
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_lots`).Scan(&st.TotalLots); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(status = 'O'), 0) FROM parking_spots`).
		Scan(&st.TotalSpots, &st.OccupiedSpots); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'USER'`).Scan(&st.TotalUsers); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(parking_cost), 0) FROM reservations WHERE leaving_timestamp IS NOT NULL`).
		Scan(&st.TotalRevenue); err != nil {
		return nil, err
	}
	return &st, nil
}
