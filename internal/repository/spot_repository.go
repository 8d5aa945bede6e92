package repository // repository defines data access for parking spots

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Spot status values, stored as single characters in the database.
const (
	SpotAvailable = "A"
	SpotOccupied  = "O"
)

// Spot represents an individually allocatable unit of parking capacity.
// A spot belongs to exactly one lot for its lifetime.  Status is 'A'
// (Available) or 'O' (Occupied); it is only ever flipped inside the
// allocate and release transactions, so it can never drift from the
// reservation ledger: there is no direct "set status" operation exposed
// to callers.
type Spot struct {
	ID        uint64
	LotID     uint64
	Status    string
	CreatedAt time.Time
}

// LotSnapshot is the live occupancy picture of one lot: counts plus the
// per-spot states, in stable creation order.  Dashboards and the lot map
// view consume this.
type LotSnapshot struct {
	LotID     uint64 `json:"lot_id"`
	Capacity  uint32 `json:"capacity"`
	Available uint32 `json:"available"`
	Occupied  uint32 `json:"occupied"`
	Spots     []SpotState `json:"spots"`
}

// SpotState is one entry of a snapshot.
type SpotState struct {
	SpotID   uint64 `json:"spot_id"`
	Occupied bool   `json:"occupied"`
}

// SpotRepo encapsulates database operations for parking spots.  All
// mutations happen through the ...Tx methods inside an allocation or
// release transaction; reads are plain queries.
type SpotRepo struct {
	db *sql.DB
}

// NewSpotRepo constructs a SpotRepo given a DB handle.
func NewSpotRepo(db *sql.DB) *SpotRepo {
	return &SpotRepo{db: db}
}

// ListByLot retrieves all spots of a lot ordered by id, i.e. stable
// creation order.
func (r *SpotRepo) ListByLot(ctx context.Context, lotID uint64) ([]Spot, error) {
	const q = `SELECT id, lot_id, status, created_at
	           FROM parking_spots
	           WHERE lot_id = ?
	           ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Spot, 0)
	for rows.Next() {
		var s Spot
		if err := rows.Scan(&s.ID, &s.LotID, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountAvailable returns the number of currently Available spots in a lot.
func (r *SpotRepo) CountAvailable(ctx context.Context, lotID uint64) (uint32, error) {
	var n uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM parking_spots WHERE lot_id = ? AND status = 'A'`, lotID).Scan(&n)
	return n, err
}

// Snapshot assembles the live occupancy picture of a lot: counts plus the
// ordered per-spot states.  The caller is expected to have verified that
// the lot exists.
func (r *SpotRepo) Snapshot(ctx context.Context, lotID uint64) (*LotSnapshot, error) {
	spots, err := r.ListByLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	snap := &LotSnapshot{LotID: lotID, Spots: make([]SpotState, 0, len(spots))}
	for _, s := range spots {
		occupied := s.Status == SpotOccupied
		if occupied {
			snap.Occupied++
		} else {
			snap.Available++
		}
		snap.Spots = append(snap.Spots, SpotState{SpotID: s.ID, Occupied: occupied})
	}
	snap.Capacity = snap.Available + snap.Occupied
	return snap, nil
}

// ClaimLowestAvailableTx selects the Available spot with the lowest id in
// the given lot, locks it, and marks it Occupied, all within the caller's
// transaction.  The FOR UPDATE lock is what serializes concurrent
// allocations: a second transaction racing for the same spot blocks on the
// row lock and, once it proceeds, no longer sees the spot as Available.
// Returns ErrNoAvailableSpot when the lot is full.
func (r *SpotRepo) ClaimLowestAvailableTx(ctx context.Context, tx *sql.Tx, lotID uint64) (uint64, error) {
	var spotID uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM parking_spots WHERE lot_id = ? AND status = 'A' ORDER BY id LIMIT 1 FOR UPDATE`,
		lotID).Scan(&spotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoAvailableSpot
		}
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE parking_spots SET status = 'O' WHERE id = ? AND status = 'A'`, spotID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// The row lock makes this unreachable in practice; kept as a guard
		// so a claim can never silently succeed without flipping the state.
		return 0, ErrNoAvailableSpot
	}
	return spotID, nil
}

// MarkAvailableTx flips an Occupied spot back to Available within the
// caller's transaction.  Used by release only; an open reservation implies
// the spot exists and is Occupied, so zero affected rows means the ledger
// and the inventory have drifted apart and the transaction must not commit.
func (r *SpotRepo) MarkAvailableTx(ctx context.Context, tx *sql.Tx, spotID uint64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE parking_spots SET status = 'A' WHERE id = ? AND status = 'O'`, spotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSpotNotFound
	}
	return nil
}
