// Package engine implements the spot allocation and reservation lifecycle:
// claiming one available spot per booking, and closing reservations with a
// computed cost while freeing their spot.  Each operation is one database
// transaction; the transactional store is the locking boundary, so the
// guarantees hold across processes, not just goroutines.  The HTTP layer is
// a thin shell over this package.
package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/parking-lot-reservation/internal/repository"
)

// Engine bundles the repositories involved in the booking lifecycle.  Only
// the engine flips spot occupancy and closes reservations; the lot registry
// manages lot and spot existence but never occupancy state.
type Engine struct {
	db    *sql.DB
	lots  *repository.LotRepo
	spots *repository.SpotRepo
	res   *repository.ReservationRepo
}

// New constructs an Engine.  All dependencies must be non-nil.
func New(db *sql.DB, lots *repository.LotRepo, spots *repository.SpotRepo, res *repository.ReservationRepo) *Engine {
	if db == nil || lots == nil || spots == nil || res == nil {
		panic("nil dependency passed to engine.New")
	}
	return &Engine{db: db, lots: lots, spots: spots, res: res}
}

// Allocate atomically claims one available spot in the lot for the user and
// opens a reservation starting at start (zero value means now).  The spot
// with the lowest id is chosen for determinism.  Returns
// repository.ErrLotNotFound when the lot does not exist and
// repository.ErrNoAvailableSpot when the lot is full.  On any failure no
// state changes: there is no partial claim and no orphan reservation.
func (e *Engine) Allocate(ctx context.Context, lotID, userID uint64, start time.Time) (*repository.Reservation, error) {
	if start.IsZero() {
		start = time.Now().UTC()
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Shared lock on the lot row: concurrent allocations proceed, but a
	// racing delete (which takes FOR UPDATE) either waits or has already
	// removed the lot, so "lot missing" and "lot full" stay exact.
	var exists uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM parking_lots WHERE id = ? LOCK IN SHARE MODE`, lotID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrLotNotFound
		}
		return nil, err
	}

	spotID, err := e.spots.ClaimLowestAvailableTx(ctx, tx, lotID)
	if err != nil {
		return nil, err
	}

	res := &repository.Reservation{
		SpotID:           spotID,
		UserID:           userID,
		ParkingTimestamp: start.UTC().Truncate(time.Second),
	}
	if err := e.res.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Release closes an open reservation: it sets the leaving timestamp,
// computes the cost from the owning lot's hourly rate, and frees the spot,
// all in one transaction.  end's zero value means now.  Returns
// repository.ErrReservationNotFound, ErrNotOwner when userID is not the
// reservation's user, ErrAlreadyClosed on a second release, and
// ErrInvalidInterval when end precedes the reservation's start.
func (e *Engine) Release(ctx context.Context, reservationID, userID uint64, end time.Time) (*repository.Reservation, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	end = end.UTC().Truncate(time.Second)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := e.res.GetForUpdateTx(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrNotOwner
	}
	if res.LeavingTimestamp != nil {
		return nil, repository.ErrAlreadyClosed
	}
	if end.Before(res.ParkingTimestamp) {
		return nil, repository.ErrInvalidInterval
	}

	rate, err := e.lots.RateBySpotTx(ctx, tx, res.SpotID)
	if err != nil {
		return nil, err
	}
	cost := Cost(res.ParkingTimestamp, end, rate)

	if err := e.res.CloseTx(ctx, tx, reservationID, end, cost); err != nil {
		return nil, err
	}
	if err := e.spots.MarkAvailableTx(ctx, tx, res.SpotID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	res.LeavingTimestamp = &end
	res.ParkingCost = &cost
	return res, nil
}
