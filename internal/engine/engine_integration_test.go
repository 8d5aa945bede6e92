package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/iliyamo/parking-lot-reservation/internal/database"
	"github.com/iliyamo/parking-lot-reservation/internal/repository"
)

// openTestDB connects to the database named by the TEST_DB_* environment
// variables, or skips the test when they are unset.  schema.sql at the repo
// root must already be applied; each test creates its own lot so tests do
// not interfere.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set; skipping integration test")
	}
	user := os.Getenv("TEST_DB_USER")
	pass := os.Getenv("TEST_DB_PASS")
	port := os.Getenv("TEST_DB_PORT")
	if port == "" {
		port = "3306"
	}
	name := os.Getenv("TEST_DB_NAME")
	if name == "" {
		name = "parking_test"
	}
	db, err := database.Open(user, pass, host, port, name)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestEngine(db *sql.DB) (*Engine, *repository.LotRepo, *repository.SpotRepo, *repository.ReservationRepo) {
	lots := repository.NewLotRepo(db)
	spots := repository.NewSpotRepo(db)
	res := repository.NewReservationRepo(db)
	return New(db, lots, spots, res), lots, spots, res
}

func createTestUser(t *testing.T, db *sql.DB, name string) uint64 {
	t.Helper()
	r, err := db.Exec(
		"INSERT INTO users (username, password_hash, role) VALUES (?,?,?)",
		fmt.Sprintf("%s-%d", name, time.Now().UnixNano()), "x", "USER")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	id, _ := r.LastInsertId()
	return uint64(id)
}

func createTestLot(t *testing.T, lots *repository.LotRepo, capacity uint32, rate float64) *repository.Lot {
	t.Helper()
	lot := &repository.Lot{
		Name:       fmt.Sprintf("test-lot-%d", time.Now().UnixNano()),
		HourlyRate: rate,
		Address:    "1 Test Street",
		PinCode:    "00001",
		Capacity:   capacity,
	}
	if err := lots.Create(context.Background(), lot); err != nil {
		t.Fatalf("create test lot: %v", err)
	}
	return lot
}

func TestAllocateReleaseLifecycle(t *testing.T) {
	db := openTestDB(t)
	eng, lots, spots, _ := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 3, 50)
	userID := createTestUser(t, db, "lifecycle")

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	res, err := eng.Allocate(ctx, lot.ID, userID, start)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if res.ID == 0 {
		t.Fatal("Allocate returned zero reservation id")
	}
	if res.LeavingTimestamp != nil || res.ParkingCost != nil {
		t.Error("new reservation must have NULL leaving_timestamp and parking_cost")
	}

	// Lowest-id spot first.
	spotList, err := spots.ListByLot(ctx, lot.ID)
	if err != nil {
		t.Fatalf("ListByLot: %v", err)
	}
	if res.SpotID != spotList[0].ID {
		t.Errorf("Allocate claimed spot %d, want lowest id %d", res.SpotID, spotList[0].ID)
	}
	if spotList[0].Status != repository.SpotOccupied {
		t.Errorf("claimed spot status = %q, want %q", spotList[0].Status, repository.SpotOccupied)
	}

	// 5 minutes at 50/hour bills one full hour.
	end := start.Add(5 * time.Minute)
	closed, err := eng.Release(ctx, res.ID, userID, end)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if closed.ParkingCost == nil || *closed.ParkingCost != 50 {
		t.Errorf("Release cost = %v, want 50", closed.ParkingCost)
	}
	if closed.LeavingTimestamp == nil || !closed.LeavingTimestamp.Equal(end) {
		t.Errorf("Release leaving_timestamp = %v, want %v", closed.LeavingTimestamp, end)
	}

	avail, err := spots.CountAvailable(ctx, lot.ID)
	if err != nil {
		t.Fatalf("CountAvailable: %v", err)
	}
	if avail != lot.Capacity {
		t.Errorf("available after release = %d, want %d", avail, lot.Capacity)
	}
}

func TestAllocateRaceOneSpot(t *testing.T) {
	db := openTestDB(t)
	eng, lots, _, _ := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 1, 10)
	u1 := createTestUser(t, db, "race-a")
	u2 := createTestUser(t, db, "race-b")

	type result struct {
		res *repository.Reservation
		err error
	}
	results := make(chan result, 2)
	for _, uid := range []uint64{u1, u2} {
		go func(uid uint64) {
			r, err := eng.Allocate(ctx, lot.ID, uid, time.Time{})
			results <- result{r, err}
		}(uid)
	}

	var wins, fulls int
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil:
			wins++
		case errors.Is(r.err, repository.ErrNoAvailableSpot):
			fulls++
		default:
			t.Fatalf("unexpected allocate error: %v", r.err)
		}
	}
	if wins != 1 || fulls != 1 {
		t.Errorf("race outcome: %d successes, %d full; want exactly 1 and 1", wins, fulls)
	}
}

func TestReleaseErrors(t *testing.T) {
	db := openTestDB(t)
	eng, lots, _, _ := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 1, 25)
	owner := createTestUser(t, db, "rel-owner")
	other := createTestUser(t, db, "rel-other")

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	res, err := eng.Allocate(ctx, lot.ID, owner, start)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if _, err := eng.Release(ctx, res.ID, other, time.Time{}); !errors.Is(err, repository.ErrNotOwner) {
		t.Errorf("release by non-owner = %v, want ErrNotOwner", err)
	}
	if _, err := eng.Release(ctx, res.ID, owner, start.Add(-time.Hour)); !errors.Is(err, repository.ErrInvalidInterval) {
		t.Errorf("release before start = %v, want ErrInvalidInterval", err)
	}
	if _, err := eng.Release(ctx, res.ID, owner, start.Add(time.Hour)); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := eng.Release(ctx, res.ID, owner, start.Add(2*time.Hour)); !errors.Is(err, repository.ErrAlreadyClosed) {
		t.Errorf("second release = %v, want ErrAlreadyClosed", err)
	}
	if _, err := eng.Release(ctx, res.ID+1_000_000, owner, time.Time{}); !errors.Is(err, repository.ErrReservationNotFound) {
		t.Errorf("release of missing reservation = %v, want ErrReservationNotFound", err)
	}
}

func TestDeleteLotGuard(t *testing.T) {
	db := openTestDB(t)
	eng, lots, _, res := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 1, 30)
	userID := createTestUser(t, db, "del")

	r, err := eng.Allocate(ctx, lot.ID, userID, time.Time{})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// Occupied spot blocks deletion.
	if err := lots.Delete(ctx, lot.ID); !errors.Is(err, repository.ErrLotNotEmpty) {
		t.Errorf("Delete with occupied spot = %v, want ErrLotNotEmpty", err)
	}

	if _, err := eng.Release(ctx, r.ID, userID, time.Time{}); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lots.Delete(ctx, lot.ID); err != nil {
		t.Fatalf("Delete after release: %v", err)
	}
	if _, err := lots.GetByID(ctx, lot.ID); !errors.Is(err, repository.ErrLotNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrLotNotFound", err)
	}
	// A deleted lot reports "lot missing", never "lot full": the locking
	// existence check in Allocate serializes against Delete's row lock.
	if _, err := eng.Allocate(ctx, lot.ID, userID, time.Time{}); !errors.Is(err, repository.ErrLotNotFound) {
		t.Errorf("Allocate on deleted lot = %v, want ErrLotNotFound", err)
	}

	// History outlives the lot.
	details, err := res.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	found := false
	for _, d := range details {
		if d.ID == r.ID {
			found = true
			if d.LotID != nil {
				t.Error("reservation on deleted lot should have nil lot context")
			}
		}
	}
	if !found {
		t.Error("reservation history lost after lot deletion")
	}
}

func TestBookingScenario(t *testing.T) {
	db := openTestDB(t)
	eng, lots, spots, _ := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 2, 10)
	userA := createTestUser(t, db, "scen-a")
	userB := createTestUser(t, db, "scen-b")
	userC := createTestUser(t, db, "scen-c")

	mustAvailable := func(want uint32) {
		t.Helper()
		n, err := spots.CountAvailable(ctx, lot.ID)
		if err != nil {
			t.Fatalf("CountAvailable: %v", err)
		}
		if n != want {
			t.Fatalf("available = %d, want %d", n, want)
		}
		// Capacity invariant: occupied + available always equals capacity.
		snap, err := spots.Snapshot(ctx, lot.ID)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if snap.Available+snap.Occupied != lot.Capacity {
			t.Fatalf("available %d + occupied %d != capacity %d", snap.Available, snap.Occupied, lot.Capacity)
		}
	}

	resA, err := eng.Allocate(ctx, lot.ID, userA, time.Time{})
	if err != nil {
		t.Fatalf("allocate for userA: %v", err)
	}
	mustAvailable(1)

	if _, err := eng.Allocate(ctx, lot.ID, userB, time.Time{}); err != nil {
		t.Fatalf("allocate for userB: %v", err)
	}
	mustAvailable(0)

	if _, err := eng.Allocate(ctx, lot.ID, userC, time.Time{}); !errors.Is(err, repository.ErrNoAvailableSpot) {
		t.Fatalf("allocate for userC on full lot = %v, want ErrNoAvailableSpot", err)
	}

	if _, err := eng.Release(ctx, resA.ID, userA, time.Time{}); err != nil {
		t.Fatalf("release userA: %v", err)
	}
	mustAvailable(1)

	// The freed spot is immediately claimable.
	resC, err := eng.Allocate(ctx, lot.ID, userC, time.Time{})
	if err != nil {
		t.Fatalf("allocate for userC after release: %v", err)
	}
	if resC.SpotID != resA.SpotID {
		t.Errorf("userC claimed spot %d, want freed spot %d", resC.SpotID, resA.SpotID)
	}
	mustAvailable(0)
}

func TestAllocateFullAndMissingLot(t *testing.T) {
	db := openTestDB(t)
	eng, lots, _, _ := newTestEngine(db)
	ctx := context.Background()

	lot := createTestLot(t, lots, 1, 20)
	userID := createTestUser(t, db, "full")

	if _, err := eng.Allocate(ctx, lot.ID, userID, time.Time{}); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if _, err := eng.Allocate(ctx, lot.ID, userID, time.Time{}); !errors.Is(err, repository.ErrNoAvailableSpot) {
		t.Errorf("Allocate on full lot = %v, want ErrNoAvailableSpot", err)
	}
	if _, err := eng.Allocate(ctx, lot.ID+1_000_000, userID, time.Time{}); !errors.Is(err, repository.ErrLotNotFound) {
		t.Errorf("Allocate on missing lot = %v, want ErrLotNotFound", err)
	}

	// An open reservation exists for the claimed spot.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback() }()
	spotRepo := repository.NewSpotRepo(db)
	spotList, err := spotRepo.ListByLot(ctx, lot.ID)
	if err != nil {
		t.Fatalf("ListByLot: %v", err)
	}
	open, err := repository.NewReservationRepo(db).OpenBySpotTx(ctx, tx, spotList[0].ID)
	if err != nil {
		t.Fatalf("OpenBySpotTx: %v", err)
	}
	if !open {
		t.Error("occupied spot has no open reservation in the ledger")
	}
}
