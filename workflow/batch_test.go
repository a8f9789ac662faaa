package workflow

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/tracking_backend/models"
)

func TestAllDispatched(t *testing.T) {
	ok := []models.Status{
		models.StatusDispatchedToFactory,
		models.StatusReceivedAtFactory,
		models.StatusReturnedFromFactory,
		models.StatusReceivedAtShop,
		models.StatusAddedToStock,
		models.StatusHandedToDelivery,
		models.StatusDeliveredToCustomer,
	}
	if !AllDispatched(ok) {
		t.Fatal("every at-or-past-dispatch status should pass")
	}

	for _, bad := range []models.Status{
		models.StatusPurchased,
		models.StatusPackedReady,
		models.StatusOnHold,
		models.StatusCancelled,
	} {
		if AllDispatched(append(append([]models.Status{}, ok...), bad)) {
			t.Fatalf("member in %s should block dispatch", bad)
		}
	}
}

func TestAllReturned(t *testing.T) {
	ok := []models.Status{
		models.StatusReceivedAtShop,
		models.StatusAddedToStock,
		models.StatusHandedToDelivery,
		models.StatusDeliveredToCustomer,
	}
	if !AllReturned(ok) {
		t.Fatal("every shop-side-or-later status should pass")
	}

	for _, bad := range []models.Status{
		models.StatusPurchased,
		models.StatusPackedReady,
		models.StatusDispatchedToFactory,
		models.StatusReceivedAtFactory,
		models.StatusReturnedFromFactory,
		models.StatusOnHold,
		models.StatusCancelled,
	} {
		if AllReturned(append(append([]models.Status{}, ok...), bad)) {
			t.Fatalf("member in %s should block close", bad)
		}
	}
}

func TestAllDispatchedEmpty(t *testing.T) {
	// An empty member list vacuously passes; DispatchBatch guards emptiness
	// separately with ErrBatchEmpty.
	if !AllDispatched(nil) {
		t.Fatal("empty list should pass the status gate")
	}
	if !AllReturned(nil) {
		t.Fatal("empty list should pass the status gate")
	}
}

func TestBatchCodeFor(t *testing.T) {
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)

	if got := BatchCodeFor(2026, 3, now); got != "BATCH-2026-03" {
		t.Fatalf("got %s", got)
	}
	if got := BatchCodeFor(0, 0, now); got != "BATCH-2026-03" {
		t.Fatalf("defaults should come from now, got %s", got)
	}
	if got := BatchCodeFor(2025, 11, now); got != "BATCH-2025-11" {
		t.Fatalf("got %s", got)
	}
	if BatchCodeFor(2026, 3, now) != BatchCodeFor(0, 0, now) {
		t.Fatal("same period must derive the same code")
	}
}

// fakeBatchTable mimics the unique batch_code index: the first writer of a
// code wins and later writers resolve to the existing row, the same way
// CreateBatch re-reads after a duplicate-key error.
type fakeBatchTable struct {
	mu   sync.Mutex
	rows map[string]int
	next int
}

func (f *fakeBatchTable) createOrGet(code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.rows[code]; ok {
		return id
	}
	f.next++
	f.rows[code] = f.next
	return f.next
}

func TestBatchCreationIdempotentPerPeriod(t *testing.T) {
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	table := &fakeBatchTable{rows: map[string]int{}}

	var wg sync.WaitGroup
	ids := make([]int, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = table.createOrGet(BatchCodeFor(2026, 3, now))
			table.createOrGet(BatchCodeFor(2026, 4, now))
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("creator %d got batch %d, want %d", i, id, ids[0])
		}
	}
	if len(table.rows) != 2 {
		t.Fatalf("expected one batch per period, got %d rows", len(table.rows))
	}
}
