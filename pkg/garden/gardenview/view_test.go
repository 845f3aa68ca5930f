package gardenview_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardencache"
	"github.com/Abraxas-365/verdant/pkg/garden/gardeninfra"
	"github.com/Abraxas-365/verdant/pkg/garden/gardenview"
)

var (
	zed = garden.Plant{ID: "a", Name: "Zed", Zone: 9}
	ann = garden.Plant{ID: "b", Name: "Ann", Zone: 9}
	mid = garden.Plant{ID: "c", Name: "Mid", Zone: 7}
)

func ids(p garden.Projection) []string {
	out := make([]string, len(p))
	for i, plant := range p {
		out[i] = plant.ID
	}
	return out
}

func sameIDs(got garden.Projection, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].ID != want[i] {
			return false
		}
	}
	return true
}

func recv(t *testing.T, ch <-chan garden.Projection) garden.Projection {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("projection stream closed unexpectedly")
		}
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a projection")
		return nil
	}
}

func expectSilence(t *testing.T, ch <-chan garden.Projection, d time.Duration) {
	t.Helper()
	select {
	case p := <-ch:
		t.Fatalf("unexpected projection %v", ids(p))
	case <-time.After(d):
	}
}

// End to end: the first projection is alphabetical because the custom order
// is still loading; once the fetch succeeds a second projection with the
// custom order arrives, without any new store write.
func TestWatch_ProjectsBeforeAndAfterOrderFetch(t *testing.T) {
	store := gardeninfra.NewMemoryStore(zed, ann, mid)

	gate := make(chan struct{})
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		<-gate
		return garden.PlantOrder{"c", "a"}, nil
	}, garden.PlantOrder{})

	pipeline := gardenview.NewWithSettle(store, cache, 10*time.Millisecond)

	ch, cancel := pipeline.Watch(context.Background())
	defer cancel()

	first := recv(t, ch)
	if !sameIDs(first, "b", "c", "a") { // Ann, Mid, Zed
		t.Fatalf("first projection %v, want alphabetical [b c a]", ids(first))
	}

	close(gate)

	second := recv(t, ch)
	if !sameIDs(second, "c", "a", "b") {
		t.Fatalf("projection after order fetch %v, want [c a b]", ids(second))
	}
}

// A store change recomputes the projection with the already-cached order.
func TestWatch_ReactsToStoreChanges(t *testing.T) {
	store := gardeninfra.NewMemoryStore(ann)
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		return nil, nil
	}, garden.PlantOrder{})
	pipeline := gardenview.NewWithSettle(store, cache, 10*time.Millisecond)

	ch, cancel := pipeline.Watch(context.Background())
	defer cancel()

	first := recv(t, ch)
	if !sameIDs(first, "b") {
		t.Fatalf("first projection %v, want [b]", ids(first))
	}

	if err := store.UpsertAll(context.Background(), []garden.Plant{zed}); err != nil {
		t.Fatal(err)
	}

	for {
		next := recv(t, ch)
		if sameIDs(next, "b", "a") { // Ann then Zed
			return
		}
	}
}

// Conflation: with an absent consumer, intermediate projections are dropped
// and only the newest is pending.
func TestWatch_ConflatesDelivery(t *testing.T) {
	store := gardeninfra.NewMemoryStore(ann)
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		select {} // never completes; irrelevant here
	}, garden.PlantOrder{})

	// Settle far beyond the test so the order fetch never interferes.
	pipeline := gardenview.NewWithSettle(store, cache, time.Hour)

	ch, cancel := pipeline.Watch(context.Background())
	defer cancel()

	_ = recv(t, ch) // initial snapshot

	// Three rapid store changes while the consumer is not reading.
	for _, p := range []garden.Plant{zed, mid, {ID: "d", Name: "New", Zone: 9}} {
		if err := store.UpsertAll(context.Background(), []garden.Plant{p}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(30 * time.Millisecond)
	}

	latest := recv(t, ch)
	if !sameIDs(latest, "b", "c", "d", "a") { // Ann, Mid, New, Zed
		t.Fatalf("pending projection %v, want the newest state [b c d a]", ids(latest))
	}

	// At most one value was buffered; no stale projection may follow.
	expectSilence(t, ch, 100*time.Millisecond)
}

// Rapid successive watches share one debounced background fetch.
func TestWatch_DebouncedOrderKick(t *testing.T) {
	store := gardeninfra.NewMemoryStore(ann)
	var calls atomic.Int32
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		calls.Add(1)
		return nil, nil
	}, garden.PlantOrder{})
	pipeline := gardenview.NewWithSettle(store, cache, 50*time.Millisecond)

	for i := 0; i < 3; i++ {
		_, cancel := pipeline.Watch(context.Background())
		defer cancel()
	}

	time.Sleep(250 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 producer invocation for a burst of watches, got %d", got)
	}
}

// The zone view recomputes on primary-stream updates only: an order-only
// completion produces no delivery for an already-subscribed zone view.
func TestWatchZone_IgnoresOrderOnlyChanges(t *testing.T) {
	store := gardeninfra.NewMemoryStore(zed, ann, mid)
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		return garden.PlantOrder{"a"}, nil
	}, garden.PlantOrder{})
	pipeline := gardenview.NewWithSettle(store, cache, time.Hour)

	ch, cancel := pipeline.WatchZone(context.Background(), 9)
	defer cancel()

	first := recv(t, ch)
	if !sameIDs(first, "a", "b") { // Zed by order, then Ann
		t.Fatalf("zone projection %v, want [a b]", ids(first))
	}

	// Standalone order completion, no store change.
	if _, err := cache.GetOrAwait(context.Background()); err != nil {
		t.Fatal(err)
	}
	expectSilence(t, ch, 150*time.Millisecond)

	// A store change for the zone does trigger a recomputation.
	fern := garden.Plant{ID: "f", Name: "Fern", Zone: 9}
	if err := store.UpsertAll(context.Background(), []garden.Plant{fern}); err != nil {
		t.Fatal(err)
	}
	next := recv(t, ch)
	if !sameIDs(next, "a", "b", "f") {
		t.Fatalf("zone projection after upsert %v, want [a b f]", ids(next))
	}
}

// Switch-to-latest: a zone recomputation still awaiting the order is
// discarded when a newer snapshot arrives; only the latest is delivered.
func TestWatchZone_SwitchToLatest(t *testing.T) {
	store := gardeninfra.NewMemoryStore(ann)

	gate := make(chan struct{})
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		<-gate
		return nil, nil
	}, garden.PlantOrder{})
	pipeline := gardenview.NewWithSettle(store, cache, time.Hour)

	ch, cancel := pipeline.WatchZone(context.Background(), 9)
	defer cancel()

	// First snapshot's recomputation is now parked on the order fetch.
	// A second snapshot supersedes it before it can complete.
	time.Sleep(30 * time.Millisecond)
	if err := store.UpsertAll(context.Background(), []garden.Plant{zed}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	close(gate)

	got := recv(t, ch)
	if !sameIDs(got, "b", "a") { // Ann, Zed: the superseding snapshot
		t.Fatalf("delivered projection %v, want the latest snapshot [b a]", ids(got))
	}
	expectSilence(t, ch, 150*time.Millisecond)
}

// Cancelling a watch releases it without disturbing other subscribers or a
// shared in-flight fetch.
func TestWatch_CancelIsIsolated(t *testing.T) {
	store := gardeninfra.NewMemoryStore(ann)
	gate := make(chan struct{})
	cache := gardencache.New(func(ctx context.Context) (garden.PlantOrder, error) {
		<-gate
		return garden.PlantOrder{"a"}, nil
	}, garden.PlantOrder{})
	pipeline := gardenview.NewWithSettle(store, cache, 10*time.Millisecond)

	ch1, cancel1 := pipeline.Watch(context.Background())
	ch2, cancel2 := pipeline.Watch(context.Background())
	defer cancel2()

	_ = recv(t, ch1)
	_ = recv(t, ch2)

	cancel1()

	select {
	case _, ok := <-ch1:
		if ok {
			t.Fatal("cancelled watch still delivering")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled watch channel not closed")
	}

	// The shared fetch completes and still reaches the surviving watch.
	close(gate)
	if err := store.UpsertAll(context.Background(), []garden.Plant{zed}); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-ch2:
			if sameIDs(p, "a", "b") { // custom order applied
				return
			}
		case <-deadline:
			t.Fatal("surviving watch never saw the fetched order applied")
		}
	}
}
