package gardenview

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/verdant/pkg/asyncx"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardencache"
	"github.com/Abraxas-365/verdant/pkg/streamx"
)

// DefaultSettleDelay is how long a burst of new watches is allowed to settle
// before the background order fetch is kicked off. It is a debounce against
// redundant fetch attempts, not a correctness requirement.
const DefaultSettleDelay = 1500 * time.Millisecond

// Pipeline turns the store's raw collection streams and the cached custom
// order into sorted projections.
//
// The full-catalog view (Watch) follows both inputs: a new store snapshot or
// a newly completed order fetch each produce a recomputed projection. The
// zone view (WatchZone) follows only its store stream and merely awaits the
// current order per recomputation; an order-only change does not wake it.
// That asymmetry is inherited from the product behavior and pinned by tests.
type Pipeline struct {
	store garden.PlantStore
	order *gardencache.OnceCache[garden.PlantOrder]

	// kick starts the real order fetch once the subscription burst settles.
	kick func()
}

// New creates a pipeline over store and order using DefaultSettleDelay.
func New(store garden.PlantStore, order *gardencache.OnceCache[garden.PlantOrder]) *Pipeline {
	return NewWithSettle(store, order, DefaultSettleDelay)
}

// NewWithSettle is New with an explicit settling delay.
func NewWithSettle(store garden.PlantStore, order *gardencache.OnceCache[garden.PlantOrder], settle time.Duration) *Pipeline {
	p := &Pipeline{store: store, order: order}
	p.kick = asyncx.Debounced(settle, func() {
		asyncx.Do(func() {
			// Outcome is irrelevant here: completion lands on the order
			// observable, failures settle as the fallback.
			_, _ = order.GetOrAwait(context.Background())
		})
	})
	return p
}

// inputs is the combine-latest state: the most recent value of each source.
type inputs struct {
	plants []garden.Plant
	order  garden.PlantOrder
}

// Watch returns a stream of sorted projections of the full catalog.
//
// The order input starts as the zero order, so the first projection is
// emitted as soon as the store delivers its snapshot, without waiting on the
// network. Sorting runs on a dedicated recompute goroutine, never on the
// goroutine delivering a store or cache update, and both the recompute input
// and the delivery to the consumer are conflated: a slow consumer only ever
// holds back one pending projection and always receives the newest state.
//
// Cancel releases both upstream subscriptions. A shared order fetch in
// flight is unaffected; it completes for the benefit of other waiters.
func (p *Pipeline) Watch(ctx context.Context) (<-chan garden.Projection, context.CancelFunc) {
	plantsCh, cancelPlants := p.store.WatchAll(ctx)
	orderCh, cancelOrder := p.order.Observe()

	pairs := make(chan inputs)
	go func() {
		defer close(pairs)
		var latest inputs
		havePlants := false
		for plantsCh != nil || orderCh != nil {
			select {
			case ps, ok := <-plantsCh:
				if !ok {
					plantsCh = nil
					continue
				}
				latest.plants = ps
				havePlants = true
			case o, ok := <-orderCh:
				if !ok {
					orderCh = nil
					continue
				}
				latest.order = o
			}
			if havePlants {
				pairs <- latest
			}
		}
	}()

	// Recompute worker: serialized, so projections leave in input order, and
	// fed through a conflated channel, so it always sorts the newest state.
	raw := make(chan garden.Projection)
	recompute := streamx.Conflate(pairs)
	go func() {
		defer close(raw)
		for in := range recompute {
			raw <- garden.ApplyOrder(in.plants, in.order)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelPlants()
			cancelOrder()
		})
	}

	p.kick()

	return streamx.Conflate(raw), cancel
}

// computed carries one finished zone recomputation with the generation of
// the snapshot it was computed from.
type computed struct {
	gen  uint64
	proj garden.Projection
}

// WatchZone returns a stream of sorted projections for one grow zone.
//
// Each store snapshot for the zone starts a recomputation that awaits the
// current custom order (triggering the fetch when uncached) and sorts off
// the delivering goroutine. When a newer snapshot arrives first, the
// previous recomputation is cancelled and its result, even if already
// computed, is discarded: switch-to-latest. The order cache is awaited, not
// subscribed to, so an order change alone never produces a new delivery.
func (p *Pipeline) WatchZone(ctx context.Context, zone garden.Zone) (<-chan garden.Projection, context.CancelFunc) {
	zoneCh, cancelZone := p.store.WatchZone(ctx, zone)

	raw := make(chan garden.Projection)
	go func() {
		defer close(raw)

		var (
			gen        uint64
			cancelPrev context.CancelFunc = func() {}
		)
		defer func() { cancelPrev() }()

		results := make(chan computed)
		for {
			select {
			case snapshot, ok := <-zoneCh:
				if !ok {
					return
				}
				gen++
				cancelPrev()
				cctx, ccancel := context.WithCancel(context.Background())
				cancelPrev = ccancel

				myGen := gen
				asyncx.Do(func() {
					order, err := p.order.GetOrAwait(cctx)
					if err != nil {
						return // superseded while awaiting the order
					}
					select {
					case results <- computed{gen: myGen, proj: garden.ApplyOrder(snapshot, order)}:
					case <-cctx.Done():
					}
				})

			case r := <-results:
				if r.gen == gen {
					raw <- r.proj
				}
			}
		}
	}()

	return streamx.Conflate(raw), cancelZone
}
