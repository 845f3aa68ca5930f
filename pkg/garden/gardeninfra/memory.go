package gardeninfra

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/streamx"
)

// MemoryStore is an in-memory garden.PlantStore. It backs tests and local
// development; the production store is PostgresStore.
type MemoryStore struct {
	mu      sync.RWMutex
	plants  map[string]garden.Plant
	changes *streamx.Source[struct{}]
}

// NewMemoryStore creates a store optionally pre-populated with seed plants.
func NewMemoryStore(seed ...garden.Plant) *MemoryStore {
	s := &MemoryStore{
		plants:  make(map[string]garden.Plant, len(seed)),
		changes: streamx.NewSource[struct{}](),
	}
	for _, p := range seed {
		s.plants[p.ID] = p
	}
	return s
}

// UpsertAll implements garden.PlantStore. Watchers are notified after the
// batch is applied.
func (s *MemoryStore) UpsertAll(_ context.Context, plants []garden.Plant) error {
	s.mu.Lock()
	for _, p := range plants {
		s.plants[p.ID] = p
	}
	s.mu.Unlock()

	s.changes.Emit(struct{}{})
	return nil
}

// WatchAll implements garden.PlantStore.
func (s *MemoryStore) WatchAll(ctx context.Context) (<-chan []garden.Plant, context.CancelFunc) {
	return s.watch(ctx, func(garden.Plant) bool { return true })
}

// WatchZone implements garden.PlantStore.
func (s *MemoryStore) WatchZone(ctx context.Context, zone garden.Zone) (<-chan []garden.Plant, context.CancelFunc) {
	return s.watch(ctx, func(p garden.Plant) bool { return p.Zone == zone })
}

func (s *MemoryStore) watch(ctx context.Context, match func(garden.Plant) bool) (<-chan []garden.Plant, context.CancelFunc) {
	signals, cancelSignals := s.changes.Subscribe()
	done := make(chan struct{})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSignals()
			close(done)
		})
	}

	out := make(chan []garden.Plant)
	go func() {
		defer close(out)

		// Current snapshot first, then one per change.
		select {
		case out <- s.snapshot(match):
		case <-done:
			return
		case <-ctx.Done():
			return
		}
		for {
			select {
			case _, ok := <-signals:
				if !ok {
					return
				}
				select {
				case out <- s.snapshot(match):
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, cancel
}

// snapshot returns matching plants ordered by ID so emissions are stable.
func (s *MemoryStore) snapshot(match func(garden.Plant) bool) []garden.Plant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]garden.Plant, 0, len(s.plants))
	for _, p := range s.plants {
		if match(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b garden.Plant) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
