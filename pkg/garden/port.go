package garden

import (
	"context"
	"strconv"
)

// PlantStore is the persistence boundary. Implementations must re-emit a
// fresh snapshot to every active watcher after each successful UpsertAll.
type PlantStore interface {
	// WatchAll emits the current full collection immediately and again on
	// every change. Cancel releases the watch.
	WatchAll(ctx context.Context) (<-chan []Plant, context.CancelFunc)

	// WatchZone is WatchAll scoped to one grow zone.
	WatchZone(ctx context.Context, zone Zone) (<-chan []Plant, context.CancelFunc)

	// UpsertAll inserts or replaces plants by ID as one batch.
	UpsertAll(ctx context.Context, plants []Plant) error
}

// PlantService is the remote boundary.
type PlantService interface {
	AllPlants(ctx context.Context) ([]Plant, error)
	PlantsByZone(ctx context.Context, zone Zone) ([]Plant, error)
	CustomPlantOrder(ctx context.Context) (PlantOrder, error)
}

// Refresh scopes understood by RefreshPolicy.
const ScopeAll = "all"

// ZoneScope names the refresh scope for one zone.
func ZoneScope(zone Zone) string {
	return "zone:" + strconv.Itoa(int(zone))
}

// RefreshPolicy decides whether an on-demand refresh should actually hit the
// remote service. The default policy always permits.
type RefreshPolicy interface {
	ShouldRefresh(ctx context.Context, scope string) bool
}

// AlwaysRefresh permits every refresh.
type AlwaysRefresh struct{}

// ShouldRefresh implements RefreshPolicy.
func (AlwaysRefresh) ShouldRefresh(context.Context, string) bool { return true }
