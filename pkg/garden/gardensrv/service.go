package gardensrv

import (
	"context"
	"sync"
	"time"

	"github.com/Abraxas-365/verdant/pkg/errx"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardencache"
	"github.com/Abraxas-365/verdant/pkg/garden/gardenview"
	"github.com/Abraxas-365/verdant/pkg/logx"
)

var srvErrors = errx.NewRegistry("GARDEN")

var (
	// ErrRefreshFetch covers remote failures during a refresh operation.
	ErrRefreshFetch = srvErrors.Register("REFRESH_FETCH", errx.TypeExternal, 502, "Failed to fetch plants from the plant service")
	// ErrRefreshStore covers store failures during a refresh operation.
	ErrRefreshStore = srvErrors.Register("REFRESH_STORE", errx.TypeInternal, 500, "Failed to store refreshed plants")
)

// Service is the repository facade over the plant catalog: two reactive read
// paths and two on-demand refresh operations.
//
// Reads never fail on the remote service being down; the custom sort order
// degrades to the fallback through the order cache. Refresh failures, by
// contrast, propagate to the caller, who owns retry policy.
type Service struct {
	store  garden.PlantStore
	remote garden.PlantService
	policy garden.RefreshPolicy

	order    *gardencache.OnceCache[garden.PlantOrder]
	pipeline *gardenview.Pipeline
}

// Option is a functional option for the service.
type Option func(*settings)

type settings struct {
	policy garden.RefreshPolicy
	settle time.Duration
}

// WithRefreshPolicy installs a refresh gate. The default permits everything.
func WithRefreshPolicy(p garden.RefreshPolicy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithSettleDelay overrides the pipeline's settling delay before the
// background order fetch.
func WithSettleDelay(d time.Duration) Option {
	return func(s *settings) {
		s.settle = d
	}
}

// New constructs the facade. Prefer constructing one Service at startup and
// injecting it; Default exists for callers that need the lazy process-wide
// instance.
func New(store garden.PlantStore, remote garden.PlantService, opts ...Option) *Service {
	cfg := settings{
		policy: garden.AlwaysRefresh{},
		settle: gardenview.DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	order := gardencache.New(remote.CustomPlantOrder, garden.PlantOrder{})

	return &Service{
		store:    store,
		remote:   remote,
		policy:   cfg.policy,
		order:    order,
		pipeline: gardenview.NewWithSettle(store, order, cfg.settle),
	}
}

// Plants streams sorted projections of the full catalog.
func (s *Service) Plants(ctx context.Context) (<-chan garden.Projection, context.CancelFunc) {
	return s.pipeline.Watch(ctx)
}

// PlantsInZone streams sorted projections for one grow zone.
func (s *Service) PlantsInZone(ctx context.Context, zone garden.Zone) (<-chan garden.Projection, context.CancelFunc) {
	return s.pipeline.WatchZone(ctx, zone)
}

// RefreshAll fetches the full catalog from the plant service and upserts it
// into the store. Store watchers pick the change up through the store's own
// stream; this method does not touch the pipelines directly.
func (s *Service) RefreshAll(ctx context.Context) error {
	if !s.policy.ShouldRefresh(ctx, garden.ScopeAll) {
		logx.Debug("full refresh suppressed by policy")
		return nil
	}

	plants, err := s.remote.AllPlants(ctx)
	if err != nil {
		return srvErrors.NewWithCause(ErrRefreshFetch, err).WithDetail("scope", garden.ScopeAll)
	}
	if err := s.store.UpsertAll(ctx, plants); err != nil {
		return srvErrors.NewWithCause(ErrRefreshStore, err).WithDetail("scope", garden.ScopeAll)
	}

	logx.WithField("plants", len(plants)).Info("full catalog refreshed")
	return nil
}

// RefreshZone is RefreshAll scoped to one grow zone.
func (s *Service) RefreshZone(ctx context.Context, zone garden.Zone) error {
	scope := garden.ZoneScope(zone)
	if !s.policy.ShouldRefresh(ctx, scope) {
		logx.WithField("scope", scope).Debug("zone refresh suppressed by policy")
		return nil
	}

	plants, err := s.remote.PlantsByZone(ctx, zone)
	if err != nil {
		return srvErrors.NewWithCause(ErrRefreshFetch, err).WithDetail("scope", scope)
	}
	if err := s.store.UpsertAll(ctx, plants); err != nil {
		return srvErrors.NewWithCause(ErrRefreshStore, err).WithDetail("scope", scope)
	}

	logx.WithFields(logx.Fields{"scope": scope, "plants": len(plants)}).Info("zone refreshed")
	return nil
}

// ─── Process-wide instance ───────────────────────────────────────────────────

var (
	defaultMu  sync.Mutex
	defaultSrv *Service
)

// Default returns the process-wide Service, constructing it on first call.
// Construction happens at most once even under concurrent first access;
// later calls return the existing instance and ignore their arguments.
func Default(store garden.PlantStore, remote garden.PlantService, opts ...Option) *Service {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSrv == nil {
		defaultSrv = New(store, remote, opts...)
	}
	return defaultSrv
}

// ResetDefault clears the process-wide instance. Test helper.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultSrv = nil
}
