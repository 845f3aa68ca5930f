package gardensrv_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/verdant/pkg/errx"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardeninfra"
	"github.com/Abraxas-365/verdant/pkg/garden/gardensrv"
)

// fakeRemote is a scriptable garden.PlantService.
type fakeRemote struct {
	plants    []garden.Plant
	zonePlant map[garden.Zone][]garden.Plant
	order     garden.PlantOrder
	err       error
}

func (f *fakeRemote) AllPlants(ctx context.Context) ([]garden.Plant, error) {
	return f.plants, f.err
}

func (f *fakeRemote) PlantsByZone(ctx context.Context, zone garden.Zone) ([]garden.Plant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.zonePlant[zone], nil
}

func (f *fakeRemote) CustomPlantOrder(ctx context.Context) (garden.PlantOrder, error) {
	return f.order, f.err
}

// denyPolicy refuses every refresh and records which scopes were asked about.
type denyPolicy struct {
	mu     sync.Mutex
	scopes []string
}

func (d *denyPolicy) ShouldRefresh(ctx context.Context, scope string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scopes = append(d.scopes, scope)
	return false
}

func TestRefreshAll_UpsertsAndNotifiesWatchers(t *testing.T) {
	store := gardeninfra.NewMemoryStore()
	remote := &fakeRemote{plants: []garden.Plant{
		{ID: "p1", Name: "Rose", Zone: 5},
		{ID: "p2", Name: "Iris", Zone: 6},
	}}
	svc := gardensrv.New(store, remote, gardensrv.WithSettleDelay(time.Hour))

	ch, cancel := svc.Plants(context.Background())
	defer cancel()

	select {
	case p := <-ch:
		if len(p) != 0 {
			t.Fatalf("expected an empty initial projection, got %d plants", len(p))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial projection")
	}

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	select {
	case p := <-ch:
		if len(p) != 2 {
			t.Fatalf("projection after refresh has %d plants, want 2", len(p))
		}
		if p[0].Name != "Iris" || p[1].Name != "Rose" {
			t.Fatalf("projection not alphabetical: %v, %v", p[0].Name, p[1].Name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never saw the refreshed catalog")
	}
}

func TestRefreshAll_WrapsRemoteFailure(t *testing.T) {
	store := gardeninfra.NewMemoryStore()
	remote := &fakeRemote{err: errors.New("connection refused")}
	svc := gardensrv.New(store, remote, gardensrv.WithSettleDelay(time.Hour))

	err := svc.RefreshAll(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failing remote")
	}
	var appErr *errx.Error
	if !errx.As(err, &appErr) {
		t.Fatalf("error %v is not an *errx.Error", err)
	}
	if appErr.Code != gardensrv.ErrRefreshFetch.Code {
		t.Fatalf("code = %s, want %s", appErr.Code, gardensrv.ErrRefreshFetch.Code)
	}
	if appErr.HTTPStatus != 502 {
		t.Fatalf("status = %d, want 502", appErr.HTTPStatus)
	}
}

func TestRefreshZone_UsesZoneScopedFetch(t *testing.T) {
	store := gardeninfra.NewMemoryStore()
	remote := &fakeRemote{zonePlant: map[garden.Zone][]garden.Plant{
		7: {{ID: "p3", Name: "Fern", Zone: 7}},
	}}
	svc := gardensrv.New(store, remote, gardensrv.WithSettleDelay(time.Hour))

	if err := svc.RefreshZone(context.Background(), 7); err != nil {
		t.Fatalf("RefreshZone: %v", err)
	}

	ch, cancel := svc.PlantsInZone(context.Background(), 7)
	defer cancel()
	select {
	case p := <-ch:
		if len(p) != 1 || p[0].ID != "p3" {
			t.Fatalf("zone projection = %v, want the one refreshed plant", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no zone projection after refresh")
	}
}

func TestRefresh_SuppressedByPolicyIsNotAnError(t *testing.T) {
	store := gardeninfra.NewMemoryStore()
	remote := &fakeRemote{err: errors.New("must not be called")}
	policy := &denyPolicy{}
	svc := gardensrv.New(store, remote,
		gardensrv.WithRefreshPolicy(policy),
		gardensrv.WithSettleDelay(time.Hour))

	if err := svc.RefreshAll(context.Background()); err != nil {
		t.Fatalf("suppressed refresh returned %v, want nil", err)
	}
	if err := svc.RefreshZone(context.Background(), 3); err != nil {
		t.Fatalf("suppressed zone refresh returned %v, want nil", err)
	}

	policy.mu.Lock()
	defer policy.mu.Unlock()
	if len(policy.scopes) != 2 || policy.scopes[0] != garden.ScopeAll || policy.scopes[1] != garden.ZoneScope(3) {
		t.Fatalf("policy consulted with scopes %v", policy.scopes)
	}
}

func TestDefault_SingleInstanceUnderConcurrency(t *testing.T) {
	gardensrv.ResetDefault()
	t.Cleanup(gardensrv.ResetDefault)

	store := gardeninfra.NewMemoryStore()
	remote := &fakeRemote{}

	const n = 16
	got := make([]*gardensrv.Service, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = gardensrv.Default(store, remote, gardensrv.WithSettleDelay(time.Hour))
		}()
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if got[i] != got[0] {
			t.Fatal("Default returned more than one instance")
		}
	}
}
