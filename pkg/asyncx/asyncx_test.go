package asyncx_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Abraxas-365/verdant/pkg/asyncx"
)

func TestFuture_BroadcastsToAllWaiters(t *testing.T) {
	gate := make(chan struct{})
	fut := asyncx.Run(func() (int, error) {
		<-gate
		return 42, nil
	})

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := fut.Await()
			if err != nil || v != 42 {
				t.Errorf("Await = (%d, %v), want (42, nil)", v, err)
			}
		}()
	}

	close(gate)
	wg.Wait()
}

func TestFuture_AwaitCtxGivesUpWithoutKillingWork(t *testing.T) {
	gate := make(chan struct{})
	fut := asyncx.Run(func() (int, error) {
		<-gate
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fut.AwaitCtx(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitCtx = %v, want context.Canceled", err)
	}

	close(gate)
	if v, err := fut.Await(); err != nil || v != 1 {
		t.Fatalf("Await after abandoned AwaitCtx = (%d, %v), want (1, nil)", v, err)
	}
}

func TestFuture_PropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	fut := asyncx.Run(func() (int, error) {
		return 0, wantErr
	})
	if _, err := fut.Await(); !errors.Is(err, wantErr) {
		t.Fatalf("Await error = %v, want %v", err, wantErr)
	}
}

func TestPool_PreservesOrderAndBoundsWorkers(t *testing.T) {
	var active, peak atomic.Int32

	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	results, err := asyncx.Pool(context.Background(), 3, items, func(_ context.Context, n int) (int, error) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return n * 2, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r != i*2 {
			t.Fatalf("results[%d] = %d, want %d", i, r, i*2)
		}
	}
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeded 3 workers", peak.Load())
	}
}

func TestDebounced_CollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	fn := asyncx.Debounced(50*time.Millisecond, func() {
		calls.Add(1)
	})

	for i := 0; i < 5; i++ {
		fn()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 invocation after burst, got %d", got)
	}
}

func TestOnce_RunsExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	fn := asyncx.Once(func() (string, error) {
		calls.Add(1)
		return "v", nil
	})

	var wg sync.WaitGroup
	wg.Add(8)
	for i := 0; i < 8; i++ {
		go func() {
			defer wg.Done()
			if v, err := fn(); err != nil || v != "v" {
				t.Errorf("fn = (%q, %v), want (v, nil)", v, err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 execution, got %d", got)
	}
}
