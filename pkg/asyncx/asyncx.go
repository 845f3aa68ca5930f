package asyncx

import (
	"context"
	"sync"
	"time"
)

// ─── Future ──────────────────────────────────────────────────────────────────

// result holds the outcome of an async computation.
type result[T any] struct {
	value T
	err   error
}

// Future represents a value that will be available asynchronously.
// Create one with Run and retrieve its value with Await or AwaitCtx.
//
// Resolution is broadcast: any number of goroutines may await the same
// Future concurrently and every one of them observes the same outcome.
type Future[T any] struct {
	done chan struct{}
	res  result[T]
}

// Run executes fn in a goroutine and returns a Future for its result.
// The goroutine starts immediately.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		v, err := fn()
		f.res = result[T]{value: v, err: err}
		close(f.done)
	}()
	return f
}

// Await blocks until the Future completes and returns its value and error.
// Safe to call from multiple goroutines; all callers see the same result.
func (f *Future[T]) Await() (T, error) {
	<-f.done
	return f.res.value, f.res.err
}

// AwaitCtx waits like Await but gives up when ctx is done. Abandoning the
// wait does not stop the underlying computation; other waiters still get
// its result.
func (f *Future[T]) AwaitCtx(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.value, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the Future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// ─── Concurrency Primitives ───────────────────────────────────────────────────

// Do fires fn in a goroutine and forgets it (fire-and-forget).
func Do(fn func()) {
	go fn()
}

// DoCtx fires fn in a goroutine only if ctx is not already done.
func DoCtx(ctx context.Context, fn func(context.Context)) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn(ctx)
		}
	}()
}

// ─── Fan-out ─────────────────────────────────────────────────────────────────

// All runs all fns concurrently and waits for every one to finish.
// Returns a slice of results in the same order as the input functions.
// If any function returns an error the first error is returned; other
// goroutines are still awaited so resources are not leaked.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	errs := make([]error, len(fns))

	var wg sync.WaitGroup
	wg.Add(len(fns))

	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ─── Worker Pool ──────────────────────────────────────────────────────────────

// Pool processes items using at most workers goroutines and returns results
// in the original order. Returns the first error encountered.
//
// Use this when the number of items is large and unbounded concurrency would
// be harmful (e.g. DB connections, rate-limited APIs).
func Pool[T any, R any](
	ctx context.Context,
	workers int,
	items []T,
	fn func(context.Context, T) (R, error),
) ([]R, error) {
	if workers <= 0 {
		workers = 1
	}

	type indexed struct {
		i    int
		item T
	}

	work := make(chan indexed, len(items))
	for i, item := range items {
		work <- indexed{i: i, item: item}
	}
	close(work)

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for w := range work {
				select {
				case <-ctx.Done():
					errs[w.i] = ctx.Err()
					return
				default:
					results[w.i], errs[w.i] = fn(ctx, w.item)
				}
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ─── Debounce ────────────────────────────────────────────────────────────────

// Debounced wraps fn so that it is only called after it stops being invoked
// for at least wait. Every call resets the timer. Thread-safe.
func Debounced(wait time.Duration, fn func()) func() {
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(wait, fn)
	}
}

// ─── Once ─────────────────────────────────────────────────────────────────────

// Once wraps fn so it executes at most once, regardless of how many goroutines
// call the returned function simultaneously.
func Once[T any](fn func() (T, error)) func() (T, error) {
	var (
		once sync.Once
		val  T
		err  error
	)
	return func() (T, error) {
		once.Do(func() {
			val, err = fn()
		})
		return val, err
	}
}
