package gardencache

import (
	"context"
	"sync"

	"github.com/Abraxas-365/verdant/pkg/asyncx"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/Abraxas-365/verdant/pkg/streamx"
)

// OnceCache guards one expensive producer with single-flight,
// cache-on-success semantics.
//
// The first caller of GetOrAwait starts the producer; every caller arriving
// while it runs joins the same flight and receives the same outcome. A
// successful result is stored for the lifetime of the cache and served
// without ever invoking the producer again. A failure is absorbed: every
// waiter of that flight receives the configured fallback, nothing is stored,
// and the next GetOrAwait starts a fresh attempt.
//
// Callers can never distinguish "fallback after a failed fetch" from "no
// value configured upstream"; both look like the fallback. That is inherited
// from the product behavior and deliberate.
type OnceCache[T any] struct {
	producer func(context.Context) (T, error)
	fallback T

	mu     sync.Mutex
	cached *T
	flight *asyncx.Future[T]

	completions *streamx.Source[T]
}

// New creates a cache around producer. fallback is what waiters receive when
// a producer invocation fails.
func New[T any](producer func(context.Context) (T, error), fallback T) *OnceCache[T] {
	return &OnceCache[T]{
		producer:    producer,
		fallback:    fallback,
		completions: streamx.NewSource[T](),
	}
}

// GetOrAwait returns the cached value immediately when present. Otherwise it
// joins the in-flight producer invocation, starting one if none is running,
// and blocks until that flight settles.
//
// The only error ever returned is the caller's own context error; producer
// failures are swallowed and surface as the fallback value. A caller that
// gives up does not cancel the shared flight, which keeps running for the
// remaining waiters.
func (c *OnceCache[T]) GetOrAwait(ctx context.Context) (T, error) {
	c.mu.Lock()
	if c.cached != nil {
		v := *c.cached
		c.mu.Unlock()
		c.completions.Emit(v)
		return v, nil
	}
	if c.flight == nil {
		c.flight = c.startFlight()
	}
	flight := c.flight
	c.mu.Unlock()

	v, err := flight.AwaitCtx(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.completions.Emit(v)
	return v, nil
}

// startFlight launches the producer on a detached context. The flight itself
// performs the state transition before resolving, so by the time any waiter
// wakes, the cache is already Cached (on success) or Empty again (on
// failure).
func (c *OnceCache[T]) startFlight() *asyncx.Future[T] {
	return asyncx.Run(func() (T, error) {
		v, err := c.producer(context.Background())

		c.mu.Lock()
		c.flight = nil
		if err == nil {
			c.cached = &v
		}
		c.mu.Unlock()

		if err != nil {
			logx.WithError(err).Debug("producer failed, settling flight with fallback")
			return c.fallback, nil
		}
		return v, nil
	})
}

// Observe returns a stream that receives the resulting value of every
// completed GetOrAwait, whether it was a cached hit, a fresh success or a
// fallback. The stream never triggers work on its own; something must call
// GetOrAwait for it to emit. Cancel releases the subscription.
func (c *OnceCache[T]) Observe() (<-chan T, context.CancelFunc) {
	return c.completions.Subscribe()
}

// Cached returns the stored value, if any, without triggering a fetch.
func (c *OnceCache[T]) Cached() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		var zero T
		return zero, false
	}
	return *c.cached, true
}
