// Package asyncx provides a small set of concurrency primitives used across
// the project: futures, fire-and-forget helpers, fan-out, a bounded worker
// pool, debouncing and one-time initialization.
//
// # Futures
//
// A [Future] represents a value that will be computed asynchronously. Use
// [Run] to start work immediately in a goroutine and [Future.Await] (or
// [Future.AwaitCtx] when the caller may give up) to block until the result
// is ready. Resolution is broadcast, so any number of goroutines can await
// the same Future and all of them observe the same outcome:
//
//	fut := asyncx.Run(func() ([]Plant, error) {
//	    return remote.AllPlants(ctx)
//	})
//
//	// ... elsewhere, possibly in several goroutines ...
//	plants, err := fut.AwaitCtx(ctx)
//
// # Worker Pool
//
// [Pool] applies a function to every element of a slice with at most N
// goroutines, preserving input order in the results. Prefer it over naive
// fan-out when items map to DB connections or rate-limited APIs.
//
// # Debounce and Once
//
// [Debounced] collapses bursts of calls into one invocation after the burst
// settles. [Once] guards one-time initialization with a typed result.
package asyncx
