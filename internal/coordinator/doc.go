// Package coordinator decides when the vendor API is called, merges the two
// responses of a cycle into a Snapshot and hands that snapshot to readers.
//
// # Lifecycle
//
//	idle ──refresh──▶ refreshing ──succeed──▶ ready
//	                      │                     │
//	                      └──fail──▶ degraded ◀─┘ (next failed cycle)
//
// ready and degraded both return to refreshing on the next tick or explicit
// refresh. A failed cycle never touches the published snapshot.
//
// # Concurrency
//
// Cycles are coalesced with singleflight: a tick or RefreshNow that arrives
// while a cycle is in flight waits for that cycle and shares its result.
// The snapshot is swapped through an atomic pointer, so readers see either
// the old or the new snapshot in full.
//
// # Usage
//
//	c, _ := coordinator.New(coordinator.Options{Fetcher: client, Logger: log})
//	if _, err := c.RefreshNow(ctx); err != nil {
//	    return err // classify with errors.As(err, &apiErr)
//	}
//	sub := c.Subscribe(func(s *coordinator.Snapshot) { publish(s) })
//	defer c.Unsubscribe(sub)
//	_ = c.Start(5 * time.Minute)
//	defer c.Stop()
package coordinator
