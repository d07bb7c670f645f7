// Package scheduler is the trigger engine: a cron-driven repeating tick that
// scans every workspace's item collection, fires due items, and applies the
// post-fire policy (deactivate one-shots, advance recurring items).
//
// Concurrency model: at most one tick is in flight at a time. A timer tick
// that would overlap a running one is skipped, not queued, so an item whose
// processing spans the tick interval cannot double-fire. Each tick loads
// fresh state from the store; there is no cross-tick cache.
package scheduler
