// Package store persists per-workspace collections of scheduled items.
//
// Drivers:
//   - "file": one JSON document per workspace (default)
//   - "sqlite": single database, one collection row per workspace
//     (requires the sqlite build tag)
//
// Each tick loads fresh state and saves at most once per workspace, so the
// durable document is the only shared mutable resource between ticks.
package store
