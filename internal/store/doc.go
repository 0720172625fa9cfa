// Package store provides SQLite-backed durable storage for harness runs.
//
// The run log is append-only:
//   - runs: one row per scenario run under one discipline
//   - run_events: the run's trace, one row per executed step
//
// # Ordering
//
// Runs are ordered by seq, a logical counter the store assigns when a run is
// written, never by created_at. Queries use ORDER BY seq ASC, id ASC
// COLLATE BINARY so listings are identical across machines.
//
// Event args and results are canonical JSON (see harness.MarshalCanonical).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: run_events must reference an existing run
//
// Schema migrations are tracked with PRAGMA user_version.
package store
