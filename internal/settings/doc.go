// Package settings persists the delivery policy and a best-effort
// delivery audit trail.
//
// Two drivers exist:
//   - "file": dependency-free JSON file + append-only JSONL audit
//   - "sqlite": single database file (optional build tag "sqlite")
//
// Persistence is never load-bearing: a failed load falls back to
// defaults and a failed save is logged and dropped.
package settings
