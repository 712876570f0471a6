// Package storage provides persistence backends for per-provider usage
// state (daily call counters and cooldown timestamps).
//
// Two backends are available:
//
//   - SQLiteBackend: durable single-file storage with per-key upserts,
//     suitable for single-instance deployments that must survive restarts.
//   - MemoryBackend: volatile map-based storage for tests and deployments
//     where counters may reset on restart.
//
// All writes are keyed by provider identity. The request path never waits
// on these writes; the usage tracker issues them asynchronously and treats
// failures as log-and-continue.
package storage
