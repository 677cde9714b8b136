// Package health provides health check endpoints for Aegis.
//
// # Endpoints
//
//   - /health: Liveness probe, the process is running
//   - /ready: Readiness probe, the analyzer can accept content
//   - /version: Build information
//
// Liveness and readiness paths are configurable through
// config.HealthConfig.
//
// # Readiness
//
// Readiness aggregates component checks. The analyzer command registers:
//
//   - models: RegistryCheck, at least one registered model is ready
//   - pool: PoolCheck, the worker pool has not been closed
//   - cache: CacheCheck, the SQLite cache answers a ping
//
// Checks run concurrently, each bounded by the configured check timeout.
// A single unhealthy check reports "degraded" with HTTP 503.
package health
