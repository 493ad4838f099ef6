// Package metrics provides Prometheus metrics for the ingestion pipeline.
//
// Key metrics:
//   - Payload outcomes (gated, rejected, queued, dropped)
//   - Records inserted vs skipped as duplicates
//   - Store transaction latency and failures
//   - Sink failures per sink
//   - Task queue depth
package metrics
