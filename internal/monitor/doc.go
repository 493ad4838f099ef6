// Package monitor polls ingester dependencies in the background.
//
// The monitor:
//   - Runs every registered check on a fixed interval, and once on start
//   - Bounds concurrent checks and the duration of each one
//   - Keeps the latest result per dependency for the health endpoint
//   - Exports each result as the cgm_dependency_up gauge
package monitor
