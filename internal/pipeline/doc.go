// Package pipeline wires decoding, storage and notification for inbound
// CGM payloads.
//
// Flow per payload:
//
//	Handle -> gate -> decode -> queue -> worker: Upsert -> Notify (per inserted record)
//
// Handle never blocks on storage or sinks and never returns an error; the
// caller only learns the Outcome of the synchronous part.
package pipeline
