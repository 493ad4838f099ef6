// Package model defines the canonical glucose types shared across the ingestion service.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch
//   - Glucose values: float64 mg/dL as delivered by the source
//   - Identity: (Timestamp, SourceSensor), unique in the store
//   - IDs: uuid.UUID surrogate assigned when a record is accepted
package model
