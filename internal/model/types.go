package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Payload is the untyped key/value bundle delivered by a CGM companion app.
// It must not travel past the decoder.
type Payload map[string]any

// GlucoseRecord is one validated glucose measurement.
type GlucoseRecord struct {
	ID           uuid.UUID    `json:"id"`              // Surrogate, assigned on insert
	Timestamp    int64        `json:"timestamp"`       // Measurement time (ms since epoch)
	Value        float64      `json:"value"`           // Glucose concentration
	Raw          *float64     `json:"raw,omitempty"`   // Raw sensor signal, nil when not provided
	Noise        *float64     `json:"noise,omitempty"` // Quality indicator, unused by Glimp
	TrendArrow   TrendArrow   `json:"trend_arrow"`     // Normalized direction
	SourceSensor SourceSensor `json:"source_sensor"`   // Originating integration
}

// Identity returns the uniqueness key of the record.
func (r GlucoseRecord) Identity() Identity {
	return Identity{Timestamp: r.Timestamp, SourceSensor: r.SourceSensor}
}

// Identity uniquely identifies a GlucoseRecord in the store.
type Identity struct {
	Timestamp    int64
	SourceSensor SourceSensor
}

func (i Identity) String() string {
	return fmt.Sprintf("%s@%d", i.SourceSensor, i.Timestamp)
}

// IngestionResult is the outcome of one upsert transaction.
type IngestionResult struct {
	Inserted []GlucoseRecord // Newly persisted records, in input order
	Skipped  int             // Candidates whose identity already existed
}

// Empty reports whether nothing was inserted.
func (r IngestionResult) Empty() bool {
	return len(r.Inserted) == 0
}
