package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// ErrNotObject is returned for JSON that is not an object or an array of objects.
var ErrNotObject = errors.New("payload is not a JSON object")

// RouterConfig holds configuration for the Message Router.
type RouterConfig struct {
	// MaxBatch caps how many payloads one array message may carry.
	MaxBatch int // Default: 64
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxBatch: 64,
	}
}

// PayloadHandler receives each parsed payload.
type PayloadHandler func(p model.Payload)

// ParsePayload decodes a JSON object into a Payload. Numbers are kept as
// json.Number so integral timestamps survive without float rounding.
func ParsePayload(data []byte) (model.Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, ErrNotObject
	}

	var p model.Payload
	if err := decodeStrict(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// ParsePayloads decodes either a single object or an array of objects.
func ParsePayloads(data []byte, maxBatch int) ([]model.Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNotObject
	}

	if data[0] != '[' {
		p, err := ParsePayload(data)
		if err != nil {
			return nil, err
		}
		return []model.Payload{p}, nil
	}

	var items []json.RawMessage
	if err := decodeStrict(data, &items); err != nil {
		return nil, err
	}
	if maxBatch > 0 && len(items) > maxBatch {
		return nil, fmt.Errorf("batch of %d payloads exceeds limit %d", len(items), maxBatch)
	}

	payloads := make([]model.Payload, 0, len(items))
	for i, item := range items {
		p, err := ParsePayload(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		payloads = append(payloads, p)
	}
	return payloads, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return errors.New("decode json: trailing data")
	}
	return nil
}
