package decode

import (
	"encoding/json"
	"math"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// Fields names the payload keys read by a Decoder.
type Fields struct {
	Value     string // Glucose value, numeric, required
	Trend     string // Trend token, string, required
	Timestamp string // Milliseconds since epoch, integer, required
	Raw       string // Raw sensor value, numeric, optional; empty disables
}

// GlimpFields returns the keys broadcast by the Glimp app.
func GlimpFields() Fields {
	return Fields{
		Value:     "mySGV",
		Trend:     "myTrend",
		Timestamp: "myTimestamp",
		Raw:       "myRaw",
	}
}

// Decoder validates payloads for a single source.
type Decoder struct {
	fields Fields
	sensor model.SourceSensor
}

// New creates a Decoder tagging records with sensor.
func New(sensor model.SourceSensor, fields Fields) *Decoder {
	return &Decoder{fields: fields, sensor: sensor}
}

// Sensor returns the source tag applied to decoded records.
func (d *Decoder) Sensor() model.SourceSensor {
	return d.sensor
}

// Decode validates p and returns the canonical record.
// Required fields are checked in order: value, trend, timestamp.
func (d *Decoder) Decode(p model.Payload) (model.GlucoseRecord, error) {
	value, err := requireFloat(p, d.fields.Value)
	if err != nil {
		return model.GlucoseRecord{}, err
	}

	trend, err := requireString(p, d.fields.Trend)
	if err != nil {
		return model.GlucoseRecord{}, err
	}

	ts, err := requireInt(p, d.fields.Timestamp)
	if err != nil {
		return model.GlucoseRecord{}, err
	}

	return model.GlucoseRecord{
		Timestamp:    ts,
		Value:        value,
		Raw:          optionalFloat(p, d.fields.Raw),
		Noise:        nil,
		TrendArrow:   model.ParseTrendArrow(trend),
		SourceSensor: d.sensor,
	}, nil
}

func requireFloat(p model.Payload, key string) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, absent(key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, wrongType(key, v)
	}
	return f, nil
}

func requireString(p model.Payload, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", absent(key)
	}
	s, ok := v.(string)
	if !ok {
		return "", wrongType(key, v)
	}
	return s, nil
}

func requireInt(p model.Payload, key string) (int64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, absent(key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, wrongType(key, v)
	}
	return n, nil
}

// optionalFloat returns nil when the key is unset, absent or not numeric.
// Zero is a valid raw reading and is returned as a non-nil pointer.
func optionalFloat(p model.Payload, key string) *float64 {
	if key == "" {
		return nil
	}
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

// toFloat accepts every Go numeric kind and json.Number. NaN and Inf are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt accepts integer kinds, json.Number integers, and integral floats
// within the int64 range.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	default:
		return 0, false
	}
}

func uintToInt(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// 2^63 is the first float64 above MaxInt64
	if f >= 9223372036854775808.0 || f < -9223372036854775808.0 {
		return 0, false
	}
	return int64(f), true
}
