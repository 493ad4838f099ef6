package model

import "strings"

// SourceSensor tags the CGM integration a record came from.
type SourceSensor string

// Known source sensors.
const (
	SensorUnknown SourceSensor = "Unknown"
	SensorGlimp   SourceSensor = "Glimp"
	SensorDexcom  SourceSensor = "Dexcom"
	SensorLibre   SourceSensor = "Libre"
	SensorXDrip   SourceSensor = "xDrip"
	SensorTomato  SourceSensor = "Tomato"
)

var knownSensors = []SourceSensor{
	SensorGlimp,
	SensorDexcom,
	SensorLibre,
	SensorXDrip,
	SensorTomato,
}

// ParseSourceSensor resolves a configured sensor name, ignoring case.
func ParseSourceSensor(name string) (SourceSensor, bool) {
	name = strings.TrimSpace(name)
	for _, s := range knownSensors {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return SensorUnknown, false
}
