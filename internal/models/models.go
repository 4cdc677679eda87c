package models

import "time"

// Observation is one normalized sensor payload attributed to a station,
// before time-bucket merging. Fields holds canonical (or preserved
// unknown) field names mapped to parsed values; a field missing from the
// payload is simply absent from the map.
type Observation struct {
	SensorID  int
	Station   string
	Location  string
	Timestamp time.Time
	Fields    map[string]float64
}

// Reading is the merged canonical record for one station and time
// bucket. Nil pointers mean the field was never reported; zero-filling
// happens only when the record is written to the store.
type Reading struct {
	Station   string
	Location  string
	Timestamp time.Time

	PM1         *float64
	PM25        *float64
	PM10        *float64
	Temperature *float64
	Humidity    *float64
}
