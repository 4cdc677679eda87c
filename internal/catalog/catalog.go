package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Role describes what a physical sensor unit reports.
type Role string

const (
	RoleParticulate Role = "PMS"
	RoleClimate     Role = "DHT"
	RoleCombined    Role = "PMS/DHT"
)

// Entry maps an upstream sensor id to the physical station it belongs to.
type Entry struct {
	SensorID int     `json:"sensor_id"`
	Station  string  `json:"station"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Role     Role    `json:"role"`
}

// CoordString renders the entry coordinates in the "lat,lon" form stored
// as a station's default location.
func (e Entry) CoordString() string {
	return fmt.Sprintf("%.4f,%.4f", e.Lat, e.Lon)
}

// Catalog is an immutable lookup of sensor metadata. Build one with New
// and inject it into the pipeline; it is never mutated after construction.
type Catalog struct {
	byID  map[int]Entry
	order []int
}

// New builds a catalog from entries. Later duplicates of a sensor id
// replace earlier ones.
func New(entries []Entry) Catalog {
	byID := make(map[int]Entry, len(entries))
	for _, e := range entries {
		byID[e.SensorID] = e
	}
	order := make([]int, 0, len(byID))
	for id := range byID {
		order = append(order, id)
	}
	sort.Ints(order)
	return Catalog{byID: byID, order: order}
}

// Lookup returns the entry for a sensor id, if configured.
func (c Catalog) Lookup(sensorID int) (Entry, bool) {
	e, ok := c.byID[sensorID]
	return e, ok
}

// Entries returns all entries in ascending sensor id order.
func (c Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Len reports the number of configured sensors.
func (c Catalog) Len() int {
	return len(c.byID)
}

// Default returns the Strathmore campus deployment: two-sensor stations
// (separate PMS and DHT units) plus one combined unit.
func Default() Catalog {
	return New([]Entry{
		{SensorID: 4896, Station: "Central Building", Lat: -1.311, Lon: 36.814, Role: RoleCombined},
		{SensorID: 4898, Station: "Auditorium Parking", Lat: -1.309, Lon: 36.812, Role: RoleParticulate},
		{SensorID: 4899, Station: "Auditorium Parking", Lat: -1.309, Lon: 36.812, Role: RoleClimate},
		{SensorID: 4900, Station: "Langata Gate", Lat: -1.310, Lon: 36.813, Role: RoleParticulate},
		{SensorID: 4901, Station: "Langata Gate", Lat: -1.310, Lon: 36.813, Role: RoleClimate},
	})
}

// LoadFile reads catalog entries from a JSON array on disk.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	for _, e := range entries {
		if e.SensorID <= 0 || e.Station == "" {
			return Catalog{}, fmt.Errorf("invalid catalog entry: sensor_id=%d station=%q", e.SensorID, e.Station)
		}
	}
	return New(entries), nil
}

// AliasTable translates known upstream location labels to canonical
// station names. Unknown labels pass through verbatim.
type AliasTable map[string]string

// Canonical resolves a raw label through the table.
func (a AliasTable) Canonical(label string) string {
	label = strings.TrimSpace(label)
	if canonical, ok := a[label]; ok {
		return canonical
	}
	return label
}

// DefaultAliases maps the upstream Strathmore location strings to the
// station names used by the catalog.
func DefaultAliases() AliasTable {
	return AliasTable{
		"Strathmore University - Auditorium parking": "Auditorium Parking",
		"Strathmore university - Gate E":             "Langata Gate",
		"Strathmore University - Ole Sangale":        "Central Building",
	}
}

// Canonical field names produced by normalization.
const (
	FieldPM1         = "pm1"
	FieldPM25        = "pm25"
	FieldPM10        = "pm10"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// ValueTypes maps upstream value-type codes to canonical field names.
type ValueTypes map[string]string

// Canonical returns the canonical field for a code, or the code itself
// when unrecognized (unknown codes are preserved, not dropped).
func (v ValueTypes) Canonical(code string) string {
	if field, ok := v[code]; ok {
		return field
	}
	return code
}

// DefaultValueTypes covers the particulate codes used by the upstream
// network; climate codes already arrive under their canonical names.
func DefaultValueTypes() ValueTypes {
	return ValueTypes{
		"P0":          FieldPM1,
		"P1":          FieldPM10,
		"P2":          FieldPM25,
		"temperature": FieldTemperature,
		"humidity":    FieldHumidity,
	}
}

// Geofence is a bounding box around a center point. Membership uses
// independent latitude/longitude tolerances rather than a radius.
type Geofence struct {
	Lat          float64
	Lon          float64
	LatTolerance float64
	LonTolerance float64
}

// Contains reports whether the point falls inside the box.
func (g Geofence) Contains(lat, lon float64) bool {
	return abs(lat-g.Lat) <= g.LatTolerance && abs(lon-g.Lon) <= g.LonTolerance
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// DefaultGeofence bounds the Strathmore campus.
func DefaultGeofence() Geofence {
	return Geofence{Lat: -1.3090, Lon: 36.8120, LatTolerance: 0.01, LonTolerance: 0.02}
}
