package sensorsafrica

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Item is one raw measurement entry as returned by the upstream API. It
// is transient: only its normalized projection is ever persisted.
type Item struct {
	Timestamp        string      `json:"timestamp"`
	SensorDataValues []DataValue `json:"sensordatavalues"`
	Location         *Location   `json:"location,omitempty"`

	// Alternate label keys seen on older payload shapes.
	Station string `json:"station,omitempty"`
	Place   string `json:"place,omitempty"`
}

// Time parses the upstream timestamp. The API emits ISO-8601 with or
// without a zone designator, and older entries use a space separator.
// Zone-less values are taken as UTC.
func (i Item) Time() (time.Time, error) {
	raw := strings.TrimSpace(i.Timestamp)
	if raw == "" {
		return time.Time{}, fmt.Errorf("item has no timestamp")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// DataValue is a single (value_type, value) pair. Values arrive as JSON
// strings on current payloads and bare numbers on older ones; both decode
// to the string form here and are parsed to float during normalization.
type DataValue struct {
	ValueType string `json:"value_type"`
	Value     string `json:"value"`
}

func (d *DataValue) UnmarshalJSON(data []byte) error {
	var aux struct {
		ValueType string          `json:"value_type"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.ValueType = aux.ValueType
	d.Value = rawToString(aux.Value)
	return nil
}

// Location carries the optional location block. Upstream sends either a
// structured object or a bare string label.
type Location struct {
	Name      string
	Latitude  *float64
	Longitude *float64

	// FreeText holds the label when the payload carried a plain string
	// instead of an object.
	FreeText string
}

func (l *Location) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		l.FreeText = strings.TrimSpace(s)
		return nil
	}
	var aux struct {
		Name      string          `json:"name"`
		Latitude  json.RawMessage `json:"latitude"`
		Longitude json.RawMessage `json:"longitude"`
	}
	if err := json.Unmarshal(trimmed, &aux); err != nil {
		return err
	}
	l.Name = strings.TrimSpace(aux.Name)
	l.Latitude = parseCoord(aux.Latitude)
	l.Longitude = parseCoord(aux.Longitude)
	return nil
}

// Coords returns the coordinate pair when both are present.
func (l *Location) Coords() (lat, lon float64, ok bool) {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// parseCoord handles coordinates sent as numbers or quoted strings.
func parseCoord(raw json.RawMessage) *float64 {
	s := rawToString(raw)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func rawToString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(trimmed)
}

// decodeItems accepts both response shapes: a single item object or an
// array of items.
func decodeItems(data []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return items, nil
	}
	var item Item
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return []Item{item}, nil
}
