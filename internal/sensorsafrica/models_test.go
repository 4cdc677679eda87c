package sensorsafrica

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemTime(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2024-03-01T10:15:04Z", time.Date(2024, 3, 1, 10, 15, 4, 0, time.UTC)},
		{"rfc3339 with offset", "2024-03-01T13:15:04+03:00", time.Date(2024, 3, 1, 10, 15, 4, 0, time.UTC)},
		{"zone-less iso", "2024-03-01T10:15:04", time.Date(2024, 3, 1, 10, 15, 4, 0, time.UTC)},
		{"space separator", "2024-03-01 10:15:04", time.Date(2024, 3, 1, 10, 15, 4, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := Item{Timestamp: tc.raw}.Time()
			require.NoError(t, err)
			assert.Equal(t, tc.want, ts)
		})
	}

	t.Run("empty timestamp", func(t *testing.T) {
		_, err := Item{}.Time()
		assert.Error(t, err)
	})

	t.Run("garbage timestamp", func(t *testing.T) {
		_, err := Item{Timestamp: "yesterday"}.Time()
		assert.Error(t, err)
	})
}

func TestDataValueDecoding(t *testing.T) {
	t.Run("string value", func(t *testing.T) {
		var dv DataValue
		require.NoError(t, json.Unmarshal([]byte(`{"value_type": "P2", "value": "12.40"}`), &dv))
		assert.Equal(t, "P2", dv.ValueType)
		assert.Equal(t, "12.40", dv.Value)
	})

	t.Run("numeric value", func(t *testing.T) {
		var dv DataValue
		require.NoError(t, json.Unmarshal([]byte(`{"value_type": "temperature", "value": 21.5}`), &dv))
		assert.Equal(t, "21.5", dv.Value)
	})

	t.Run("null value", func(t *testing.T) {
		var dv DataValue
		require.NoError(t, json.Unmarshal([]byte(`{"value_type": "P1", "value": null}`), &dv))
		assert.Equal(t, "", dv.Value)
	})
}

func TestLocationDecoding(t *testing.T) {
	t.Run("structured with string coordinates", func(t *testing.T) {
		var item Item
		raw := `{"timestamp": "2024-03-01T10:15:04", "location": {"name": "Gate E", "latitude": "-1.3100", "longitude": "36.8130"}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &item))
		require.NotNil(t, item.Location)
		assert.Equal(t, "Gate E", item.Location.Name)
		lat, lon, ok := item.Location.Coords()
		require.True(t, ok)
		assert.InDelta(t, -1.31, lat, 1e-9)
		assert.InDelta(t, 36.813, lon, 1e-9)
	})

	t.Run("structured with numeric coordinates", func(t *testing.T) {
		var item Item
		raw := `{"location": {"name": "Gate E", "latitude": -1.31, "longitude": 36.813}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &item))
		_, _, ok := item.Location.Coords()
		assert.True(t, ok)
	})

	t.Run("bare string location", func(t *testing.T) {
		var item Item
		raw := `{"location": "Strathmore University - Ole Sangale"}`
		require.NoError(t, json.Unmarshal([]byte(raw), &item))
		require.NotNil(t, item.Location)
		assert.Equal(t, "Strathmore University - Ole Sangale", item.Location.FreeText)
		_, _, ok := item.Location.Coords()
		assert.False(t, ok)
	})

	t.Run("null location", func(t *testing.T) {
		var item Item
		require.NoError(t, json.Unmarshal([]byte(`{"location": null}`), &item))
		_, _, ok := item.Location.Coords()
		assert.False(t, ok)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		var item Item
		raw := `{"location": {"name": "Gate E"}}`
		require.NoError(t, json.Unmarshal([]byte(raw), &item))
		_, _, ok := item.Location.Coords()
		assert.False(t, ok)
	})
}

func TestDecodeItems(t *testing.T) {
	t.Run("array payload", func(t *testing.T) {
		items, err := decodeItems([]byte(`[{"timestamp": "2024-03-01T10:15:04"}, {"timestamp": "2024-03-01T10:16:04"}]`))
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("single object payload", func(t *testing.T) {
		items, err := decodeItems([]byte(`{"timestamp": "2024-03-01T10:15:04"}`))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "2024-03-01T10:15:04", items[0].Timestamp)
	})

	t.Run("empty body", func(t *testing.T) {
		items, err := decodeItems(nil)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := decodeItems([]byte(`{"timestamp":`))
		assert.Error(t, err)
	})
}
