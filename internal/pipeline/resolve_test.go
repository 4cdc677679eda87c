package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

func locationItem(name string, lat, lon float64) sensorsafrica.Item {
	return sensorsafrica.Item{Location: &sensorsafrica.Location{
		Name:      name,
		Latitude:  &lat,
		Longitude: &lon,
	}}
}

func newTestResolver(enabled bool, policy GeofencePolicy) *Resolver {
	return NewResolver(catalog.Default(), catalog.DefaultAliases(), catalog.DefaultGeofence(), enabled, policy, nil)
}

func TestResolveCatalogPrimary(t *testing.T) {
	res := newTestResolver(false, GeofenceDiscard)

	resolution, keep := res.Resolve(4898, sensorsafrica.Item{})
	require.True(t, keep)
	assert.Equal(t, "Auditorium Parking", resolution.Station)
	assert.Equal(t, "-1.3090,36.8120", resolution.Location)

	t.Run("catalog wins over payload label", func(t *testing.T) {
		resolution, keep := res.Resolve(4900, locationItem("Somewhere Else", -1.31, 36.813))
		require.True(t, keep)
		assert.Equal(t, "Langata Gate", resolution.Station)
	})
}

func TestResolveAliases(t *testing.T) {
	res := newTestResolver(false, GeofenceDiscard)

	t.Run("known upstream label maps to canonical name", func(t *testing.T) {
		item := locationItem("Strathmore University - Auditorium parking", -1.309, 36.812)
		resolution, keep := res.Resolve(7777, item)
		require.True(t, keep)
		assert.Equal(t, "Auditorium Parking", resolution.Station)
	})

	t.Run("unrecognized label becomes a new station verbatim", func(t *testing.T) {
		item := locationItem("Random School", -1.309, 36.812)
		resolution, keep := res.Resolve(7777, item)
		require.True(t, keep)
		assert.Equal(t, "Random School", resolution.Station)
	})
}

func TestResolveStrategyOrder(t *testing.T) {
	res := newTestResolver(false, GeofenceDiscard)

	t.Run("free-text location", func(t *testing.T) {
		item := sensorsafrica.Item{Location: &sensorsafrica.Location{FreeText: "Strathmore university - Gate E"}}
		resolution, keep := res.Resolve(7777, item)
		require.True(t, keep)
		assert.Equal(t, "Langata Gate", resolution.Station)
	})

	t.Run("coordinate string when no label present", func(t *testing.T) {
		lat, lon := -1.309, 36.812
		item := sensorsafrica.Item{Location: &sensorsafrica.Location{Latitude: &lat, Longitude: &lon}}
		resolution, keep := res.Resolve(7777, item)
		require.True(t, keep)
		assert.Equal(t, "-1.3090,36.8120", resolution.Station)
	})

	t.Run("alternate top-level keys", func(t *testing.T) {
		item := sensorsafrica.Item{Station: "Rooftop Lab"}
		resolution, keep := res.Resolve(7777, item)
		require.True(t, keep)
		assert.Equal(t, "Rooftop Lab", resolution.Station)
	})

	t.Run("structured name beats alternate keys", func(t *testing.T) {
		item := locationItem("Random School", -1.309, 36.812)
		item.Station = "Rooftop Lab"
		resolution, _ := res.Resolve(7777, item)
		assert.Equal(t, "Random School", resolution.Station)
	})
}

func TestResolveFallbackName(t *testing.T) {
	res := newTestResolver(false, GeofenceDiscard)

	// No catalog entry, no location, no label: data is kept under a
	// synthetic station rather than discarded.
	resolution, keep := res.Resolve(7777, sensorsafrica.Item{})
	require.True(t, keep)
	assert.Equal(t, fmt.Sprintf("sensor-%d", 7777), resolution.Station)
}

func TestResolveGeofence(t *testing.T) {
	inBounds := locationItem("Random School", -1.309, 36.812)
	outOfBounds := locationItem("Random School", -4.0, 39.6)

	t.Run("disabled fence keeps everything", func(t *testing.T) {
		res := newTestResolver(false, GeofenceDiscard)
		_, keep := res.Resolve(7777, outOfBounds)
		assert.True(t, keep)
	})

	t.Run("discard policy drops out-of-bounds items", func(t *testing.T) {
		res := newTestResolver(true, GeofenceDiscard)
		_, keep := res.Resolve(7777, outOfBounds)
		assert.False(t, keep)

		_, keep = res.Resolve(7777, inBounds)
		assert.True(t, keep)
	})

	t.Run("keep policy tags and keeps", func(t *testing.T) {
		res := newTestResolver(true, GeofenceKeep)
		resolution, keep := res.Resolve(7777, outOfBounds)
		require.True(t, keep)
		assert.Equal(t, "Random School", resolution.Station)
	})

	t.Run("items without coordinates are never fenced", func(t *testing.T) {
		res := newTestResolver(true, GeofenceDiscard)
		_, keep := res.Resolve(7777, sensorsafrica.Item{Station: "Rooftop Lab"})
		assert.True(t, keep)
	})
}
