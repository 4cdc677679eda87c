package pipeline

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

// GeofencePolicy decides what happens to readings whose coordinates fall
// outside the configured bounding box.
type GeofencePolicy string

const (
	// GeofenceDiscard drops out-of-bounds readings.
	GeofenceDiscard GeofencePolicy = "discard"
	// GeofenceKeep keeps out-of-bounds readings under their resolved
	// label, logging a warning.
	GeofenceKeep GeofencePolicy = "keep"
)

// Resolution is the outcome of station resolution for one raw item.
type Resolution struct {
	Station  string
	Location string
}

// labelStrategy extracts a station label from one of the payload shapes
// the upstream has used over time. Strategies are tried in order until
// one succeeds.
type labelStrategy func(item sensorsafrica.Item) (string, bool)

func structuredLocationName(item sensorsafrica.Item) (string, bool) {
	if item.Location != nil && item.Location.Name != "" {
		return item.Location.Name, true
	}
	return "", false
}

func freeTextLocation(item sensorsafrica.Item) (string, bool) {
	if item.Location != nil && item.Location.FreeText != "" {
		return item.Location.FreeText, true
	}
	return "", false
}

func coordinateLabel(item sensorsafrica.Item) (string, bool) {
	if lat, lon, ok := item.Location.Coords(); ok {
		return fmt.Sprintf("%.4f,%.4f", lat, lon), true
	}
	return "", false
}

func alternateKeys(item sensorsafrica.Item) (string, bool) {
	if s := strings.TrimSpace(item.Station); s != "" {
		return s, true
	}
	if s := strings.TrimSpace(item.Place); s != "" {
		return s, true
	}
	return "", false
}

// Resolver decides which physical station a raw item belongs to. The
// static catalog is authoritative; items without a catalog entry fall
// back to geofence screening and a chain of label-extraction strategies.
// Resolution never fails: an item that defeats every strategy lands
// under a synthetic per-sensor station name rather than being lost.
type Resolver struct {
	catalog         catalog.Catalog
	aliases         catalog.AliasTable
	geofence        catalog.Geofence
	geofenceEnabled bool
	policy          GeofencePolicy
	strategies      []labelStrategy
	log             logrus.FieldLogger
}

// NewResolver builds a resolver. The geofence is only consulted when
// enabled; the policy selects discard versus tag-and-keep for
// out-of-bounds items.
func NewResolver(cat catalog.Catalog, aliases catalog.AliasTable, fence catalog.Geofence, enabled bool, policy GeofencePolicy, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if policy == "" {
		policy = GeofenceDiscard
	}
	return &Resolver{
		catalog:         cat,
		aliases:         aliases,
		geofence:        fence,
		geofenceEnabled: enabled,
		policy:          policy,
		strategies: []labelStrategy{
			structuredLocationName,
			freeTextLocation,
			coordinateLabel,
			alternateKeys,
		},
		log: log.WithField("component", "resolver"),
	}
}

// Resolve maps a raw item to a station. The boolean is false only when
// the geofence is enabled, the item is out of bounds, and the policy is
// discard.
func (r *Resolver) Resolve(sensorID int, item sensorsafrica.Item) (Resolution, bool) {
	if r.geofenceEnabled {
		if lat, lon, ok := item.Location.Coords(); ok && !r.geofence.Contains(lat, lon) {
			if r.policy == GeofenceDiscard {
				r.log.WithFields(logrus.Fields{"sensor_id": sensorID, "lat": lat, "lon": lon}).
					Warn("discarding out-of-bounds reading")
				return Resolution{}, false
			}
			r.log.WithFields(logrus.Fields{"sensor_id": sensorID, "lat": lat, "lon": lon}).
				Warn("keeping out-of-bounds reading")
		}
	}

	if entry, ok := r.catalog.Lookup(sensorID); ok {
		return Resolution{Station: entry.Station, Location: entry.CoordString()}, true
	}

	location := ""
	if lat, lon, ok := item.Location.Coords(); ok {
		location = fmt.Sprintf("%.4f,%.4f", lat, lon)
	}

	for _, strategy := range r.strategies {
		if label, ok := strategy(item); ok {
			return Resolution{Station: r.aliases.Canonical(label), Location: location}, true
		}
	}

	// No catalog entry, no location, no label. Keep the data anyway
	// under a synthetic station so nothing is silently lost.
	r.log.WithField("sensor_id", sensorID).Warn("unresolvable station, using sensor fallback name")
	return Resolution{Station: fmt.Sprintf("sensor-%d", sensorID), Location: location}, true
}
