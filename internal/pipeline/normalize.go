package pipeline

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/strathmoreaq/airwatch/internal/catalog"
	"github.com/strathmoreaq/airwatch/internal/sensorsafrica"
)

// Normalizer converts raw payload items into canonical field maps. It is
// stateless apart from the injected value-type table.
type Normalizer struct {
	types catalog.ValueTypes
	log   logrus.FieldLogger
}

// NewNormalizer builds a normalizer over the given value-type table.
func NewNormalizer(types catalog.ValueTypes, log logrus.FieldLogger) *Normalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{types: types, log: log.WithField("component", "normalizer")}
}

// Normalize maps one raw item's (value_type, value) pairs to canonical
// field names. Unknown value types are preserved under their raw name so
// nothing is silently dropped; a malformed value drops only that field.
// Absent fields stay absent: no zero-defaulting happens here.
func (n *Normalizer) Normalize(item sensorsafrica.Item) map[string]float64 {
	fields := make(map[string]float64, len(item.SensorDataValues))
	for _, dv := range item.SensorDataValues {
		if dv.ValueType == "" {
			continue
		}
		value, err := strconv.ParseFloat(dv.Value, 64)
		if err != nil {
			n.log.WithFields(logrus.Fields{
				"value_type": dv.ValueType,
				"value":      dv.Value,
			}).Warn("dropping malformed sensor value")
			continue
		}
		fields[n.types.Canonical(dv.ValueType)] = value
	}
	return fields
}
