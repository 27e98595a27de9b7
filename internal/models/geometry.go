package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Geometry wraps an orb geometry for persistence as GeoJSON.
// Only Polygon and MultiPolygon geometries flow through the pipeline;
// the wrapper does not restrict the type so centroids reuse it via Point.
type Geometry struct {
	Geometry orb.Geometry
}

// NewGeometry wraps an orb geometry.
func NewGeometry(g orb.Geometry) Geometry {
	return Geometry{Geometry: g}
}

// Value implements driver.Valuer. The geometry is serialized as a GeoJSON
// geometry object for storage in a JSONB column.
func (g Geometry) Value() (driver.Value, error) {
	if g.Geometry == nil {
		return nil, nil
	}

	data, err := geojson.NewGeometry(g.Geometry).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry to GeoJSON: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for reading GeoJSON geometry from the database.
func (g *Geometry) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("failed to scan Geometry: expected []byte or string, got %T", value)
	}

	geom := &geojson.Geometry{}
	if err := geom.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to unmarshal GeoJSON geometry: %w", err)
	}

	g.Geometry = geom.Geometry()
	return nil
}

// MarshalJSON implements json.Marshaler, emitting a GeoJSON geometry object.
func (g Geometry) MarshalJSON() ([]byte, error) {
	return geojson.NewGeometry(g.Geometry).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	geom := &geojson.Geometry{}
	if err := geom.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to unmarshal geometry: %w", err)
	}
	g.Geometry = geom.Geometry()
	return nil
}

// Point returns the wrapped geometry as an orb.Point.
// Returns the zero point if the geometry is not a point.
func (g Geometry) Point() orb.Point {
	if p, ok := g.Geometry.(orb.Point); ok {
		return p
	}
	return orb.Point{}
}
