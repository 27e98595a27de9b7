// Package shapefile reads paired .shp/.dbf files as a lazy, single-pass
// sequence of features. Only polygon and multi-polygon geometries are
// produced; the domain is land parcels, so point and line features in a
// survey archive are skipped silently rather than treated as errors.
package shapefile

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
)

// Feature is one parcel record: its geometry in source (projected)
// coordinates and its raw attribute map from the paired .dbf file.
type Feature struct {
	Geometry   orb.Geometry
	Attributes map[string]interface{}
}

// Reader iterates over the features of one shapefile. It supports exactly one
// pass: callers consume the sequence once per job and close it.
type Reader struct {
	shp        *shp.Reader
	fieldNames []string
	current    Feature
	row        int
	skipped    int
}

// Open opens the shapefile at path. The paired attribute file is located by
// base name; when it is absent, features carry empty attribute maps.
func Open(path string) (*Reader, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile %s: %w", path, err)
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}

	return &Reader{shp: reader, fieldNames: names}, nil
}

// Next advances to the next polygon feature. It returns false when the
// sequence is exhausted; check Err afterwards to distinguish end-of-file
// from a read failure.
func (r *Reader) Next() bool {
	for r.shp.Next() {
		row, shape := r.shp.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			// Not a parcel boundary. Skip, keep count for the job log.
			r.skipped++
			continue
		}

		r.current = Feature{
			Geometry:   polygonToOrb(poly),
			Attributes: r.readAttributes(row),
		}
		r.row = row
		return true
	}
	return false
}

// Feature returns the feature read by the last successful Next call.
func (r *Reader) Feature() Feature {
	return r.current
}

// Skipped returns the number of non-polygon features skipped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Err returns the first error encountered while reading.
func (r *Reader) Err() error {
	return r.shp.Err()
}

// Close releases the underlying file handles.
func (r *Reader) Close() error {
	return r.shp.Close()
}

// readAttributes reads the .dbf row for one feature into a raw map.
func (r *Reader) readAttributes(row int) map[string]interface{} {
	attrs := make(map[string]interface{}, len(r.fieldNames))
	for i, name := range r.fieldNames {
		attrs[name] = r.shp.ReadAttribute(row, i)
	}
	return attrs
}

// polygonToOrb converts a shapefile polygon record into an orb geometry.
// Shapefile polygons store all rings in one flat part list: outer rings are
// wound clockwise, holes counter-clockwise. Each outer ring starts a new
// polygon; holes attach to the polygon opened most recently. A record with a
// single outer ring becomes an orb.Polygon, anything else an orb.MultiPolygon.
func polygonToOrb(p *shp.Polygon) orb.Geometry {
	rings := splitRings(p)

	var polygons []orb.Polygon
	for _, ring := range rings {
		if isOuterRing(ring) || len(polygons) == 0 {
			polygons = append(polygons, orb.Polygon{ring})
		} else {
			last := len(polygons) - 1
			polygons[last] = append(polygons[last], ring)
		}
	}

	if len(polygons) == 1 {
		return polygons[0]
	}
	return orb.MultiPolygon(polygons)
}

// splitRings slices the flat point list into rings using the part offsets.
func splitRings(p *shp.Polygon) []orb.Ring {
	rings := make([]orb.Ring, 0, len(p.Parts))
	for i, start := range p.Parts {
		end := int32(len(p.Points))
		if i+1 < len(p.Parts) {
			end = p.Parts[i+1]
		}

		ring := make(orb.Ring, 0, end-start)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) > 0 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// isOuterRing reports whether the ring is wound clockwise, which marks an
// outer boundary in the shapefile spec. The shoelace sum is positive for
// clockwise rings in a y-up coordinate system.
func isOuterRing(ring orb.Ring) bool {
	var sum float64
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		sum += (ring[j][0] - ring[i][0]) * (ring[j][1] + ring[i][1])
	}
	return sum > 0
}
