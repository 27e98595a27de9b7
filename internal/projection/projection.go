// Package projection transforms survey geometries from the registry's fixed
// source projection (UTM, zone configured, 48N in production) to geographic
// WGS84, and derives the area and centroid used downstream. The transform is
// stateless and deterministic; it is applied ring-by-ring, polygon-by-polygon.
package projection

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/wroge/wgs84"
)

// Reprojector converts UTM easting/northing coordinates to lon/lat and
// computes parcel metrics. Construct once at startup and share; it is
// safe for concurrent use.
type Reprojector struct {
	forward    wgs84.Func
	raiDivisor float64
}

// Metrics holds the derived measurements for one parcel geometry.
type Metrics struct {
	AreaSqm  float64
	AreaRai  float64
	Centroid orb.Point
}

// NewReprojector creates a Reprojector for the given UTM zone.
// raiDivisor converts square meters to the local area unit (1600 m² = 1 rai).
func NewReprojector(utmZone int, northern bool, raiDivisor float64) *Reprojector {
	return &Reprojector{
		forward:    wgs84.UTM(float64(utmZone), northern).To(wgs84.LonLat()),
		raiDivisor: raiDivisor,
	}
}

// Reproject transforms a polygon or multi-polygon geometry to WGS84.
// Other geometry types are rejected; the parser already filters them out.
func (r *Reprojector) Reproject(g orb.Geometry) (orb.Geometry, error) {
	switch geom := g.(type) {
	case orb.Polygon:
		return r.reprojectPolygon(geom), nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			out[i] = r.reprojectPolygon(poly)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

// Measure computes the area (square meters and rai) and centroid of an
// already-reprojected WGS84 geometry. Area uses a geodesic computation so the
// result is in meters even though the coordinates are degrees; the centroid
// is the planar centroid, which is accurate at parcel scale.
func (r *Reprojector) Measure(g orb.Geometry) Metrics {
	areaSqm := math.Abs(geo.Area(g))
	centroid, _ := planar.CentroidArea(g)

	return Metrics{
		AreaSqm:  areaSqm,
		AreaRai:  areaSqm / r.raiDivisor,
		Centroid: centroid,
	}
}

func (r *Reprojector) reprojectPolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		newRing := make(orb.Ring, len(ring))
		for j, pt := range ring {
			lon, lat, _ := r.forward(pt[0], pt[1], 0)
			newRing[j] = orb.Point{lon, lat}
		}
		out[i] = newRing
	}
	return out
}
