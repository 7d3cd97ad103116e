package geo

import (
	"math"

	"github.com/example/ride-dispatch/internal/models"
)

const earthRadiusKm = 6371.0

// HaversineKm is the great-circle distance between two points in
// kilometers. Every proximity filter in the dispatch core uses this
// metric; planar shortcuts are only allowed as a prefilter before a
// haversine refinement.
func HaversineKm(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Box is a latitude/longitude rectangle used as a cheap store-side
// prefilter. It always contains the full radius circle; callers must
// refine candidates with HaversineKm. A box whose longitude span
// crosses the antimeridian has MinLng > MaxLng and covers the two
// ranges [MinLng, 180] and [-180, MaxLng].
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Wraps reports whether the longitude span crosses the antimeridian.
func (b Box) Wraps() bool { return b.MinLng > b.MaxLng }

// BoundingBox returns a box guaranteed to contain every point within
// radiusKm of center. Longitude degrees shrink with latitude, so the
// longitude span is widened by 1/cos(lat); near the poles the box
// degrades to the full longitude range rather than risk excluding
// candidates. A span reaching past longitude ±180 wraps instead of
// clamping, so a query near the date line still sees candidates on the
// other side.
func BoundingBox(center models.Coord, radiusKm float64) Box {
	latDelta := radiusKm / 111.0 // ~111km per degree of latitude
	box := Box{
		MinLat: math.Max(center.Lat-latDelta, -90),
		MaxLat: math.Min(center.Lat+latDelta, 90),
		MinLng: -180,
		MaxLng: 180,
	}
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat > 0.01 {
		lngDelta := latDelta / cosLat
		if lngDelta < 180 {
			box.MinLng = normalizeLng(center.Lng - lngDelta)
			box.MaxLng = normalizeLng(center.Lng + lngDelta)
		}
	}
	return box
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(c models.Coord) bool {
	if c.Lat < b.MinLat || c.Lat > b.MaxLat {
		return false
	}
	if b.Wraps() {
		return c.Lng >= b.MinLng || c.Lng <= b.MaxLng
	}
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
