// Package geo holds the great-circle math used for driver search and job pricing.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Box is a lat/lng rectangle that contains every point within a radius of its centre.
// Longitudes are kept in [-180, 180]; a box crossing the antimeridian has
// MinLng > MaxLng.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox returns a box enclosing the circle of radiusKm around center.
// It over-approximates; callers refine with Haversine. A circle that reaches
// a pole spans every longitude.
func BoundingBox(center Point, radiusKm float64) Box {
	if radiusKm < 0 {
		radiusKm = 0
	}
	angular := radiusKm / EarthRadiusKm
	dLat := angular * 180 / math.Pi
	box := Box{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLng: -180,
		MaxLng: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 || angular >= math.Pi/2 {
		box.MinLat = math.Max(-90, box.MinLat)
		box.MaxLat = math.Min(90, box.MaxLat)
		return box
	}

	dLng := math.Asin(math.Sin(angular)/math.Cos(toRad(center.Lat))) * 180 / math.Pi
	if dLng >= 180 {
		return box
	}
	lng := normalizeLng(center.Lng)
	box.MinLng = normalizeLng(lng - dLng)
	box.MaxLng = normalizeLng(lng + dLng)
	return box
}

// WrapsAntimeridian reports whether the box straddles the 180th meridian.
func (b Box) WrapsAntimeridian() bool {
	return b.MinLng > b.MaxLng
}

// LngRanges splits the box's longitude span into one or two plain intervals.
func (b Box) LngRanges() [][2]float64 {
	if b.WrapsAntimeridian() {
		return [][2]float64{{b.MinLng, 180}, {-180, b.MaxLng}}
	}
	return [][2]float64{{b.MinLng, b.MaxLng}}
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	lng := normalizeLng(p.Lng)
	for _, r := range b.LngRanges() {
		if lng >= r[0] && lng <= r[1] {
			return true
		}
	}
	return false
}

// ETAMinutes returns ceil(distanceKm / speedKmh * 60). A non-positive speed yields 0.
func ETAMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 || distanceKm <= 0 {
		return 0
	}
	// The epsilon keeps float noise on exact minutes from rounding up.
	return int(math.Ceil(distanceKm/speedKmh*60 - 1e-9))
}

// OffsetNorth returns the point distanceKm due north of p.
func OffsetNorth(p Point, distanceKm float64) Point {
	return Point{Lat: p.Lat + distanceKm/EarthRadiusKm*180/math.Pi, Lng: p.Lng}
}

// normalizeLng maps any longitude into [-180, 180], keeping 180 itself.
func normalizeLng(lng float64) float64 {
	if lng >= -180 && lng <= 180 {
		return lng
	}
	lng = math.Mod(lng+180, 360)
	if lng < 0 {
		lng += 360
	}
	return lng - 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
