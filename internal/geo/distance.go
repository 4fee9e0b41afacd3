// Package geo holds great-circle distance math.
package geo

import "math"

const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether p is a real coordinate on the globe.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

func (p Point) DistanceTo(o Point) float64 {
	return DistanceKm(p.Lat, p.Lng, o.Lat, o.Lng)
}

// DistanceKm returns the haversine distance between two coordinates in
// kilometres. Inputs are not validated; NaN in means NaN out.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	φ1 := toRad(lat1)
	φ2 := toRad(lat2)
	dφ := toRad(lat2 - lat1)
	dλ := toRad(lng2 - lng1)

	a := math.Sin(dφ/2)*math.Sin(dφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
