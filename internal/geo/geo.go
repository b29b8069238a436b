// Package geo computes great-circle distances and shipping quotes for
// delivery orders.
package geo

import "math"

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371

// Coordinate is a WGS84 point. The zero value is the null island origin and
// is treated as "no coordinate" by callers.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the coordinate is unset.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// Quote is the result of a shipping computation.
type Quote struct {
	DistanceKm float64 `json:"distance_km"`
	Cost       int64   `json:"cost"`
}

// Distance returns the haversine distance between two coordinates in
// kilometers. It is symmetric and returns 0 for identical points.
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// ComputeShipping quotes the delivery cost between origin and destination at
// the given per-kilometer rate. The raw product is rounded up, so shipping
// never undercharges.
func ComputeShipping(origin, dest Coordinate, ratePerKm int64) Quote {
	d := Distance(origin, dest)
	return Quote{
		DistanceKm: d,
		Cost:       int64(math.Ceil(d * float64(ratePerKm))),
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
