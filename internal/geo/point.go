package geo

import "math"

// EarthRadius is the mean Earth radius in kilometers.
const EarthRadius = 6371.0

// Point is a location on or below the Earth's surface. Depth is in
// kilometers, positive downward.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Depth     float64 `json:"depth"`
}

// HorizontalDistance returns the great-circle distance in km, ignoring depth.
func (p Point) HorizontalDistance(other Point) float64 {
	lat1 := radians(p.Latitude)
	lat2 := radians(other.Latitude)
	dLat := lat2 - lat1
	dLon := radians(other.Longitude - p.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Distance combines the horizontal distance with the depth difference.
func (p Point) Distance(other Point) float64 {
	h := p.HorizontalDistance(other)
	v := other.Depth - p.Depth
	return math.Hypot(h, v)
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
