package cluster

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// earthRadiusKm is the mean radius of the IUGG ellipsoid.
const earthRadiusKm = 6371.009

// GreatCircleKm returns the spherical distance between two coordinates in
// kilometers (atan2 form of the Vincenty formula on a sphere).
func GreatCircleKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	sinLat1, cosLat1 := math.Sincos(lat1Rad)
	sinLat2, cosLat2 := math.Sincos(lat2Rad)
	sinDLon, cosDLon := math.Sincos(deltaLon)

	y := math.Hypot(cosLat2*sinDLon, cosLat1*sinLat2-sinLat1*cosLat2*cosDLon)
	x := sinLat1*sinLat2 + cosLat1*cosLat2*cosDLon
	return earthRadiusKm * math.Atan2(y, x)
}

func distanceKm(a, b track.Point) float64 {
	return GreatCircleKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

func gapMinutes(a, b track.Point) float64 {
	return math.Abs(float64(a.Timestamp.Sub(b.Timestamp))) / float64(time.Minute)
}
