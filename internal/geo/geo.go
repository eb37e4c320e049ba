// Package geo provides the geohash and great-circle distance helpers used
// by nearby conditions and the geo index.
package geo

import (
	"math"
	"strings"
)

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxPrecision is the number of geohash characters produced by Encode.
const MaxPrecision = 12

// Encode returns the base32 geohash of the coordinate at full precision.
// Use a prefix of the result for coarser cells.
func Encode(longitude, latitude float64) string {
	var (
		latLo, latHi = -90.0, 90.0
		lonLo, lonHi = -180.0, 180.0
		sb           strings.Builder
		bit, ch      int
		even         = true
	)
	for sb.Len() < MaxPrecision {
		if even {
			mid := (lonLo + lonHi) / 2
			if longitude >= mid {
				ch |= 1 << (4 - bit)
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if latitude >= mid {
				ch |= 1 << (4 - bit)
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return sb.String()
}

// cellSizes holds the approximate minimum cell dimension in meters per
// geohash precision 1..12.
var cellSizes = [MaxPrecision]float64{
	5004000, 625000, 156000, 19500, 4900, 610, 152.8, 19.1, 4.78, 0.6, 0.149, 0.018,
}

// PrecisionForRadius returns the geohash prefix length whose cell still
// spans at least the given radius in meters. Entities within the radius
// of a point usually share this prefix with the point; the prefilter is
// always followed by an exact distance check.
func PrecisionForRadius(radius float64) int {
	for p := MaxPrecision; p >= 1; p-- {
		if cellSizes[p-1] >= radius {
			return p
		}
	}
	return 1
}

// earthRadiusMeters is the mean earth radius used by Distance.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle (haversine) distance in meters
// between two coordinates given in degrees.
func Distance(lon1, lat1, lon2, lat2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
