package geo

import "strings"

// CoarsePrecision is the geohash length exposed in API responses.
// Five characters is roughly a 5km cell: enough to show "nearby"
// without pinpointing where someone lives.
const CoarsePrecision = 5

// base32 is the geohash base32 alphabet (no a, i, l, o).
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode encodes a point into a geohash string of the given length.
// A precision below 1 falls back to CoarsePrecision.
func Encode(p Point, precision int) string {
	if precision < 1 {
		precision = CoarsePrecision
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	var hash strings.Builder
	hash.Grow(precision)

	bits := 0
	var ch uint

	even := true
	for hash.Len() < precision {
		if even {
			mid := (lngRange[0] + lngRange[1]) / 2
			if p.Lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if p.Lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		even = !even
		bits++

		if bits == 5 {
			hash.WriteByte(base32[ch])
			bits = 0
			ch = 0
		}
	}

	return hash.String()
}

// Coarse returns the coarse geohash for an optional point, or "" when the
// point is missing or out of range.
func Coarse(p *Point) string {
	if p == nil || !p.Valid() {
		return ""
	}
	return Encode(*p, CoarsePrecision)
}
