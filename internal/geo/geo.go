// Package geo encapsulates geohashing and bounding-range computation so
// the dispatch matcher's distance filtering is independent of the hash
// scheme. Geohash prefixes only approximate circles: a cover both under-
// and over-matches at cell boundaries, so callers must re-filter every
// candidate by true great-circle distance.
package geo

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
)

const earthRadiusKm = 6371.0088

// DefaultPrecision is used for stored courier geohashes. At 8 chars a
// cell is ~38m wide, well below any dispatch radius.
const DefaultPrecision = 8

// Range is a half-open [Start, End) interval over geohash strings.
// Strings prefixed by the originating cell sort inside the interval.
type Range struct {
	Start string
	End   string
}

// Encode returns the geohash of a position at DefaultPrecision.
func Encode(lat, lng float64) string {
	return geohash.EncodeWithPrecision(lat, lng, DefaultPrecision)
}

// cellMinKm is the smaller cell dimension per geohash precision. A
// radius no larger than the cell's minimum dimension is fully covered
// by the center cell plus its eight neighbors.
var cellMinKm = [...]float64{1: 4992, 2: 624, 3: 156, 4: 19.5, 5: 4.89, 6: 0.61, 7: 0.153, 8: 0.019}

// precisionFor picks the deepest precision whose cell still spans the
// radius, so the 3x3 neighborhood is a guaranteed cover.
func precisionFor(radiusKm float64) uint {
	for p := uint(len(cellMinKm) - 1); p > 1; p-- {
		if cellMinKm[p] >= radiusKm {
			return p
		}
	}
	return 1
}

// CoverRadius returns the geohash prefix ranges covering a circle of
// radiusKm around (lat, lng): the center cell and its eight neighbors,
// deduplicated, between one and nine ranges. The cover over-matches;
// it never intentionally under-matches.
func CoverRadius(lat, lng float64, radiusKm float64) []Range {
	p := precisionFor(radiusKm)
	center := geohash.EncodeWithPrecision(lat, lng, p)

	cells := append([]string{center}, geohash.Neighbors(center)...)
	sort.Strings(cells)

	ranges := make([]Range, 0, len(cells))
	for i, c := range cells {
		if i > 0 && c == cells[i-1] {
			continue
		}
		ranges = append(ranges, PrefixRange(c))
	}
	return ranges
}

// PrefixRange converts a geohash cell into the half-open string range
// containing every hash with that prefix.
func PrefixRange(prefix string) Range {
	end := []byte(prefix)
	end[len(end)-1]++
	return Range{Start: prefix, End: string(end)}
}

// DistanceKm is the haversine great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
