package cluster

import (
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// pointExtent is the side of the box each indexed point occupies.
const pointExtent = 1e-9

// searchPad widens query boxes past the exact bounds. rtreego treats
// touching boxes as disjoint.
const searchPad = 1e-6

type indexedPoint struct {
	rect  rtreego.Rect
	index int
}

func (p indexedPoint) Bounds() rtreego.Rect { return p.rect }

// candidateIndex is an R-tree over (latitude, minutes since the first
// point). A great-circle distance is never shorter than the arc between the
// two latitudes, so a box of EpsKm in latitude and EpsMin in time holds
// every point linked to its center.
type candidateIndex struct {
	tree   *rtreego.Rtree
	origin track.Point
	dLat   float64
	dMin   float64
}

// newCandidateIndex returns false when some point has no usable latitude.
func newCandidateIndex(points []track.Point, p Params) (*candidateIndex, bool) {
	if len(points) == 0 {
		return nil, false
	}
	for _, pt := range points {
		if math.IsNaN(pt.Lat) || math.IsInf(pt.Lat, 0) {
			return nil, false
		}
	}

	idx := &candidateIndex{
		tree:   rtreego.NewTree(2, 25, 50),
		origin: points[0],
		dLat:   p.EpsKm/earthRadiusKm*180/math.Pi + searchPad,
		dMin:   p.EpsMin + searchPad,
	}
	for i, pt := range points {
		idx.tree.Insert(indexedPoint{rect: idx.coords(pt).ToRect(pointExtent), index: i})
	}
	return idx, true
}

func (x *candidateIndex) coords(pt track.Point) rtreego.Point {
	return rtreego.Point{pt.Lat, pt.Timestamp.Sub(x.origin.Timestamp).Minutes()}
}

// candidates returns the indices, ascending, of points that may be linked to
// pt. Callers still apply the exact predicate.
func (x *candidateIndex) candidates(pt track.Point) []int {
	c := x.coords(pt)
	box, err := rtreego.NewRect(
		rtreego.Point{c[0] - x.dLat, c[1] - x.dMin},
		[]float64{2 * x.dLat, 2 * x.dMin},
	)
	if err != nil {
		return nil
	}
	hits := x.tree.SearchIntersect(box)
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(indexedPoint).index
	}
	slices.Sort(out)
	return out
}
