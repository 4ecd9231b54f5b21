package cluster

import (
	"runtime"

	"github.com/couchcryptid/storm-data-clusters/internal/track"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelThreshold is the point count from which the pairwise
// neighborhood computation is spread across workers.
const DefaultParallelThreshold = 100

// Density is DBSCAN over a precomputed 0/1 distance: two points are at
// distance 0 (linked) when their time gap is at most EpsMin and their
// great-circle distance at most EpsKm, and at distance 1 otherwise. With a
// clustering radius of 0.5 a point's neighborhood is exactly the set of points
// it is linked to, itself included.
type Density struct {
	// ParallelThreshold defaults to DefaultParallelThreshold.
	ParallelThreshold int
	// Workers defaults to GOMAXPROCS.
	Workers int
}

var _ Algorithm = Density{}

func (Density) Name() string { return "density" }

// Label runs DBSCAN. Noise points get NoiseLabel; clusters are numbered from
// zero in discovery order.
func (d Density) Label(points []track.Point, p Params) []int {
	neighbors := d.neighborhoods(points, p)

	core := make([]bool, len(points))
	for i, nb := range neighbors {
		core[i] = len(nb) >= p.MinSamples
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = NoiseLabel
	}

	next := 0
	for i := range points {
		if labels[i] != NoiseLabel || !core[i] {
			continue
		}
		labels[i] = next
		stack := []int{i}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, u := range neighbors[v] {
				if labels[u] != NoiseLabel {
					continue
				}
				labels[u] = next
				if core[u] {
					stack = append(stack, u)
				}
			}
		}
		next++
	}
	return labels
}

func linked(a, b track.Point, p Params) bool {
	// Negation of "either bound violated": a NaN distance within the time
	// band counts as linked.
	return !(gapMinutes(a, b) > p.EpsMin || distanceKm(a, b) > p.EpsKm)
}

// neighborhoods returns, for every point, the indices of the points linked to
// it, ascending. Rows are independent, so above the threshold candidates come
// from an R-tree and rows are computed by a bounded pool of workers that each
// own a disjoint set of rows.
func (d Density) neighborhoods(points []track.Point, p Params) [][]int {
	n := len(points)
	out := make([][]int, n)

	pairwise := func(i int) {
		var nb []int
		for j := range points {
			if linked(points[i], points[j], p) {
				nb = append(nb, j)
			}
		}
		out[i] = nb
	}

	threshold := d.ParallelThreshold
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	if n < threshold {
		for i := range points {
			pairwise(i)
		}
		return out
	}

	row := pairwise
	if idx, ok := newCandidateIndex(points, p); ok {
		row = func(i int) {
			var nb []int
			for _, j := range idx.candidates(points[i]) {
				if linked(points[i], points[j], p) {
					nb = append(nb, j)
				}
			}
			out[i] = nb
		}
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range points {
		g.Go(func() error {
			row(i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
