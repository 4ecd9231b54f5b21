package cluster

import (
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// Brute is a direct density-reachability search. Its neighborhood differs
// from Density's: another point is a neighbor when its timestamp lies in the
// closed band [t-EpsMin, t+EpsMin] and its distance is strictly below EpsKm.
// The point itself is never its own neighbor.
type Brute struct{}

var _ Algorithm = Brute{}

func (Brute) Name() string { return "brute" }

type pointState uint8

const (
	unvisited pointState = iota
	noise
	member
)

// Label assigns labels from 1 upward; noise gets NoiseLabel. A point is noise
// while it has fewer than MinSamples-1 neighbors. Noise can still be absorbed
// by a later cluster that reaches it; cluster membership is final.
func (Brute) Label(points []track.Point, p Params) []int {
	n := len(points)
	labels := make([]int, n)
	state := make([]pointState, n)
	threshold := p.MinSamples - 1

	neighborsOf := func(i int) []int {
		var nb []int
		pt := points[i]
		for j, q := range points {
			// Compared in minutes so any finite EpsMin is a valid band.
			if j == i || gapMinutes(pt, q) > p.EpsMin {
				continue
			}
			if distanceKm(pt, q) < p.EpsKm {
				nb = append(nb, j)
			}
		}
		return nb
	}

	label := 0
	for i := range points {
		if state[i] != unvisited {
			continue
		}
		nb := neighborsOf(i)
		if len(nb) < threshold {
			state[i] = noise
			labels[i] = NoiseLabel
			continue
		}

		label++
		state[i] = member
		labels[i] = label

		queue := nb
		for len(queue) > 0 {
			q := queue[0]
			queue = queue[1:]

			switch state[q] {
			case member:
				continue
			case noise:
				// Already known not to be a core point.
				state[q] = member
				labels[q] = label
				continue
			}

			state[q] = member
			labels[q] = label
			if qn := neighborsOf(q); len(qn) >= threshold {
				for _, k := range qn {
					if state[k] != member {
						queue = append(queue, k)
					}
				}
			}
		}
	}
	return labels
}
