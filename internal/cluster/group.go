package cluster

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/track"
)

// Group is the outcome of one clustering run: the clusters ordered by begin
// time, then end time, then size, plus the noise cluster, which is always
// present even when empty.
type Group struct {
	clusters []*Cluster
	noise    *Cluster
}

// EmptyGroup is a group with no clusters and an empty noise cluster.
func EmptyGroup() *Group {
	return &Group{noise: newCluster(NoiseLabel, nil, nil)}
}

// newGroup buckets points by label. labels[i] belongs to points[i].
func newGroup(points []track.Point, labels []int, table []domain.EventRecord) *Group {
	byLabel := make(map[int][]track.Point)
	var order []int
	for i, p := range points {
		l := labels[i]
		if _, seen := byLabel[l]; !seen {
			order = append(order, l)
		}
		byLabel[l] = append(byLabel[l], p)
	}

	g := &Group{noise: newCluster(NoiseLabel, byLabel[NoiseLabel], table)}
	for _, l := range order {
		if l == NoiseLabel {
			continue
		}
		g.clusters = append(g.clusters, newCluster(l, byLabel[l], table))
	}
	slices.SortStableFunc(g.clusters, compareClusters)
	return g
}

func compareClusters(a, b *Cluster) int {
	return cmp.Or(
		a.Begin().Compare(b.Begin()),
		a.End().Compare(b.End()),
		cmp.Compare(a.Len(), b.Len()),
	)
}

// Clusters returns the non-noise clusters in order.
func (g *Group) Clusters() []*Cluster { return slices.Clone(g.clusters) }

// Noise returns the cluster of unclustered points.
func (g *Group) Noise() *Cluster { return g.noise }

// Len is the number of clusters, not counting noise.
func (g *Group) Len() int { return len(g.clusters) }

// NumPoints is the number of clustered points, not counting noise.
func (g *Group) NumPoints() int {
	n := 0
	for _, c := range g.clusters {
		n += c.Len()
	}
	return n
}

// Biggest returns the cluster with the most points, or nil when there are no
// clusters. Ties go to the earliest.
func (g *Group) Biggest() *Cluster {
	var best *Cluster
	for _, c := range g.clusters {
		if best == nil || c.Len() > best.Len() {
			best = c
		}
	}
	return best
}

// ByLabel looks a cluster up by its label. NoiseLabel returns the noise
// cluster.
func (g *Group) ByLabel(label int) (*Cluster, bool) {
	if label == NoiseLabel {
		return g.noise, true
	}
	for _, c := range g.clusters {
		if c.label == label {
			return c, true
		}
	}
	return nil, false
}
