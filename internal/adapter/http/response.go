package http

import (
	"math"
	"time"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/pipeline"
)

type eventsResponse struct {
	Count  int         `json:"count"`
	Events []eventJSON `json:"events"`
}

// eventJSON mirrors domain.EventRecord. Blank coordinates and lengths are
// null since JSON has no NaN.
type eventJSON struct {
	EventID       int64     `json:"event_id"`
	EpisodeID     int64     `json:"episode_id"`
	EventType     string    `json:"event_type"`
	State         string    `json:"state"`
	CZName        string    `json:"cz_name"`
	CZTimezone    string    `json:"cz_timezone"`
	BeginDateTime time.Time `json:"begin_date_time"`
	EndDateTime   time.Time `json:"end_date_time"`
	BeginLat      *float64  `json:"begin_lat"`
	BeginLon      *float64  `json:"begin_lon"`
	EndLat        *float64  `json:"end_lat"`
	EndLon        *float64  `json:"end_lon"`
	TorFScale     string    `json:"tor_f_scale,omitempty"`
	TorLength     *float64  `json:"tor_length,omitempty"`
	TorWidth      *float64  `json:"tor_width,omitempty"`
	Injuries      int       `json:"injuries_direct"`
	Deaths        int       `json:"deaths_direct"`
}

func toEventJSON(r domain.EventRecord) eventJSON {
	return eventJSON{
		EventID:       r.EventID,
		EpisodeID:     r.EpisodeID,
		EventType:     string(r.EventType),
		State:         r.State,
		CZName:        r.CZName,
		CZTimezone:    r.CZTimezone,
		BeginDateTime: r.BeginDateTime,
		EndDateTime:   r.EndDateTime,
		BeginLat:      optional(r.BeginLat),
		BeginLon:      optional(r.BeginLon),
		EndLat:        optional(r.EndLat),
		EndLon:        optional(r.EndLon),
		TorFScale:     r.TorFScale,
		TorLength:     optional(r.TorLength),
		TorWidth:      optional(r.TorWidth),
		Injuries:      r.InjuriesDirect,
		Deaths:        r.DeathsDirect,
	}
}

func optional(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

type clustersResponse struct {
	RunID    string        `json:"run_id"`
	Events   int           `json:"events"`
	Points   int           `json:"points"`
	Noise    int           `json:"noise"`
	Clusters []clusterJSON `json:"clusters"`
}

type clusterJSON struct {
	cluster.Summary
	Tornadoes   cluster.TornadoStats `json:"tornadoes"`
	EventIDs    []int64              `json:"event_ids"`
	Description string               `json:"description"`
}

func toClustersResponse(res *pipeline.ClusterResult, zone string) (clustersResponse, error) {
	g := res.Group
	resp := clustersResponse{
		RunID:    res.RunID,
		Events:   res.Events,
		Points:   g.NumPoints(),
		Noise:    g.Noise().Len(),
		Clusters: make([]clusterJSON, 0, g.Len()),
	}
	for _, c := range g.Clusters() {
		summary, err := c.Summary()
		if err != nil {
			return clustersResponse{}, err
		}
		events := c.Events()
		ids := make([]int64, len(events))
		for i, e := range events {
			ids[i] = e.EventID
		}
		resp.Clusters = append(resp.Clusters, clusterJSON{
			Summary:     summary,
			Tornadoes:   c.TornadoStats(),
			EventIDs:    ids,
			Description: c.Describe(cluster.DescribeOptions{Zone: zone}),
		})
	}
	return resp, nil
}
