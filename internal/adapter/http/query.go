package http

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/storm-data-clusters/internal/cluster"
	"github.com/couchcryptid/storm-data-clusters/internal/domain"
	"github.com/couchcryptid/storm-data-clusters/internal/pipeline"
	"github.com/couchcryptid/storm-data-clusters/internal/stormevents"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// naiveLayouts are accepted for start and end. They carry no zone and are
// read as wall clock in the query's time zone.
var naiveLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"}

type window struct {
	Start time.Time `validate:"required"`
	End   time.Time `validate:"required"`
}

// parseQuery reads a pipeline query from URL parameters:
//
//	start, end            RFC 3339, or a naive date / date-time
//	types, states, months comma separated lists
//	hours                 comma separated hours of day
//	tz                    target time zone
//	eps_km, eps_min       cluster neighborhood
//	min_samples           cluster core size
//	algorithm             density or brute
func parseQuery(v url.Values, d Defaults) (pipeline.Query, error) {
	var q pipeline.Query
	var err error

	var w window
	if w.Start, err = parseTime(v.Get("start")); err != nil {
		return q, fmt.Errorf("invalid start: %w", err)
	}
	if w.End, err = parseTime(v.Get("end")); err != nil {
		return q, fmt.Errorf("invalid end: %w", err)
	}
	if err := validate.Struct(w); err != nil {
		return q, errors.New("start and end are required")
	}
	q.Start, q.End = w.Start, w.End

	q.Filter = stormevents.Options{
		States:   list(v.Get("states")),
		Months:   list(v.Get("months")),
		TimeZone: d.TimeZone,
	}
	for _, t := range list(v.Get("types")) {
		q.Filter.EventTypes = append(q.Filter.EventTypes, domain.ParseEventType(t))
	}
	for _, h := range list(v.Get("hours")) {
		n, err := strconv.Atoi(h)
		if err != nil {
			return q, fmt.Errorf("invalid hours: %q", h)
		}
		q.Filter.Hours = append(q.Filter.Hours, n)
	}
	if tz := v.Get("tz"); tz != "" {
		q.Filter.TimeZone = tz
	}

	q.Params = d.Params
	if q.Params.EpsKm, err = floatParam(v, "eps_km", q.Params.EpsKm); err != nil {
		return q, err
	}
	if q.Params.EpsMin, err = floatParam(v, "eps_min", q.Params.EpsMin); err != nil {
		return q, err
	}
	if s := v.Get("min_samples"); s != "" {
		if q.Params.MinSamples, err = strconv.Atoi(s); err != nil {
			return q, fmt.Errorf("invalid min_samples: %q", s)
		}
	}
	if name := v.Get("algorithm"); name != "" {
		if q.Algorithm, err = cluster.ParseAlgorithm(name); err != nil {
			return q, err
		}
	}
	return q, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, domain.Naive); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func floatParam(v url.Values, name string, fallback float64) (float64, error) {
	s := v.Get(name)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, s)
	}
	return f, nil
}

func list(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
