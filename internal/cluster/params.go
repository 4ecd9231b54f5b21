// Package cluster groups discretized storm event points into spatiotemporal
// clusters (storm families).
package cluster

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-data-clusters/internal/track"
	"github.com/go-playground/validator/v10"
)

// NoiseLabel is the label of points that belong to no cluster.
const NoiseLabel = -1

// ErrInvalidParams is wrapped by every parameter validation failure.
var ErrInvalidParams = errors.New("invalid cluster parameters")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Params are the neighborhood thresholds shared by every algorithm.
type Params struct {
	// EpsKm is the great-circle distance within which two points are close.
	EpsKm float64 `validate:"gt=0"`
	// EpsMin is the time gap, in minutes, within which two points are close.
	EpsMin float64 `validate:"gte=0"`
	// MinSamples is the neighborhood size, counting the point itself, that
	// makes a point a core point.
	MinSamples int `validate:"gte=1"`
}

// Validate reports malformed parameters as ErrInvalidParams.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Algorithm assigns a label to every point. Points sharing a label other than
// NoiseLabel form one cluster. Label values carry no meaning beyond identity.
type Algorithm interface {
	Name() string
	Label(points []track.Point, p Params) []int
}

// ParseAlgorithm maps "density" (or "") and "brute" to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "density", "dbscan":
		return Density{}, nil
	case "brute":
		return Brute{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParams, name)
	}
}
