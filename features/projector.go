package features

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var ErrMissingFeature = errors.New("feature not present in map")

// MissingPolicy decides what Project does with a name the map lacks.
type MissingPolicy int

const (
	// ZeroFill substitutes 0 and logs a warning.
	ZeroFill MissingPolicy = iota
	// Strict fails with ErrMissingFeature.
	Strict
)

// Projector lays a Map out as the vector a trained classifier expects.
type Projector struct {
	names  []string
	policy MissingPolicy
	logger hclog.Logger
}

// NewProjector returns a Projector for the given name ordering. A nil
// logger discards warnings.
func NewProjector(names []string, policy MissingPolicy, logger hclog.Logger) *Projector {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Projector{
		names:  append([]string(nil), names...),
		policy: policy,
		logger: logger,
	}
}

func (p *Projector) Names() []string {
	return p.names
}

// Project returns one value per name, in the projector's order.
func (p *Projector) Project(m *Map) ([]float64, error) {
	vector := make([]float64, len(p.names))
	for i, name := range p.names {
		v, ok := m.Float(name)
		if ok {
			vector[i] = v
			continue
		}
		if p.policy == Strict {
			return nil, errors.Wrapf(ErrMissingFeature, "%q (position %d)", name, i)
		}
		p.logger.Warn("feature missing from map, using 0", "feature", name, "position", i)
	}
	return vector, nil
}
