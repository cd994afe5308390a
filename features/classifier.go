package features

import (
	"github.com/pkg/errors"
)

type Label int

const (
	Malicious  Label = 0
	Legitimate Label = 1
)

func (l Label) String() string {
	switch l {
	case Malicious:
		return "malicious"
	case Legitimate:
		return "legitimate"
	}
	return "unknown"
}

// Prediction is what a trained model returns for one vector.
// Probabilities is indexed by Label.
type Prediction struct {
	Label         Label
	Probabilities [2]float64
}

// Classifier is a trained model. Implementations live outside this module.
type Classifier interface {
	Predict(vector []float64) (Prediction, error)
}

type Verdict struct {
	Label          Label   `json:"label"`
	ProbMalicious  float64 `json:"prob_malicious"`
	ProbLegitimate float64 `json:"prob_legitimate"`
	// Confidence is the probability of the more likely class.
	Confidence float64 `json:"confidence"`
}

// Classify projects m with p and runs c on the result.
func Classify(c Classifier, p *Projector, m *Map) (*Verdict, error) {
	vector, err := p.Project(m)
	if err != nil {
		return nil, err
	}

	pred, err := c.Predict(vector)
	if err != nil {
		return nil, errors.Wrap(err, "classifier")
	}
	if pred.Label != Malicious && pred.Label != Legitimate {
		return nil, errors.Errorf("classifier returned unknown label %d", pred.Label)
	}

	v := &Verdict{
		Label:          pred.Label,
		ProbMalicious:  pred.Probabilities[Malicious],
		ProbLegitimate: pred.Probabilities[Legitimate],
	}
	v.Confidence = v.ProbMalicious
	if v.ProbLegitimate > v.Confidence {
		v.Confidence = v.ProbLegitimate
	}
	return v, nil
}
