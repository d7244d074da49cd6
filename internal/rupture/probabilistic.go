package rupture

import (
	"math/rand/v2"

	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
	"github.com/mr1hm/go-rupture-hazard/internal/tom"
)

// ProbabilisticRupture is a Rupture with an annual occurrence rate and the
// temporal occurrence model that turns the rate into a probability.
type ProbabilisticRupture struct {
	Rupture
	occurrenceRate float64
	model          tom.TemporalOccurrenceModel
}

// NewProbabilistic runs the Rupture checks first, then validates the
// occurrence rate and model.
func NewProbabilistic(mag, rake float64, trt tectonic.RegionType, hypocenter *geo.Point, surface geo.Surface,
	occurrenceRate float64, model tom.TemporalOccurrenceModel) (*ProbabilisticRupture, error) {
	if err := validate(mag, trt, hypocenter, surface); err != nil {
		return nil, err
	}
	if !(occurrenceRate > 0) {
		return nil, invalid("occurrence rate must be positive")
	}
	if model == nil {
		return nil, invalid("temporal occurrence model is required")
	}

	return &ProbabilisticRupture{
		Rupture: Rupture{
			magnitude:  mag,
			rake:       rake,
			trt:        trt,
			hypocenter: hypocenter,
			surface:    surface,
		},
		occurrenceRate: occurrenceRate,
		model:          model,
	}, nil
}

func (r *ProbabilisticRupture) OccurrenceRate() float64 {
	return r.occurrenceRate
}

func (r *ProbabilisticRupture) TemporalOccurrenceModel() tom.TemporalOccurrenceModel {
	return r.model
}

// Probability is the chance of one or more occurrences within the model's
// time span. Recomputed on every call.
func (r *ProbabilisticRupture) Probability() float64 {
	return r.model.Probability(r.occurrenceRate, r.model.TimeSpan())
}

// SampleNumberOfOccurrences draws how many times the rupture occurs within
// the model's time span.
func (r *ProbabilisticRupture) SampleNumberOfOccurrences(src rand.Source) (int, error) {
	s, ok := r.model.(tom.Sampler)
	if !ok {
		return 0, ErrSamplingUnsupported
	}
	return s.SampleNumberOfOccurrences(r.occurrenceRate, r.model.TimeSpan(), src)
}
