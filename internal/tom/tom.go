package tom

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrInvalidTimeSpan = errors.New("time span must be positive")
	// ErrTooManyOccurrences is returned when the expected count does not fit in an int.
	ErrTooManyOccurrences = errors.New("expected number of occurrences is too large to sample")
)

// Means and draws at or above maxLambda do not fit in an int.
const maxLambda = float64(math.MaxInt)

// TemporalOccurrenceModel converts an occurrence rate into the probability
// of one or more occurrences over a time span.
type TemporalOccurrenceModel interface {
	TimeSpan() float64
	Probability(rate, timeSpan float64) float64
}

// Sampler is implemented by models that can draw stochastic occurrence counts.
type Sampler interface {
	SampleNumberOfOccurrences(rate, timeSpan float64, src rand.Source) (int, error)
}

// Poisson is the time-independent occurrence model. The time span shares
// its unit with the rate it is paired with (years for annual rates).
type Poisson struct {
	timeSpan float64
}

func NewPoisson(timeSpan float64) (*Poisson, error) {
	if !(timeSpan > 0) || math.IsInf(timeSpan, 1) {
		return nil, ErrInvalidTimeSpan
	}
	return &Poisson{timeSpan: timeSpan}, nil
}

func (p *Poisson) TimeSpan() float64 {
	return p.timeSpan
}

// Probability returns 1 - exp(-rate * timeSpan).
func (p *Poisson) Probability(rate, timeSpan float64) float64 {
	return -math.Expm1(-rate * timeSpan)
}

func (p *Poisson) SampleNumberOfOccurrences(rate, timeSpan float64, src rand.Source) (int, error) {
	lambda := rate * timeSpan
	if math.IsNaN(lambda) || lambda >= maxLambda {
		return 0, ErrTooManyOccurrences
	}
	if lambda <= 0 {
		return 0, nil
	}
	d := distuv.Poisson{Lambda: lambda, Src: src}
	n := d.Rand()
	if math.IsNaN(n) || n >= maxLambda {
		return 0, ErrTooManyOccurrences
	}
	return int(n), nil
}
