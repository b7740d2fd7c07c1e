// Package inflation describes how the issued supply grows over time.
package inflation

import "math"

// Default inflation parameters.
const (
	DefaultInitial        = 0.08
	DefaultTerminal       = 0.015
	DefaultTaper          = 0.15
	DefaultFoundation     = 0.05
	DefaultFoundationTerm = 7.0
)

// Inflation is a rate that starts at Initial and tapers every year until it
// reaches Terminal. A share of it goes to the foundation for a number of
// years and the rest goes to validators.
type Inflation struct {
	Initial        float64 `json:"initial"`
	Terminal       float64 `json:"terminal"`
	Taper          float64 `json:"taper"`
	Foundation     float64 `json:"foundation"`
	FoundationTerm float64 `json:"foundation_term"`
}

// Default returns the inflation used when the genesis file does not
// provide one.
func Default() Inflation {
	return Inflation{
		Initial:        DefaultInitial,
		Terminal:       DefaultTerminal,
		Taper:          DefaultTaper,
		Foundation:     DefaultFoundation,
		FoundationTerm: DefaultFoundationTerm,
	}
}

// Disabled returns an inflation that never issues anything.
func Disabled() Inflation {
	return Inflation{}
}

// Fixed returns an inflation with a constant rate paid entirely to
// validators.
func Fixed(validator float64) Inflation {
	return Inflation{
		Initial:  validator,
		Terminal: validator,
	}
}

// Total returns the inflation rate for the year.
func (i Inflation) Total(year float64) float64 {
	if year < 0 {
		panic("inflation: negative year")
	}

	tapered := i.Initial * math.Pow(1-i.Taper, year)
	return math.Max(tapered, i.Terminal)
}

// Validator returns the part of the rate paid to validators.
func (i Inflation) Validator(year float64) float64 {
	return i.Total(year) - i.FoundationRate(year)
}

// FoundationRate returns the part of the rate paid to the foundation.
func (i Inflation) FoundationRate(year float64) float64 {
	if year < i.FoundationTerm {
		return i.Foundation * i.Total(year)
	}

	return 0
}
