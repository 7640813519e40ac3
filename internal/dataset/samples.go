package dataset

import (
	"fmt"
	"math"
	"strings"
)

// Kind names a built-in sample set
type Kind string

const (
	KindSine   Kind = "sine"
	KindCosine Kind = "cosine"
	KindLinear Kind = "linear"

	sampleCount = 100
)

// Kinds lists the built-in sample sets in menu order
func Kinds() []Kind {
	return []Kind{KindSine, KindCosine, KindLinear}
}

// ParseKind accepts a kind name, case-insensitively. "sin", "cos" and "lin"
// are accepted as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sine", "sin", "1":
		return KindSine, nil
	case "cosine", "cos", "2":
		return KindCosine, nil
	case "linear", "lin", "3":
		return KindLinear, nil
	}
	return "", &ValidationError{Reason: ReasonKind, Cause: fmt.Errorf("unknown sample set %q", s)}
}

// SampleSet returns a fresh copy of the named built-in series
func SampleSet(kind Kind) ([]float64, error) {
	var f func(i int) float64
	switch kind {
	case KindSine:
		f = func(i int) float64 { return math.Sin(2 * math.Pi * float64(i) / sampleCount) }
	case KindCosine:
		f = func(i int) float64 { return math.Cos(2 * math.Pi * float64(i) / sampleCount) }
	case KindLinear:
		f = func(i int) float64 { return float64(i) * 0.01 }
	default:
		return nil, &ValidationError{Reason: ReasonKind, Cause: fmt.Errorf("unknown sample set %q", kind)}
	}

	out := make([]float64, sampleCount)
	for i := range out {
		out[i] = round6(f(i))
	}
	return out, nil
}

// DefaultSeries is the series loaded at start-up
func DefaultSeries() []float64 {
	s, _ := SampleSet(KindSine)
	return s
}

func round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}
