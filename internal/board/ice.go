package board

import (
	"fmt"
	"math"
)

const (
	minICEInput = 1
	maxICEInput = 10
)

// ICEScore is the mean of ease, impact and confidence rounded to two decimals.
func ICEScore(ease, impact, confidence int) float64 {
	mean := float64(ease+impact+confidence) / 3
	return math.Round(mean*100) / 100
}

func validateICE(ease, impact, confidence int) error {
	for _, in := range []struct {
		name  string
		value int
	}{
		{"ease", ease},
		{"impact", impact},
		{"confidence", confidence},
	} {
		if in.value < minICEInput || in.value > maxICEInput {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidInput, in.name, minICEInput, maxICEInput, in.value)
		}
	}
	return nil
}
