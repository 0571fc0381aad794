package score

import (
	"errors"
	"fmt"
	"math"
)

const weightSumEpsilon = 1e-6

// ErrInvalidWeights is returned when a weight set cannot be used for scoring.
var ErrInvalidWeights = errors.New("invalid component weights")

// Weights is the share each component contributes to the final score.
type Weights struct {
	Volume      float64 `json:"transaction_volume" yaml:"transactionVolume" default:"0.20" validate:"gte=0,lte=1"`
	Repayment   float64 `json:"repayment_behavior" yaml:"repaymentBehavior" default:"0.25" validate:"gte=0,lte=1"`
	Diversity   float64 `json:"portfolio_diversity" yaml:"portfolioDiversity" default:"0.15" validate:"gte=0,lte=1"`
	Consistency float64 `json:"activity_consistency" yaml:"activityConsistency" default:"0.15" validate:"gte=0,lte=1"`
	Risk        float64 `json:"risk_management" yaml:"riskManagement" default:"0.15" validate:"gte=0,lte=1"`
	Maturity    float64 `json:"wallet_maturity" yaml:"walletMaturity" default:"0.10" validate:"gte=0,lte=1"`
}

// DefaultWeights returns the standard model weights.
func DefaultWeights() Weights {
	return Weights{
		Volume:      0.20,
		Repayment:   0.25,
		Diversity:   0.15,
		Consistency: 0.15,
		Risk:        0.15,
		Maturity:    0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Volume + w.Repayment + w.Diversity + w.Consistency + w.Risk + w.Maturity
}

// Validate checks that every weight is in [0,1] and that they sum to 1.
// The first out of range weight, in component order, is reported.
func (w Weights) Validate() error {
	for _, nw := range w.named() {
		if math.IsNaN(nw.value) || nw.value < 0 || nw.value > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidWeights, nw.name, nw.value)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightSumEpsilon {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.6f", ErrInvalidWeights, sum)
	}
	return nil
}

type namedWeight struct {
	name  string
	value float64
}

func (w Weights) named() []namedWeight {
	return []namedWeight{
		{"transaction_volume", w.Volume},
		{"repayment_behavior", w.Repayment},
		{"portfolio_diversity", w.Diversity},
		{"activity_consistency", w.Consistency},
		{"risk_management", w.Risk},
		{"wallet_maturity", w.Maturity},
	}
}
