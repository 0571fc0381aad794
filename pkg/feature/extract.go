package feature

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// MaxComponent is the upper bound of every component score.
	MaxComponent = 100.0

	secondsPerDay        = 86400.0
	volumeLogFactor      = 20.0
	repayRatioFactor     = 80.0
	repayBase            = 20.0
	assetPoints          = 25.0
	dispersionFactor     = 50.0
	liquidationPenalty   = 20.0
	balanceMultiplierMin = 0.8
	balanceMultiplierAdd = 0.4
	minConsistencyGaps   = 2
)

// Params holds the tunable values used when a wallet's history is too sparse
// for an extractor to measure anything.
type Params struct {
	NeutralRepayment   float64 `json:"neutral_repayment" yaml:"neutralRepayment" default:"50" validate:"gte=0,lte=100"`
	NeutralConsistency float64 `json:"neutral_consistency" yaml:"neutralConsistency" default:"50" validate:"gte=0,lte=100"`
	MaturityDays       float64 `json:"maturity_days" yaml:"maturityDays" default:"30" validate:"gt=0"`
	TokenDecimals      int32   `json:"token_decimals" yaml:"tokenDecimals" default:"18" validate:"gte=0,lte=36"`
	BalanceMultiplier  bool    `json:"balance_multiplier" yaml:"balanceMultiplier" default:"true"`
}

// DefaultParams returns the parameters used when none are configured.
func DefaultParams() Params {
	return Params{
		NeutralRepayment:   50,
		NeutralConsistency: 50,
		MaturityDays:       30,
		TokenDecimals:      18,
		BalanceMultiplier:  true,
	}
}

// Volume rewards transaction count with diminishing returns.
func Volume(f *Features) float64 {
	return clamp(math.Log1p(float64(f.TransactionCount)) * volumeLogFactor)
}

// Repayment scores how many borrows were followed by a repay.
func Repayment(f *Features, p Params) float64 {
	if f.BorrowCount == 0 {
		return clamp(p.NeutralRepayment)
	}
	ratio := float64(f.RepayCount) / float64(f.BorrowCount)
	return clamp(ratio*repayRatioFactor + repayBase)
}

// Diversity awards points per distinct asset.
func Diversity(f *Features) float64 {
	return clamp(float64(f.UniqueAssetCount()) * assetPoints)
}

// Consistency penalizes irregular activity using the coefficient of
// variation of the gaps between transactions.
func Consistency(f *Features, p Params) float64 {
	gaps := f.Gaps()
	if len(gaps) < minConsistencyGaps {
		return clamp(p.NeutralConsistency)
	}

	mean, std := stat.PopMeanStdDev(gaps, nil)
	if mean == 0 {
		return MaxComponent
	}
	return clamp(MaxComponent - math.Min(MaxComponent, std/mean*dispersionFactor))
}

// Risk deducts a fixed penalty per liquidation. When enabled, wallets that
// both supply and withdraw are scaled by how balanced those flows are.
func Risk(f *Features, p Params) float64 {
	s := RiskBase(f)
	if p.BalanceMultiplier {
		s *= BalanceMultiplier(f)
	}
	return clamp(s)
}

// RiskBase is the risk score before any balance adjustment.
func RiskBase(f *Features) float64 {
	return math.Max(0, MaxComponent-float64(f.LiquidationCount)*liquidationPenalty)
}

// BalanceMultiplier is 1 unless the wallet has both deposits and redeems, in
// which case it ranges from 0.8 (one-sided) to 1.2 (even).
func BalanceMultiplier(f *Features) float64 {
	if f.DepositCount == 0 || f.RedeemCount == 0 {
		return 1
	}
	lo := float64(min(f.DepositCount, f.RedeemCount))
	hi := float64(max(f.DepositCount, f.RedeemCount))
	return balanceMultiplierMin + balanceMultiplierAdd*lo/hi
}

// Maturity grows linearly with the span between first and last transaction
// and saturates after p.MaturityDays.
func Maturity(f *Features, p Params) float64 {
	if f.TransactionCount < 2 || p.MaturityDays <= 0 {
		return 0
	}
	days := float64(f.LastTimestamp-f.FirstTimestamp) / secondsPerDay
	return clamp(days / p.MaturityDays * MaxComponent)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxComponent {
		return MaxComponent
	}
	return v
}
