package score

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/mchmarny/walletscore/pkg/feature"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxScore is the upper bound of the final score.
	MaxScore = 1000.0

	scorePrecision = 2
)

// ComponentScores holds the six [0,100] sub-scores of a wallet.
type ComponentScores struct {
	Volume      float64 `json:"transaction_volume" yaml:"transactionVolume"`
	Repayment   float64 `json:"repayment_behavior" yaml:"repaymentBehavior"`
	Diversity   float64 `json:"portfolio_diversity" yaml:"portfolioDiversity"`
	Consistency float64 `json:"activity_consistency" yaml:"activityConsistency"`
	Risk        float64 `json:"risk_management" yaml:"riskManagement"`
	Maturity    float64 `json:"wallet_maturity" yaml:"walletMaturity"`
}

// Stats carries the wallet facts reports and filters need alongside the score.
type Stats struct {
	Transactions int     `json:"total_transactions" yaml:"totalTransactions"`
	Liquidations int     `json:"liquidations" yaml:"liquidations"`
	Assets       int     `json:"assets_count" yaml:"assetsCount"`
	VolumeUSD    float64 `json:"total_volume_usd" yaml:"totalVolumeUSD"`
	NetBalance   float64 `json:"net_balance_usd" yaml:"netBalanceUSD"`
}

// WalletScore is the scored result for a single wallet.
type WalletScore struct {
	Address    string          `json:"address" yaml:"address"`
	Score      float64         `json:"credit_score" yaml:"creditScore"`
	Category   Category        `json:"category" yaml:"category"`
	Components ComponentScores `json:"components" yaml:"components"`
	Stats      Stats           `json:"stats" yaml:"stats"`
}

// Scorer computes wallet scores with a fixed set of weights and parameters.
type Scorer struct {
	weights Weights
	params  feature.Params
	workers int
}

// NewScorer validates the weights and returns a Scorer. Workers <= 0 uses
// the number of CPUs.
func NewScorer(w Weights, p feature.Params, workers int) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scorer{
		weights: w,
		params:  p,
		workers: workers,
	}, nil
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Components runs all six extractors against a wallet.
func (s *Scorer) Components(f *feature.Features) ComponentScores {
	return ComponentScores{
		Volume:      feature.Volume(f),
		Repayment:   feature.Repayment(f, s.params),
		Diversity:   feature.Diversity(f),
		Consistency: feature.Consistency(f, s.params),
		Risk:        feature.Risk(f, s.params),
		Maturity:    feature.Maturity(f, s.params),
	}
}

// Combine applies the weights to component scores and scales the result to
// [0,1000], rounded to two decimals.
func (s *Scorer) Combine(c ComponentScores) float64 {
	w := s.weights
	sum := w.Volume*c.Volume +
		w.Repayment*c.Repayment +
		w.Diversity*c.Diversity +
		w.Consistency*c.Consistency +
		w.Risk*c.Risk +
		w.Maturity*c.Maturity

	final := MaxScore * sum / feature.MaxComponent
	return toFixed(math.Max(0, math.Min(MaxScore, final)), scorePrecision)
}

// ScoreWallet scores a single wallet.
func (s *Scorer) ScoreWallet(f *feature.Features) *WalletScore {
	c := s.Components(f)
	final := s.Combine(c)

	volume, _ := f.VolumeUSD.Float64()
	balance, _ := f.NetBalanceUSD().Round(scorePrecision).Float64()

	slog.Debug("wallet scored",
		"address", f.Address,
		"score", final,
		"volume", fmt.Sprintf("%.2f", c.Volume),
		"repayment", fmt.Sprintf("%.2f", c.Repayment),
		"diversity", fmt.Sprintf("%.2f", c.Diversity),
		"consistency", fmt.Sprintf("%.2f", c.Consistency),
		"risk", fmt.Sprintf("%.2f", c.Risk),
		"maturity", fmt.Sprintf("%.2f", c.Maturity))

	return &WalletScore{
		Address:    f.Address,
		Score:      final,
		Category:   CategoryOf(final),
		Components: c,
		Stats: Stats{
			Transactions: f.TransactionCount,
			Liquidations: f.LiquidationCount,
			Assets:       f.UniqueAssetCount(),
			VolumeUSD:    volume,
			NetBalance:   balance,
		},
	}
}

// ScoreAll scores every wallet. Wallets are independent, so they are scored
// concurrently; the result keeps the order of the input.
func (s *Scorer) ScoreAll(ctx context.Context, wallets []*feature.Features) ([]*WalletScore, error) {
	out := make([]*WalletScore, len(wallets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	total := len(wallets)
	logEvery := total / 10
	if logEvery < 1 {
		logEvery = 1
	}

	for i, f := range wallets {
		if f == nil || f.TransactionCount == 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = s.ScoreWallet(f)
			if (i+1)%logEvery == 0 {
				slog.Debug("scoring progress", "scored", i+1, "total", total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error scoring wallets: %w", err)
	}

	list := make([]*WalletScore, 0, len(out))
	for _, ws := range out {
		if ws != nil {
			list = append(list, ws)
		}
	}

	slog.Debug("wallets scored", "wallets", len(list))
	return list, nil
}

// toFixed rounds num to the given number of decimals.
func toFixed(num float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Round(num*p) / p
}
