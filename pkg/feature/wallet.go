package feature

import (
	"log/slog"
	"slices"
	"sort"

	"github.com/mchmarny/walletscore/pkg/txn"
	"github.com/shopspring/decimal"
)

// Features is the per-wallet aggregate all component scores are derived from.
// It is built once by Aggregate and not modified afterwards.
type Features struct {
	Address          string          `json:"address" yaml:"address"`
	TransactionCount int             `json:"transaction_count" yaml:"transactionCount"`
	DepositCount     int             `json:"deposit_count" yaml:"depositCount"`
	BorrowCount      int             `json:"borrow_count" yaml:"borrowCount"`
	RepayCount       int             `json:"repay_count" yaml:"repayCount"`
	RedeemCount      int             `json:"redeem_count" yaml:"redeemCount"`
	LiquidationCount int             `json:"liquidation_count" yaml:"liquidationCount"`
	Assets           []string        `json:"assets" yaml:"assets"`
	Timestamps       []int64         `json:"timestamps" yaml:"timestamps"`
	FirstTimestamp   int64           `json:"first_timestamp" yaml:"firstTimestamp"`
	LastTimestamp    int64           `json:"last_timestamp" yaml:"lastTimestamp"`
	DepositUSD       decimal.Decimal `json:"deposit_usd" yaml:"depositUSD"`
	BorrowUSD        decimal.Decimal `json:"borrow_usd" yaml:"borrowUSD"`
	RepayUSD         decimal.Decimal `json:"repay_usd" yaml:"repayUSD"`
	RedeemUSD        decimal.Decimal `json:"redeem_usd" yaml:"redeemUSD"`
	VolumeUSD        decimal.Decimal `json:"volume_usd" yaml:"volumeUSD"`
}

// UniqueAssetCount is the number of distinct asset symbols the wallet used.
func (f *Features) UniqueAssetCount() int {
	return len(f.Assets)
}

// NetBalanceUSD estimates what the wallet holds in the protocol: supplied and
// repaid value minus borrowed and withdrawn value.
func (f *Features) NetBalanceUSD() decimal.Decimal {
	return f.DepositUSD.Add(f.RepayUSD).Sub(f.BorrowUSD).Sub(f.RedeemUSD)
}

// Gaps returns the intervals in seconds between consecutive transactions.
func (f *Features) Gaps() []float64 {
	if len(f.Timestamps) < 2 {
		return nil
	}
	gaps := make([]float64, 0, len(f.Timestamps)-1)
	for i := 1; i < len(f.Timestamps); i++ {
		gaps = append(gaps, float64(f.Timestamps[i]-f.Timestamps[i-1]))
	}
	return gaps
}

type builder struct {
	f      *Features
	assets map[string]bool
}

// Aggregate groups transactions by wallet and computes one Features per
// wallet, ordered by address. Amounts are normalized to USD using
// tokenDecimals.
func Aggregate(list []*txn.Transaction, tokenDecimals int32) []*Features {
	wallets := make(map[string]*builder)

	for _, t := range list {
		if t == nil || t.Wallet == "" {
			continue
		}

		b, ok := wallets[t.Wallet]
		if !ok {
			b = &builder{
				f:      &Features{Address: t.Wallet},
				assets: make(map[string]bool),
			}
			wallets[t.Wallet] = b
		}
		b.add(t, tokenDecimals)
	}

	out := make([]*Features, 0, len(wallets))
	for _, b := range wallets {
		out = append(out, b.build())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Address < out[j].Address
	})

	slog.Debug("wallets aggregated", "transactions", len(list), "wallets", len(out))
	return out
}

func (b *builder) add(t *txn.Transaction, tokenDecimals int32) {
	f := b.f
	usd := t.AmountUSD(tokenDecimals)

	f.TransactionCount++
	f.Timestamps = append(f.Timestamps, t.Timestamp)
	f.VolumeUSD = f.VolumeUSD.Add(usd)
	b.assets[t.Asset] = true

	switch t.Action {
	case txn.ActionDeposit:
		f.DepositCount++
		f.DepositUSD = f.DepositUSD.Add(usd)
	case txn.ActionBorrow:
		f.BorrowCount++
		f.BorrowUSD = f.BorrowUSD.Add(usd)
	case txn.ActionRepay:
		f.RepayCount++
		f.RepayUSD = f.RepayUSD.Add(usd)
	case txn.ActionRedeem:
		f.RedeemCount++
		f.RedeemUSD = f.RedeemUSD.Add(usd)
	case txn.ActionLiquidation:
		f.LiquidationCount++
	}
}

func (b *builder) build() *Features {
	f := b.f

	slices.Sort(f.Timestamps)
	f.FirstTimestamp = f.Timestamps[0]
	f.LastTimestamp = f.Timestamps[len(f.Timestamps)-1]

	f.Assets = make([]string, 0, len(b.assets))
	for a := range b.assets {
		f.Assets = append(f.Assets, a)
	}
	slices.Sort(f.Assets)

	return f
}
