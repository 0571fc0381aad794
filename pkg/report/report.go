package report

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mchmarny/walletscore/pkg/score"
	"gonum.org/v1/gonum/stat"
)

const (
	// TopDefault is the number of best and worst wallets listed by default.
	TopDefault = 10

	rangeWidth = 100.0
	precision  = 2
)

// ErrNoScores is returned when an operation needs at least one scored wallet.
var ErrNoScores = errors.New("no wallet scores")

// PercentileRanks are the percentiles included in every report.
var PercentileRanks = []float64{25, 50, 75, 90, 95}

// Summary holds the distribution statistics of the final scores.
type Summary struct {
	TotalWallets int     `json:"total_wallets" yaml:"totalWallets"`
	Average      float64 `json:"average_score" yaml:"averageScore"`
	Median       float64 `json:"median_score" yaml:"medianScore"`
	Min          float64 `json:"min_score" yaml:"minScore"`
	Max          float64 `json:"max_score" yaml:"maxScore"`
	StdDev       float64 `json:"std_score" yaml:"stdScore"`
}

// Bucket is the number of wallets whose score falls into a range.
type Bucket struct {
	Label   string  `json:"label" yaml:"label"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Count   int     `json:"count" yaml:"count"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// CategoryBucket is a Bucket for one of the fixed risk categories.
type CategoryBucket struct {
	Category score.Category `json:"category" yaml:"category"`
	Bucket   `yaml:",inline"`
}

// Percentile is the score at a given rank.
type Percentile struct {
	Rank  float64 `json:"rank" yaml:"rank"`
	Score float64 `json:"score" yaml:"score"`
}

// Profile is the average behavior of the wallets in one risk category.
type Profile struct {
	Category   score.Category        `json:"category" yaml:"category"`
	Count      int                   `json:"count" yaml:"count"`
	Components score.ComponentScores `json:"avg_components" yaml:"avgComponents"`
	VolumeUSD  float64               `json:"avg_total_volume_usd" yaml:"avgTotalVolumeUSD"`
	Assets     float64               `json:"avg_assets_count" yaml:"avgAssetsCount"`
	Samples    []string              `json:"sample_wallets,omitempty" yaml:"sampleWallets,omitempty"`
}

// Report is the distributional analysis of a scored population.
type Report struct {
	Summary     Summary              `json:"summary" yaml:"summary"`
	Categories  []CategoryBucket     `json:"risk_categories" yaml:"riskCategories"`
	Ranges      []Bucket             `json:"score_ranges" yaml:"scoreRanges"`
	Percentiles []Percentile         `json:"percentiles" yaml:"percentiles"`
	Profiles    []Profile            `json:"category_profiles" yaml:"categoryProfiles"`
	Top         []*score.WalletScore `json:"top_wallets" yaml:"topWallets"`
	Bottom      []*score.WalletScore `json:"bottom_wallets" yaml:"bottomWallets"`
}

// Build analyzes the scored wallets. The input slice is not modified.
func Build(list []*score.WalletScore, topN int) *Report {
	if topN <= 0 {
		topN = TopDefault
	}

	values := Scores(list)
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	r := &Report{
		Summary:     Summarize(values),
		Categories:  CountCategories(values),
		Ranges:      CountRanges(values),
		Percentiles: make([]Percentile, 0, len(PercentileRanks)),
		Profiles:    Profiles(list),
	}

	if len(sorted) > 0 {
		for _, p := range PercentileRanks {
			r.Percentiles = append(r.Percentiles, Percentile{
				Rank:  p,
				Score: toFixed(quantile(sorted, p/100)),
			})
		}
	}

	r.Top, r.Bottom = Rank(list, topN)
	return r
}

// Scores extracts the final scores.
func Scores(list []*score.WalletScore) []float64 {
	out := make([]float64, 0, len(list))
	for _, ws := range list {
		if ws != nil {
			out = append(out, ws.Score)
		}
	}
	return out
}

// Summarize computes mean, median, population standard deviation, min and
// max. An empty input yields a zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)

	return Summary{
		TotalWallets: len(sorted),
		Average:      toFixed(mean),
		Median:       toFixed(quantile(sorted, 0.5)),
		Min:          toFixed(sorted[0]),
		Max:          toFixed(sorted[len(sorted)-1]),
		StdDev:       toFixed(std),
	}
}

// CountCategories bins every score into exactly one risk category.
func CountCategories(values []float64) []CategoryBucket {
	counts := make(map[score.Category]int, len(score.Bands))
	for _, v := range values {
		counts[score.CategoryOf(v)]++
	}

	out := make([]CategoryBucket, 0, len(score.Bands))
	for _, b := range score.Bands {
		n := counts[b.Category]
		out = append(out, CategoryBucket{
			Category: b.Category,
			Bucket: Bucket{
				Label:   b.Label,
				Min:     b.Min,
				Max:     b.Max,
				Count:   n,
				Percent: percent(n, len(values)),
			},
		})
	}
	return out
}

// CountRanges bins scores into ten 100-point ranges. The last range
// includes the maximum score.
func CountRanges(values []float64) []Bucket {
	n := int(score.MaxScore / rangeWidth)
	out := make([]Bucket, n)
	for i := range out {
		lo := float64(i) * rangeWidth
		out[i] = Bucket{
			Label: fmt.Sprintf("%.0f-%.0f", lo, lo+rangeWidth),
			Min:   lo,
			Max:   lo + rangeWidth,
		}
	}

	for _, v := range values {
		i := int(math.Floor(v / rangeWidth))
		i = max(0, min(n-1, i))
		out[i].Count++
	}

	for i := range out {
		out[i].Percent = percent(out[i].Count, len(values))
	}
	return out
}

// Profiles averages the component scores, volume and asset count of the
// wallets in each category. Categories with no wallets are omitted.
func Profiles(list []*score.WalletScore) []Profile {
	type acc struct {
		n       int
		sum     score.ComponentScores
		volume  float64
		assets  int
		samples []string
	}
	groups := make(map[score.Category]*acc)

	for _, ws := range list {
		if ws == nil {
			continue
		}
		c := score.CategoryOf(ws.Score)
		a, ok := groups[c]
		if !ok {
			a = &acc{}
			groups[c] = a
		}
		a.n++
		a.sum.Volume += ws.Components.Volume
		a.sum.Repayment += ws.Components.Repayment
		a.sum.Diversity += ws.Components.Diversity
		a.sum.Consistency += ws.Components.Consistency
		a.sum.Risk += ws.Components.Risk
		a.sum.Maturity += ws.Components.Maturity
		a.volume += ws.Stats.VolumeUSD
		a.assets += ws.Stats.Assets
		if len(a.samples) < 5 {
			a.samples = append(a.samples, ws.Address)
		}
	}

	out := make([]Profile, 0, len(groups))
	for _, b := range score.Bands {
		a, ok := groups[b.Category]
		if !ok {
			continue
		}
		n := float64(a.n)
		out = append(out, Profile{
			Category: b.Category,
			Count:    a.n,
			Components: score.ComponentScores{
				Volume:      toFixed(a.sum.Volume / n),
				Repayment:   toFixed(a.sum.Repayment / n),
				Diversity:   toFixed(a.sum.Diversity / n),
				Consistency: toFixed(a.sum.Consistency / n),
				Risk:        toFixed(a.sum.Risk / n),
				Maturity:    toFixed(a.sum.Maturity / n),
			},
			VolumeUSD: toFixed(a.volume / n),
			Assets:    toFixed(float64(a.assets) / n),
			Samples:   a.samples,
		})
	}
	return out
}

// Rank returns the n highest and n lowest scoring wallets, both ordered by
// descending score. Ties are broken by address.
func Rank(list []*score.WalletScore, n int) (top, bottom []*score.WalletScore) {
	sorted := make([]*score.WalletScore, 0, len(list))
	for _, ws := range list {
		if ws != nil {
			sorted = append(sorted, ws)
		}
	}

	slices.SortStableFunc(sorted, func(a, b *score.WalletScore) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})

	n = min(n, len(sorted))
	return sorted[:n], sorted[len(sorted)-n:]
}

// quantile returns the p-quantile of sorted values, interpolating linearly
// between the two closest ranks.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return toFixed(float64(n) / float64(total) * 100)
}

func toFixed(v float64) float64 {
	p := math.Pow(10, precision)
	return math.Round(v*p) / p
}
