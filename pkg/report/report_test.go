package report

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(values ...float64) []*score.WalletScore {
	list := make([]*score.WalletScore, 0, len(values))
	for i, v := range values {
		list = append(list, &score.WalletScore{
			Address:  fmt.Sprintf("w%02d", i),
			Score:    v,
			Category: score.CategoryOf(v),
			Components: score.ComponentScores{
				Volume: v / 10, Repayment: 50, Diversity: 25,
				Consistency: 50, Risk: 100, Maturity: 10,
			},
			Stats: score.Stats{Assets: i + 1, VolumeUSD: v * 10},
		})
	}
	return list
}

func categoryCount(t *testing.T, r *Report, c score.Category) int {
	t.Helper()
	for _, b := range r.Categories {
		if b.Category == c {
			return b.Count
		}
	}
	t.Fatalf("category %s not in report", c)
	return 0
}

func TestBuild(t *testing.T) {
	list := scored(281.4, 929.7, 512.3, 655.0, 700.1)
	r := Build(list, 0)

	assert.Equal(t, 5, r.Summary.TotalWallets)
	assert.Equal(t, 615.7, r.Summary.Average)
	assert.Equal(t, 655.0, r.Summary.Median)
	assert.Equal(t, 281.4, r.Summary.Min)
	assert.Equal(t, 929.7, r.Summary.Max)
	assert.InDelta(t, 214.34, r.Summary.StdDev, 0.01)

	assert.Equal(t, 1, categoryCount(t, r, score.CategoryHighRisk))
	assert.Equal(t, 1, categoryCount(t, r, score.CategoryModerate))
	assert.Equal(t, 2, categoryCount(t, r, score.CategoryGood))
	assert.Equal(t, 1, categoryCount(t, r, score.CategoryElite))
	assert.Equal(t, "High Risk (0-400)", r.Categories[0].Label)
	assert.Equal(t, 20.0, r.Categories[0].Percent)

	require.Len(t, r.Percentiles, len(PercentileRanks))
	assert.Equal(t, 512.3, r.Percentiles[0].Score)
	assert.Equal(t, 655.0, r.Percentiles[1].Score)
	assert.Equal(t, 700.1, r.Percentiles[2].Score)

	require.Len(t, r.Top, 5)
	assert.Equal(t, 929.7, r.Top[0].Score)
	assert.Equal(t, 281.4, r.Bottom[len(r.Bottom)-1].Score)

	// input order is untouched
	assert.Equal(t, 281.4, list[0].Score)
	assert.Equal(t, 929.7, list[1].Score)
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, 10)
	assert.Equal(t, Summary{}, r.Summary)
	assert.Empty(t, r.Percentiles)
	assert.Empty(t, r.Top)
	assert.Empty(t, r.Bottom)
	assert.Empty(t, r.Profiles)
	for _, b := range r.Categories {
		assert.Zero(t, b.Count)
		assert.Zero(t, b.Percent)
	}
}

func TestCategoryBoundaries(t *testing.T) {
	r := Build(scored(399.99, 400.0), 10)
	assert.Equal(t, 1, categoryCount(t, r, score.CategoryHighRisk))
	assert.Equal(t, 1, categoryCount(t, r, score.CategoryModerate))
}

func TestCountsSumToTotal(t *testing.T) {
	values := make([]float64, 0, 1001)
	for i := 0; i <= 1000; i++ {
		values = append(values, float64(i))
	}

	cats := CountCategories(values)
	total := 0
	for _, b := range cats {
		total += b.Count
	}
	assert.Equal(t, len(values), total)

	ranges := CountRanges(values)
	require.Len(t, ranges, 10)
	total = 0
	for _, b := range ranges {
		total += b.Count
	}
	assert.Equal(t, len(values), total)
	assert.Equal(t, 101, ranges[9].Count, "1000 belongs to the last range")
	assert.Equal(t, "900-1000", ranges[9].Label)
}

func TestSummarize_Single(t *testing.T) {
	s := Summarize([]float64{500})
	assert.Equal(t, 1, s.TotalWallets)
	assert.Equal(t, 500.0, s.Average)
	assert.Equal(t, 500.0, s.Median)
	assert.Equal(t, 0.0, s.StdDev)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, quantile(sorted, 0.5))
	assert.Equal(t, 1.75, quantile(sorted, 0.25))
	assert.Equal(t, 4.0, quantile(sorted, 1))
	assert.Equal(t, 0.0, quantile(nil, 0.5))
}

func TestProfiles(t *testing.T) {
	p := Profiles(scored(100, 300, 900))
	require.Len(t, p, 2)
	assert.Equal(t, score.CategoryHighRisk, p[0].Category)
	assert.Equal(t, 2, p[0].Count)
	assert.Equal(t, 20.0, p[0].Components.Volume)
	assert.Equal(t, []string{"w00", "w01"}, p[0].Samples)
	assert.Equal(t, 2000.0, p[0].VolumeUSD)
	assert.Equal(t, 1.5, p[0].Assets)
	assert.Equal(t, score.CategoryElite, p[1].Category)
	assert.Equal(t, 9000.0, p[1].VolumeUSD)
	assert.Equal(t, 3.0, p[1].Assets)
}

func TestRank(t *testing.T) {
	list := scored(10, 50, 50, 90)
	top, bottom := Rank(list, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "w03", top[0].Address)
	assert.Equal(t, "w01", top[1].Address)
	require.Len(t, bottom, 2)
	assert.Equal(t, "w02", bottom[0].Address)
	assert.Equal(t, "w00", bottom[1].Address)
}

func TestWriteChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, WriteChart(path, scored(281.4, 929.7, 512.3, 655.0, 700.1)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteChart_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.png")
	assert.ErrorIs(t, WriteChart(path, nil), ErrNoScores)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
