package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/walletscore/pkg/feature"
	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, score.DefaultWeights(), c.Weights)
	assert.Equal(t, feature.DefaultParams(), c.Features)
	assert.Equal(t, 10, c.Top)
	assert.Equal(t, 0, c.Workers)
	assert.Equal(t, "wallet_scores_report.json", c.Output)
	assert.Equal(t, "wallet_score_analysis.png", c.Chart)
	assert.NoError(t, c.Validate())
}

func TestConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")

	c1, err := ReadOrCreate(dir)
	require.NoError(t, err)
	require.NotNil(t, c1)
	assert.FileExists(t, filepath.Join(dir, FileName))

	c1.Top = 25
	c1.Workers = 2
	c1.Features.BalanceMultiplier = false
	c1.Weights.Volume = 0.25
	c1.Weights.Repayment = 0.20

	require.NoError(t, Save(dir, c1))

	c2, err := ReadOrCreate(dir)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestLoad_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("top: 5\nfeatures:\n  neutralRepayment: 70\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Top)
	assert.Equal(t, 70.0, c.Features.NeutralRepayment)
	assert.Equal(t, 30.0, c.Features.MaturityDays)
	assert.True(t, c.Features.BalanceMultiplier)
	assert.Equal(t, score.DefaultWeights(), c.Weights)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"weights sum":   "weights:\n  transactionVolume: 0.5\n",
		"negative top":  "top: -1\n",
		"neutral range": "features:\n  neutralConsistency: 150\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(body), 0600))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("top: [1"), 0600))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSave_Errors(t *testing.T) {
	assert.Error(t, Save("", Default()))
	assert.ErrorIs(t, Save(t.TempDir(), nil), ErrInvalidConfig)

	_, err := ReadOrCreate("")
	assert.Error(t, err)
}

func TestGetOrCreateHomeDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir, created, err := GetOrCreateHomeDir("walletscore")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, ".walletscore", filepath.Base(dir))

	_, created, err = GetOrCreateHomeDir(".walletscore")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = GetOrCreateHomeDir("")
	assert.Error(t, err)
}
