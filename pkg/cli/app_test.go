package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mchmarny/walletscore/pkg/data"
	"github.com/mchmarny/walletscore/pkg/filter"
	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/mchmarny/walletscore/pkg/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const (
	testInput     = "testdata/transactions.json"
	testMalformed = "testdata/malformed.json"

	testRecords = 74
	testLoaded  = 72
	testWallets = 8
)

type testEnv struct {
	dir string
	db  string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &testEnv{
		dir: dir,
		db:  filepath.Join(dir, "test.db"),
	}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := newApp(&buf).Run(context.Background(), append([]string{appName}, args...))
	return buf.String(), err
}

func (e *testEnv) score(t *testing.T, extra ...string) *scoreResult {
	t.Helper()
	args := []string{"--db", e.db, "score",
		"--output", e.path("report.json"),
		"--chart", e.path("chart.png"),
	}
	args = append(args, extra...)
	args = append(args, testInput)

	out, err := runApp(t, args...)
	require.NoError(t, err)

	var res scoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	return &res
}

func TestScore(t *testing.T) {
	env := setupTestEnv(t)

	res := env.score(t, "--metrics-file", env.path("run.prom"), "--save")

	assert.Equal(t, testInput, res.Input)
	assert.Equal(t, testRecords, res.Load.Total)
	assert.Equal(t, testLoaded, res.Load.Loaded)
	assert.Equal(t, testRecords-testLoaded, res.Load.Skipped)
	assert.Equal(t, testWallets, res.Summary.TotalWallets)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, env.path("chart.png"), res.Chart)

	total := 0
	for _, c := range res.Categories {
		total += c.Count
	}
	assert.Equal(t, testWallets, total)

	b, err := os.ReadFile(env.path("report.json"))
	require.NoError(t, err)
	var doc scoreReport
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, res.RunID, doc.RunID)
	assert.Len(t, doc.Wallets, testWallets)
	assert.Len(t, doc.Report.Ranges, 10)
	assert.Len(t, doc.Report.Percentiles, 5)
	assert.Equal(t, score.DefaultWeights(), doc.Weights)
	assert.Contains(t, string(b), `"net_balance_usd"`)
	for _, ws := range doc.Wallets {
		assert.GreaterOrEqual(t, ws.Score, 0.0)
		assert.LessOrEqual(t, ws.Score, 1000.0)
	}

	assert.FileExists(t, env.path("chart.png"))
	assert.FileExists(t, env.path("run.prom"))
	assert.FileExists(t, filepath.Join(env.dir, "."+appName, "config.yaml"))
}

func TestScore_FilterNoViz(t *testing.T) {
	env := setupTestEnv(t)

	res := env.score(t, "--no-viz", "--where", "score > 1000.0")
	assert.Equal(t, 0, res.Summary.TotalWallets)
	assert.Empty(t, res.Chart)
	assert.Empty(t, res.RunID)
	assert.NoFileExists(t, env.path("chart.png"))
	assert.FileExists(t, env.path("report.json"))
}

func TestScore_EmptyFilterSkipsChart(t *testing.T) {
	env := setupTestEnv(t)

	res := env.score(t, "--where", "transactions < 0")
	assert.Empty(t, res.Chart)
	assert.NoFileExists(t, env.path("chart.png"))
}

func TestScore_Errors(t *testing.T) {
	env := setupTestEnv(t)

	_, err := runApp(t, "--db", env.db, "score", "--output", env.path("r.json"), testMalformed)
	assert.ErrorIs(t, err, txn.ErrMalformedInput)

	_, err = runApp(t, "--db", env.db, "score")
	assert.Error(t, err)

	_, err = runApp(t, "--db", env.db, "score", "--where", "score +", testInput)
	assert.ErrorIs(t, err, filter.ErrInvalidExpression)

	_, err = runApp(t, "--db", env.db, "score", env.path("missing.json"))
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	env := setupTestEnv(t)
	res := env.score(t, "--no-viz", "--save")

	out, err := runApp(t, "--db", env.db, "runs", "list")
	require.NoError(t, err)
	var runs []*data.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, testLoaded, runs[0].Loaded)
	assert.Equal(t, score.DefaultWeights(), runs[0].Weights)

	out, err = runApp(t, "--db", env.db, "runs", "show", "--id", res.RunID, "--limit", "3")
	require.NoError(t, err)
	var detail runDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, res.RunID, detail.Run.ID)
	require.Len(t, detail.Wallets, 3)
	assert.GreaterOrEqual(t, detail.Wallets[0].Score, detail.Wallets[1].Score)

	out, err = runApp(t, "--db", env.db, "runs", "show", "--id", res.RunID, "--where", "score >= 0.0")
	require.NoError(t, err)
	detail = runDetail{}
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Len(t, detail.Wallets, testWallets)
	assert.Equal(t, "score >= 0.0", detail.Filter)

	_, err = runApp(t, "--db", env.db, "runs", "show", "--id", "missing")
	assert.ErrorIs(t, err, data.ErrRunNotFound)

	_, err = runApp(t, "--db", env.db, "runs", "show")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	env := setupTestEnv(t)
	dir := env.path("conf")

	out, err := runApp(t, "config", "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.yaml"))

	_, err = runApp(t, "config", "init", "--dir", dir)
	assert.Error(t, err)

	_, err = runApp(t, "config", "init", "--dir", dir, "--force")
	assert.NoError(t, err)

	out, err = runApp(t, "--format", "yaml", "--config", filepath.Join(dir, "config.yaml"), "config", "show")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, filepath.Join(dir, "config.yaml"), info["path"])
	assert.Contains(t, out, "repaymentBehavior: 0.25")
}

func TestBadFlags(t *testing.T) {
	setupTestEnv(t)

	_, err := runApp(t, "--format", "xml", "config", "show")
	assert.Error(t, err)

	_, err = runApp(t, "--config", "testdata/missing.yaml", "config", "show")
	assert.Error(t, err)
}
