package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mchmarny/walletscore/pkg/config"
	"github.com/mchmarny/walletscore/pkg/data"
	"github.com/mchmarny/walletscore/pkg/feature"
	"github.com/mchmarny/walletscore/pkg/filter"
	"github.com/mchmarny/walletscore/pkg/metrics"
	"github.com/mchmarny/walletscore/pkg/report"
	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/mchmarny/walletscore/pkg/txn"
	"github.com/urfave/cli/v3"
)

const (
	outputFlagName  = "output"
	chartFlagName   = "chart"
	noVizFlagName   = "no-viz"
	whereFlagName   = "where"
	topFlagName     = "top"
	metricsFlagName = "metrics-file"
	saveFlagName    = "save"
	workersFlagName = "workers"

	reportFileMode = 0644
)

func newScoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "score",
		Usage:     "Score every wallet in a JSON transaction file",
		ArgsUsage: "<transactions.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  outputFlagName,
				Usage: "Path of the JSON report (optional, default from config)",
			},
			&cli.StringFlag{
				Name:  chartFlagName,
				Usage: "Path of the PNG chart (optional, default from config)",
			},
			&cli.BoolFlag{
				Name:  noVizFlagName,
				Usage: "Skip the chart",
			},
			&cli.StringFlag{
				Name:  whereFlagName,
				Usage: "CEL expression selecting wallets to report, e.g. \"score >= 600.0 && liquidations == 0\"",
			},
			&cli.IntFlag{
				Name:  topFlagName,
				Usage: "Number of best and worst wallets in the report (optional, default from config)",
			},
			&cli.IntFlag{
				Name:  workersFlagName,
				Usage: "Scoring concurrency (optional, default from config)",
			},
			&cli.StringFlag{
				Name:  metricsFlagName,
				Usage: "Write Prometheus metrics for this run to a textfile",
			},
			&cli.BoolFlag{
				Name:  saveFlagName,
				Usage: "Persist the run and its scores to the database",
			},
		},
		Action: cmdScore,
	}
}

// scoreReport is the content of the JSON report file.
type scoreReport struct {
	RunID       string               `json:"run_id,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
	Input       string               `json:"input"`
	Filter      string               `json:"filter,omitempty"`
	Load        *txn.LoadResult      `json:"load"`
	Weights     score.Weights        `json:"weights"`
	Params      feature.Params       `json:"params"`
	Report      *report.Report       `json:"report"`
	Wallets     []*score.WalletScore `json:"wallet_scores"`
}

// scoreResult is what the command prints.
type scoreResult struct {
	RunID      string                  `json:"run_id,omitempty" yaml:"runID,omitempty"`
	Input      string                  `json:"input" yaml:"input"`
	Output     string                  `json:"output" yaml:"output"`
	Chart      string                  `json:"chart,omitempty" yaml:"chart,omitempty"`
	Metrics    string                  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Load       *txn.LoadResult         `json:"load" yaml:"load"`
	Summary    report.Summary          `json:"summary" yaml:"summary"`
	Categories []report.CategoryBucket `json:"risk_categories" yaml:"riskCategories"`
}

func cmdScore(ctx context.Context, cmd *cli.Command) error {
	app := getConfig(cmd)

	input := cmd.Args().First()
	if input == "" {
		return errors.New("input file required")
	}

	cfg := *app.Config
	applyScoreFlags(cmd, &cfg)

	rec := metrics.New()
	start := time.Now()

	lr, err := txn.LoadFile(input)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	rec.RecordLoad(lr.Loaded, lr.Skipped, lr.SkipReasons)
	rec.RecordDuration("load", time.Since(start))
	slog.Info("transactions loaded", "file", input, "loaded", lr.Loaded, "skipped", lr.Skipped)

	scorer, err := score.NewScorer(cfg.Weights, cfg.Features, cfg.Workers)
	if err != nil {
		return fmt.Errorf("creating scorer: %w", err)
	}

	stageStart := time.Now()
	wallets := feature.Aggregate(lr.Transactions, cfg.Features.TokenDecimals)
	scores, err := scorer.ScoreAll(ctx, wallets)
	if err != nil {
		return err
	}
	rec.RecordDuration("score", time.Since(stageStart))
	slog.Info("wallets scored", "wallets", len(scores))

	where := cmd.String(whereFlagName)
	if where != "" {
		f, err := filter.Compile(where)
		if err != nil {
			return err
		}
		if scores, err = f.Apply(scores); err != nil {
			return err
		}
		slog.Info("wallets filtered", "where", f.String(), "wallets", len(scores))
	}

	stageStart = time.Now()
	rep := report.Build(scores, cfg.Top)
	rec.RecordScores(scores)

	res := &scoreResult{
		Input:      input,
		Output:     cfg.Output,
		Load:       lr,
		Summary:    rep.Summary,
		Categories: rep.Categories,
	}

	if cmd.Bool(saveFlagName) {
		runID, err := saveRun(ctx, app, input, lr, rep, scorer.Weights(), scores)
		if err != nil {
			return err
		}
		res.RunID = runID
	}

	doc := &scoreReport{
		RunID:       res.RunID,
		GeneratedAt: time.Now().UTC(),
		Input:       input,
		Filter:      where,
		Load:        lr,
		Weights:     scorer.Weights(),
		Params:      cfg.Features,
		Report:      rep,
		Wallets:     scores,
	}
	if err := writeJSON(cfg.Output, doc); err != nil {
		return err
	}
	slog.Info("report written", "path", cfg.Output)

	if !cmd.Bool(noVizFlagName) {
		switch err := report.WriteChart(cfg.Chart, scores); {
		case errors.Is(err, report.ErrNoScores):
			slog.Warn("no wallets to chart, skipping visualization")
		case err != nil:
			return fmt.Errorf("writing chart: %w", err)
		default:
			res.Chart = cfg.Chart
			slog.Info("chart written", "path", cfg.Chart)
		}
	}
	rec.RecordDuration("report", time.Since(stageStart))

	if p := cmd.String(metricsFlagName); p != "" {
		rec.RecordDuration("total", time.Since(start))
		if err := rec.WriteTextfile(p); err != nil {
			return err
		}
		res.Metrics = p
	}

	return encode(app, res)
}

func applyScoreFlags(cmd *cli.Command, cfg *config.Config) {
	if v := cmd.String(outputFlagName); v != "" {
		cfg.Output = v
	}
	if v := cmd.String(chartFlagName); v != "" {
		cfg.Chart = v
	}
	if v := cmd.Int(topFlagName); v > 0 {
		cfg.Top = v
	}
	if v := cmd.Int(workersFlagName); v > 0 {
		cfg.Workers = v
	}
}

func saveRun(ctx context.Context, app *appConfig, input string, lr *txn.LoadResult,
	rep *report.Report, w score.Weights, scores []*score.WalletScore) (string, error) {
	store, err := openStore(ctx, app)
	if err != nil {
		return "", err
	}
	defer store.Close()

	run := data.NewRun(input, lr.Total, lr.Loaded, lr.Skipped, rep.Summary, w)
	if err := store.SaveRun(ctx, run, scores); err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	slog.Info("run saved", "id", run.ID, "db", app.DBPath)
	return run.ID, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}
	if err := os.WriteFile(path, b, reportFileMode); err != nil {
		return fmt.Errorf("error writing report %s: %w", path, err)
	}
	return nil
}
