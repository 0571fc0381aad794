package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/walletscore/pkg/data"
	"github.com/mchmarny/walletscore/pkg/filter"
	"github.com/mchmarny/walletscore/pkg/score"
	"github.com/urfave/cli/v3"
)

const (
	limitFlagName = "limit"
	idFlagName    = "id"
)

func newRunsCmd() *cli.Command {
	return &cli.Command{
		Name:            "runs",
		Usage:           "Inspect saved scoring runs",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the most recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  limitFlagName,
						Usage: "Limits number of result returned",
						Value: data.DefaultListLimit,
					},
				},
				Action: cmdRunsList,
			},
			{
				Name:  "show",
				Usage: "Show a run and its wallet scores",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     idFlagName,
						Usage:    "Run ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  whereFlagName,
						Usage: "CEL expression selecting wallets to show",
					},
					&cli.IntFlag{
						Name:  limitFlagName,
						Usage: "Limits number of wallets returned, 0 returns all",
					},
				},
				Action: cmdRunsShow,
			},
		},
	}
}

type runDetail struct {
	Run     *data.Run            `json:"run" yaml:"run"`
	Filter  string               `json:"filter,omitempty" yaml:"filter,omitempty"`
	Wallets []*score.WalletScore `json:"wallets" yaml:"wallets"`
}

func cmdRunsList(ctx context.Context, cmd *cli.Command) error {
	app := getConfig(cmd)

	store, err := openStore(ctx, app)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListRuns(ctx, cmd.Int(limitFlagName))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	return encode(app, list)
}

func cmdRunsShow(ctx context.Context, cmd *cli.Command) error {
	app := getConfig(cmd)

	var f *filter.Filter
	if where := cmd.String(whereFlagName); where != "" {
		var err error
		if f, err = filter.Compile(where); err != nil {
			return err
		}
	}

	store, err := openStore(ctx, app)
	if err != nil {
		return err
	}
	defer store.Close()

	id := cmd.String(idFlagName)
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}

	limit := cmd.Int(limitFlagName)
	if f != nil {
		// the limit applies after filtering
		limit = 0
	}

	scores, err := store.GetRunScores(ctx, id, limit)
	if err != nil {
		return err
	}

	res := &runDetail{Run: run, Wallets: scores}
	if f != nil {
		if res.Wallets, err = f.Apply(scores); err != nil {
			return err
		}
		res.Filter = f.String()
		if n := cmd.Int(limitFlagName); n > 0 && len(res.Wallets) > n {
			res.Wallets = res.Wallets[:n]
		}
	}
	return encode(app, res)
}
