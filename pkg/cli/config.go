package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/walletscore/pkg/config"
	"github.com/urfave/cli/v3"
)

const (
	dirFlagName   = "dir"
	forceFlagName = "force"
	dirMode       = 0700
)

func newConfigCmd() *cli.Command {
	return &cli.Command{
		Name:            "config",
		Usage:           "Show or create the scoring config",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective config",
				Action: cmdConfigShow,
			},
			{
				Name:  "init",
				Usage: "Write the default config to a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  dirFlagName,
						Usage: "Target directory (optional, default: current dir)",
						Value: ".",
					},
					&cli.BoolFlag{
						Name:  forceFlagName,
						Usage: "Overwrite an existing config",
					},
				},
				Action: cmdConfigInit,
			},
		},
	}
}

type configInfo struct {
	Path   string         `json:"path" yaml:"path"`
	Config *config.Config `json:"config" yaml:"config"`
}

func cmdConfigShow(_ context.Context, cmd *cli.Command) error {
	app := getConfig(cmd)
	return encode(app, &configInfo{Path: app.ConfigPath, Config: app.Config})
}

func cmdConfigInit(_ context.Context, cmd *cli.Command) error {
	app := getConfig(cmd)
	dir := cmd.String(dirFlagName)

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !cmd.Bool(forceFlagName) {
		return fmt.Errorf("config already exists: %s (use --%s to overwrite)", path, forceFlagName)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config %s: %w", path, err)
	}

	c := config.Default()
	if err := config.Save(dir, c); err != nil {
		return err
	}
	slog.Info("config created", "path", path)
	return encode(app, &configInfo{Path: path, Config: c})
}
