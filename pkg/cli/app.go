package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/walletscore/pkg/config"
	"github.com/mchmarny/walletscore/pkg/data"
	"github.com/mchmarny/walletscore/pkg/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "walletscore"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName  = "debug"
	dbFlagName     = "db"
	formatFlagName = "format"
	configFlagName = "config"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Config     *config.Config
	ConfigPath string
	DBPath     string
	Format     string
	Out        io.Writer
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Usage:                 "Credit scores for DeFi lending wallets from their transaction history",
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&cli.StringFlag{
				Name:  dbFlagName,
				Usage: fmt.Sprintf("Sqlite file path or postgres:// DSN (optional, default: $HOME/.%s/%s)", appName, data.DataFileName),
			},
			&cli.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
			&cli.StringFlag{
				Name:  configFlagName,
				Usage: fmt.Sprintf("Path to config file (optional, default: $HOME/.%s/%s)", appName, config.FileName),
			},
		},
		Commands: []*cli.Command{
			newScoreCmd(),
			newRunsCmd(),
			newConfigCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(debugFlagName) {
				logging.SetDefaultCLILogger("debug")
			}

			app := &appConfig{
				Format: formatJSON,
				Out:    out,
			}

			switch f := strings.ToLower(cmd.String(formatFlagName)); f {
			case formatJSON:
			case formatYAML, "yml":
				app.Format = formatYAML
			default:
				return ctx, fmt.Errorf("unsupported format %q, use json or yaml", f)
			}

			var err error
			if p := cmd.String(configFlagName); p != "" {
				app.ConfigPath = p
				app.Config, err = config.Load(p)
			} else {
				dir := getHomeDir()
				app.ConfigPath = filepath.Join(dir, config.FileName)
				app.Config, err = config.ReadOrCreate(dir)
			}
			if err != nil {
				return ctx, fmt.Errorf("loading config: %w", err)
			}

			app.DBPath = cmd.String(dbFlagName)
			if app.DBPath == "" {
				app.DBPath = filepath.Join(getHomeDir(), data.DataFileName)
			}

			cmd.Root().Metadata[appConfigKey] = app
			return ctx, nil
		},
	}
}

func openStore(ctx context.Context, app *appConfig) (*data.Store, error) {
	s, err := data.Open(ctx, app.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return s, nil
}

func getHomeDir() string {
	dir, created, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	if created {
		slog.Debug("app dir created", "path", dir)
	}
	return dir
}

func encode(app *appConfig, v any) error {
	if app.Format == formatYAML {
		e := yaml.NewEncoder(app.Out)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(app.Out)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
