package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/t-wilkinson/zortex.nvim-sub001/internal"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/parser"
	pkgconfig "github.com/t-wilkinson/zortex.nvim-sub001/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const defaultConfigFile = "config/config.yaml"

// loadConfig reads the file named by --config. An explicit path must
// exist; otherwise the default location is optional and built-in values
// apply when it is absent.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	var err error
	if cmd.IsSet("config") {
		err = pkgconfig.Load(cmd.String("config"), cfg)
	} else {
		err = pkgconfig.LoadWithDefaults(cmd.String("config"), "", cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	}

	if err := internal.RunMCP(ctx, opts...); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}

	return nil
}

// outline parses one file without touching the vault or the index and
// prints its outline as JSON.
func outline(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("outline: file argument is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("outline: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	d := document.New(parser.SplitLines(data), document.WithLogger(logger))
	d.Parse()

	var view any = models.NewOutlineView(path, "", d)
	if cmd.Bool("tasks") {
		view = models.TaskViews(d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func main() {
	cmd := &cli.Command{
		Name:    "zortex",
		Usage:   "Incremental outline engine for zortex documents with search, tasks and live buffers",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigFile,
				Value:       defaultConfigFile,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve outline tools over MCP on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "outline",
				Usage:     "Print the outline of a single file as JSON",
				ArgsUsage: "<file>",
				Action:    outline,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "tasks",
						Usage: "Print only the tasks",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
