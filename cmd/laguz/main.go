package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/laguz/internal"
	"github.com/starford/laguz/internal/autoconsolidate"
	"github.com/starford/laguz/internal/docservice"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/report"
	pkgconfig "github.com/starford/laguz/pkg/config"
)

var version = "dev"

var errUnsafeRun = errors.New("run finished with unsafe boundaries; originals were kept")

// loadRuntime loads the config, applies flag overrides, and wires a runtime.
// A non-empty root replaces consolidation.root.
func loadRuntime(cmd *cli.Command, root string, logOut io.Writer) (*internal.Runtime, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root != "" {
		cfg.Consolidation.Root = root
	}
	if cmd.IsSet("flatten") {
		cfg.Consolidation.Flatten = cmd.Bool("flatten")
	}
	if cmd.IsSet("parallel") {
		cfg.Consolidation.Parallel = cmd.Bool("parallel")
	}
	if cmd.IsSet("archive-stale") {
		cfg.Consolidation.ArchiveStale = cmd.Bool("archive-stale")
	}
	if cmd.IsSet("max") {
		cfg.Consolidation.MaxOutputFiles = int(cmd.Int("max"))
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogOutput(logOut),
	}
	if cmd.Bool("no-ai") {
		opts = append(opts, internal.WithoutAI())
	}
	return internal.NewRuntime(opts...)
}

// output prints v as JSON with --json, otherwise the rendered text.
func output(cmd *cli.Command, v any, text func() string) error {
	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprint(os.Stdout, text())
	return err
}

func runMode(mode autoconsolidate.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
		if err != nil {
			return err
		}
		defer rt.Close()

		sum, err := rt.Service.Run(ctx, docservice.RunRequest{Mode: string(mode), DryRun: cmd.Bool("dry-run")})
		if err != nil {
			return fmt.Errorf("%s: %w", mode, err)
		}
		if err := output(cmd, sum, func() string { return report.Summary(sum) }); err != nil {
			return err
		}
		if !sum.Success {
			return errUnsafeRun
		}
		return nil
	}
}

func scan(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	items, err := rt.Service.ListDocuments(ctx, "", cmd.Bool("recursive"))
	if err != nil {
		return err
	}
	return output(cmd, items, func() string { return report.Documents(items) })
}

func relevance(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	scores, err := rt.Service.Relevance(ctx, "", cmd.Bool("recursive"))
	if err != nil {
		return err
	}
	return output(cmd, scores, func() string { return report.Relevance(scores) })
}

func plan(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	view, err := rt.Service.Plan(ctx, "", 0)
	if err != nil {
		return err
	}
	return output(cmd, view, func() string { return report.Plan(view) })
}

func hub(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cmd.Bool("write") {
		path, err := rt.Service.WriteHub(ctx, "")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	}
	content, err := rt.Service.Hub(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, content)
	return nil
}

func restore(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return errors.New("restore: manifest id is required")
	}
	rt, err := loadRuntime(cmd, "", os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	restored, err := rt.Service.Restore(ctx, id)
	if err != nil {
		return err
	}
	return output(cmd, restored, func() string { return report.Restored(id, restored) })
}

func backups(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	manifests, err := rt.Service.Manifests(ctx)
	if err != nil {
		return err
	}
	return output(cmd, manifests, func() string { return report.Manifests(manifests) })
}

func serve(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, "", os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Serve(ctx); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	// stdout carries the protocol.
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	return mcpserver.New(rt.Service, version).ServeStdio()
}

func watchHub(ctx context.Context, cmd *cli.Command) error {
	rt, err := loadRuntime(cmd, cmd.Args().First(), os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Watch(ctx, "")
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "flatten", Usage: "Treat nested git repositories as plain subdirectories"},
		&cli.BoolFlag{Name: "parallel", Usage: "Process repository boundaries concurrently"},
		&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Plan only; write, back up, and delete nothing"},
		&cli.IntFlag{Name: "max", Usage: "Maximum number of output files per boundary"},
		&cli.BoolFlag{Name: "archive-stale", Usage: "Move documents judged stale into archive/"},
		jsonFlag(),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of the report"}
}

func recursiveFlag() cli.Flag {
	return &cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Descend into subdirectories"}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:    "laguz",
		Usage:   "Consolidate scattered Markdown documentation into topic files and a navigation hub",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "laguz.yaml",
				Value:       "laguz.yaml",
				Sources:     cli.EnvVars("LAGUZ_CONFIG_FILE"),
			},
			&cli.BoolFlag{Name: "no-ai", Usage: "Disable the AI capability and use folder clustering"},
		},
		Commands: []*cli.Command{
			{
				Name:      "compress",
				Usage:     "Merge root markdown files into topic files and delete the backed-up originals",
				ArgsUsage: "[root]",
				Flags:     runFlags(),
				Action:    runMode(autoconsolidate.ModeCompress),
			},
			{
				Name:      "archive",
				Usage:     "Merge root markdown files into topic files and move the originals to documents/",
				ArgsUsage: "[root]",
				Flags:     runFlags(),
				Action:    runMode(autoconsolidate.ModeArchive),
			},
			{
				Name:      "scan",
				Usage:     "List markdown documents with their metadata",
				ArgsUsage: "[root]",
				Flags:     []cli.Flag{recursiveFlag(), jsonFlag()},
				Action:    scan,
			},
			{
				Name:      "relevance",
				Usage:     "Score documents by recency, quality, connectivity, and uniqueness",
				ArgsUsage: "[root]",
				Flags:     []cli.Flag{recursiveFlag(), jsonFlag()},
				Action:    relevance,
			},
			{
				Name:      "plan",
				Usage:     "Preview the consolidation plan for the root markdown files",
				ArgsUsage: "[root]",
				Flags:     []cli.Flag{&cli.IntFlag{Name: "max", Usage: "Maximum number of output files"}, jsonFlag()},
				Action:    plan,
			},
			{
				Name:      "hub",
				Usage:     "Render the DOCUMENTATION.md navigation hub",
				ArgsUsage: "[root]",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "Write DOCUMENTATION.md"}},
				Action:    hub,
			},
			{
				Name:      "restore",
				Usage:     "Restore every file of a backup manifest",
				ArgsUsage: "<manifest-id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    restore,
			},
			{
				Name:   "backups",
				Usage:  "List backup manifests, newest first",
				Flags:  []cli.Flag{jsonFlag()},
				Action: backups,
			},
			{
				Name:   "serve",
				Usage:  "Serve the REST API, SSE events, and the hub watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:      "watch",
				Usage:     "Regenerate DOCUMENTATION.md whenever markdown files change",
				ArgsUsage: "[root]",
				Action:    watchHub,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
