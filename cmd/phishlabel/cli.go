package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/errors"
	"github.com/hpungsan/phishlabel/internal/logging"
	"github.com/hpungsan/phishlabel/internal/mcp"
	"github.com/hpungsan/phishlabel/internal/ops"
	"github.com/hpungsan/phishlabel/internal/report"
	"github.com/hpungsan/phishlabel/internal/session"
	"github.com/hpungsan/phishlabel/internal/web"
)

// appEnv holds what every command needs.
type appEnv struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string
	log        *zap.Logger
	stdout     io.Writer
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	if env.log == nil {
		env.log = zap.NewNop()
	}
	app := &cli.App{
		Name:    "phishlabel",
		Usage:   "Phishing email labeling and inter-annotator agreement",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "Debug logging to stderr"},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("verbose") {
				return nil
			}
			log, err := logging.New(true)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			env.log = log
			return nil
		},
		Commands: []*cli.Command{
			iaaCmd(env),
			reviewCmd(env),
			serveCmd(env),
			historyCmd(env),
			mcpCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// iaaCmd creates the iaa command.
func iaaCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "iaa",
		Usage: "Compute inter-annotator agreement and export disagreements",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "progress-dir", Aliases: []string{"d"}, Usage: "Directory of <annotator>_progress.csv files"},
			&cli.IntFlag{Name: "min-overlap", Usage: "Minimum jointly labeled items per pair"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Disagreement file (.csv or .xlsx)"},
			&cli.BoolFlag{Name: "no-write", Usage: "Do not write the disagreement file"},
			&cli.BoolFlag{Name: "no-record", Usage: "Do not store this run in history"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("min-overlap") && c.Int("min-overlap") < 1 {
				return outputError(errors.NewInvalidRequest("--min-overlap must be at least 1"))
			}
			scheme, err := ops.LoadScheme(env.cfg)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			out, err := ops.Analyze(c.Context, env.db, env.cfg, ops.AnalyzeInput{
				ProgressDir: c.String("progress-dir"),
				MinOverlap:  c.Int("min-overlap"),
				Output:      c.String("output"),
				NoWrite:     c.Bool("no-write"),
				Record:      !c.Bool("no-record"),
				Scheme:      scheme,
				Logger:      env.log,
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(env.stdout, out.Report())
			}
			if out.NoInput {
				fmt.Fprintf(env.stdout, "No annotation progress files found in %s\n", out.ProgressDir)
				return nil
			}
			if err := report.Write(env.stdout, report.Input{
				Load:              out.Load,
				Analysis:          out.Analysis,
				Scheme:            scheme,
				DisagreementsFile: out.DisagreementsFile,
			}); err != nil {
				return outputError(errors.NewInternal(err))
			}
			if out.RunID != "" {
				fmt.Fprintf(env.stdout, "\nRun recorded: %s\n", out.RunID)
			}
			return nil
		},
	}
}

// reviewCmd creates the review command.
func reviewCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Collect remarked emails into a table for the chief annotator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "progress-dir", Aliases: []string{"d"}, Usage: "Directory of <annotator>_progress.csv files"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Review file (.csv or .xlsx)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			scheme, err := ops.LoadScheme(env.cfg)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			out, err := ops.ExtractReview(c.Context, env.cfg, ops.ReviewInput{
				ProgressDir: c.String("progress-dir"),
				Output:      c.String("output"),
				Scheme:      scheme,
				Logger:      env.log,
			})
			if err != nil {
				return outputError(err)
			}

			if c.Bool("json") {
				return outputJSON(env.stdout, out)
			}
			writeReviewSummary(env.stdout, out)
			return nil
		},
	}
}

func writeReviewSummary(w io.Writer, out *ops.ReviewOutput) {
	if out.NoInput {
		fmt.Fprintln(w, "No annotation progress files found.")
		return
	}
	fmt.Fprintf(w, "Found %d annotator file(s)\n", out.Files)
	ids := make([]string, 0, len(out.Remarked))
	for id := range out.Remarked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d emails with remarks\n", id, out.Remarked[id])
	}
	coerced := make([]string, 0, len(out.Coerced))
	for id := range out.Coerced {
		coerced = append(coerced, id)
	}
	sort.Strings(coerced)
	for _, id := range coerced {
		fmt.Fprintf(w, "  %s: %d unreadable label/confidence cells treated as empty\n", id, out.Coerced[id])
	}
	for _, f := range out.Failures {
		fmt.Fprintf(w, "  skipped %s: %s\n", f.Annotator, f.Error)
	}
	if out.Path == "" {
		fmt.Fprintln(w, "No emails with remarks found.")
		return
	}
	fmt.Fprintf(w, "\nSaved %d emails for review to: %s\n", out.Items, out.Path)
	fmt.Fprintln(w, "\nColumns for chief annotator:")
	fmt.Fprintln(w, "  - chief_label: Final class decision")
	fmt.Fprintln(w, "  - chief_confidence: Confidence in decision")
	fmt.Fprintln(w, "  - chief_notes: Resolution notes")
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the annotation web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Address to bind (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (default from config)"},
			&cli.StringFlag{Name: "progress-dir", Aliases: []string{"d"}, Usage: "Where progress files are saved"},
		},
		Action: func(c *cli.Context) error {
			scheme, err := ops.LoadScheme(env.cfg)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			bind := c.String("bind")
			if bind == "" {
				bind = env.cfg.Bind
			}
			port := c.Int("port")
			if port == 0 {
				port = env.cfg.Port
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
			}
			progressDir := c.String("progress-dir")
			if progressDir == "" {
				progressDir = env.cfg.ProgressDir
			}

			ws := session.NewWorkspace(session.Options{
				ProgressDir: progressDir,
				Scheme:      scheme,
				Annotators:  env.cfg.Annotators,
				Logger:      env.log,
			})
			srv, err := web.NewServer(ws, web.Options{
				Version: Version,
				Bind:    bind,
				Port:    port,
				Logger:  env.log,
			})
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(c.Context, srv, ws, env.log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// historyCmd creates the history command and its purge subcommand.
func historyCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded agreement runs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Max runs to return"},
			&cli.IntFlag{Name: "offset", Usage: "Runs to skip"},
		},
		Action: func(c *cli.Context) error {
			out, err := ops.History(c.Context, env.db, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(env.stdout, out)
		},
		Subcommands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "Permanently delete recorded runs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Usage: "Only purge runs older than N days (e.g., 30d)"},
				},
				Action: func(c *cli.Context) error {
					input := ops.PurgeInput{}
					if olderThan := c.String("older-than"); olderThan != "" {
						days, err := parseDuration(olderThan)
						if err != nil {
							return outputError(errors.NewInvalidRequest(err.Error()))
						}
						input.OlderThanDays = &days
					}

					out, err := ops.Purge(c.Context, env.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(env.stdout, out)
				},
			},
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if err := runMCP(env); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

func runMCP(env *appEnv) error {
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		env.log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	return mcp.Run(env.db, env.cfg, mcp.Options{
		ExportsDir: env.exportsDir,
		Version:    Version,
		Logger:     env.log,
	})
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LabelError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
