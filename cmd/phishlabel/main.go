package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/phishlabel/internal/config"
	"github.com/hpungsan/phishlabel/internal/db"
	"github.com/hpungsan/phishlabel/internal/logging"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"iaa": true, "review": true, "serve": true,
	"history": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run a CLI command vs the MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" ||
		arg == "--verbose" || arg == "-V" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ┌─┐┬ ┬┬┌─┐┬ ┬┬  ┌─┐┌┐ ┌─┐┬
   ├─┘├─┤│└─┐├─┤│  ├─┤├┴┐├┤ │
   ┴  ┴ ┴┴└─┘┴ ┴┴─┘┴ ┴└─┘└─┘┴─┘

  Phishing email labeling and agreement analysis

  Usage: phishlabel <command> [options]
         phishlabel --help

  MCP server mode requires piped input.`)
}

// setup loads config layered as defaults < ~/.phishlabel/config.json <
// ./.phishlabel/config.json, opens the run-history database and builds the logger.
func setup() (*appEnv, func(), error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	baseDir := filepath.Join(homeDir, ".phishlabel")

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("could not determine working directory: %w", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(database, cfg)

	env := &appEnv{
		db:         database,
		cfg:        cfg,
		exportsDir: filepath.Join(baseDir, db.ExportsDir),
		log:        log,
		stdout:     os.Stdout,
	}
	cleanup := func() {
		database.Close()
		_ = env.log.Sync()
	}
	return env, cleanup, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return 0
	}

	// Help and version need neither config nor database.
	if isHelpOrVersion() {
		return exitCode(newCLIApp(&appEnv{cfg: config.DefaultConfig(), stdout: os.Stdout}).Run(os.Args))
	}

	// An unrecognized argument on a terminal is a typo, not an MCP client.
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\nRun 'phishlabel --help' for usage.\n", os.Args[1])
		return 1
	}

	env, cleanup, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer cleanup()

	if isCLIMode() {
		return exitCode(newCLIApp(env).Run(os.Args))
	}
	return exitCode(runMCP(env))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
