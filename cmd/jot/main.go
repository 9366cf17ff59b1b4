package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/jot/internal/board"
	"github.com/hpungsan/jot/internal/config"
	"github.com/hpungsan/jot/internal/db"
	"github.com/hpungsan/jot/internal/logger"
	"github.com/hpungsan/jot/internal/mcp"
	"github.com/hpungsan/jot/internal/pipeline"
	"github.com/hpungsan/jot/internal/transcribe"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"listen": true, "score": true, "similar": true, "segments": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion()
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
       _       _
      (_) ___ | |_
      | |/ _ \| __|
      | | (_) | |_
     _/ |\___/ \__|
    |__/

  Live speech to notes

  Usage: jot <command> [options]
         jot --help

  MCP server mode requires piped input.`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before config and journal setup
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fatalf("%v", err)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatalf("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, ".jot")

	cwd, err := os.Getwd()
	if err != nil {
		fatalf("could not determine working directory: %v", err)
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fatalf("failed to create logger: %v", err)
	}
	defer log.Sync()

	var journal *db.Journal
	if !cfg.JournalDisabled {
		database, err := db.Init(baseDir)
		if err != nil {
			fatalf("failed to initialize journal: %v", err)
		}
		defer database.Close()
		journal = db.NewJournal(database)
	}

	env := &appEnv{
		cfg:            cfg,
		log:            log,
		journal:        journal,
		newTranscriber: transcribe.New,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fatalf("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'jot --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := runMCP(env); err != nil {
		fatalf("%v", err)
	}
}

// runMCP serves the MCP tools over stdio until the client disconnects.
func runMCP(env *appEnv) error {
	if unknown := mcp.ValidateDisabledTools(env.cfg.DisabledTools); len(unknown) > 0 {
		env.log.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	tr, closeTr, err := env.transcriber(context.Background())
	if err != nil {
		return err
	}
	defer closeTr()

	b := board.New()
	pipe := pipeline.New(env.cfg, tr, b, env.log, env.pipelineOptions()...)
	return mcp.Run(pipe, b, env.journal, env.cfg, Version)
}
