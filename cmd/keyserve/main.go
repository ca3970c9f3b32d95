// Copyright 2025 The KeyServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the keyserve command: an index compiler, a msgpack IPC
server and a CLI [DBG] application for memory mapped key-value dictionaries.

Note: This is a BETA release. APIs and functionality may rapidly change.

Keyserve compiles word lists into a single read-only index file built around a
minimal finite state automaton. The file is memory mapped on open, so queries
touch only the pages they need and many processes can share one copy.

# Usage

Compile a tab separated list into an index:

	keyserve compile -o words.ksd words.tsv

Compile wordserve chunk files with weights, compressing long values:

	keyserve compile -weighted -compression zstd -o words.ksd data/

Serve the index over stdin/stdout:

	keyserve serve -dict words.ksd -strategy lazy

Explore it interactively:

	keyserve cli -dict words.ksd

Print statistics or every entry:

	keyserve stats -dict words.ksd
	keyserve dump -dict words.ksd

Global flags go before the subcommand:

	keyserve -d -config ./keyserve.toml serve

# Configuration

Defaults for every subcommand come from a TOML file, created with defaults
at ~/.config/keyserve/config.toml when missing:

	[dict]
	path = "keyserve.ksd"
	loading_strategy = "default_os"

	[query]
	default_cutoff = 24
	max_edit_distance = 2
	min_prefix = 1
	max_prefix = 60

	[server]
	max_results = 64
	workers = 4

	[compile]
	value_type = "key_only"
	compression = "none"
	compression_threshold = 64
	weighted = false
	workers = 4

Flags given on the command line override the file.

# Sources

The compiler reads tab separated text (key, value and an optional weight per
line) and the chunked binary word lists of wordserve, where the rank of a
word is turned into a weight. Directories are read as chunk sets; several
sources may be given and later keys replace earlier ones.

# IPC Protocol

The server speaks MessagePack over stdin/stdout, see package server:

	{"id": "r1", "op": "prefix", "k": "ca", "c": 10}
	{"id": "r1", "m": [{"k": "car", "v": "2", "s": 0}], "c": 1, "t": 12}

Logs always go to stderr.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/keyserve/internal/logger"
	"github.com/bastiangx/keyserve/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0-beta"
	AppName = "keyserve"
	gh      = "https://github.com/bastiangx/keyserve"
)

// command is one subcommand. run gets the arguments after its name.
type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, args []string) error
}

var commands = []command{
	{"compile", "build an index from TSV or chunk sources", runCompile},
	{"serve", "answer msgpack requests on stdin/stdout", runServe},
	{"cli", "interactive queries for testing and debugging", runCLI},
	{"stats", "print index statistics as JSON", runStats},
	{"dump", "print every entry of an index", runDump},
}

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main picks the subcommand and hands it the loaded config. It does not
// implement any of them.
func main() {
	sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	configPath := flag.String("config", "", "Path to a config file (default ~/.config/keyserve/config.toml)")
	logFormat := flag.String("log-format", "text", "Log format: text, json or logfmt")
	resetConfig := flag.Bool("reset-config", false, "Rewrite the default config file with defaults")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode, *logFormat)

	if *resetConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		log.Info("Config file rebuilt with defaults")
		if flag.NArg() == 0 {
			os.Exit(0)
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	cfg, path, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(path))

	if err := cmd.run(cfg, args[1:]); err != nil {
		log.Fatalf("%s: %v", cmd.name, err)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [command flags]\n\nCommands:\n", AppName)
	for _, c := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ KeyServe ] Memory mapped dictionaries, served fast!")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the opened index.
func showStartupInfo(path string, entries int, strategy string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	log.Infof("%s %s", AppName, Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("index: ( %s )", path)
	log.Info("loaded", "entries", entries, "strategy", strategy)
	log.Info("status: ready")

	log.SetLevel(currentLevel)
}
