// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - command parsing and dispatch for desperado.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdLogin
	CmdInventory
	CmdListings
	CmdSell
	CmdVersion
)

const usageText = `desperado - community market automation

Usage:
  desperado login                      Log in and cache the session
  desperado inventory <app>            List the inventory for an app
      --tradable                       Only items that can be traded
  desperado listings                   Show active market listings
  desperado listings clear             Remove all active listings
  desperado sell <app>                 Interactively sell tradable items
      --tag <category>=<substring>     Only items whose tag matches
  desperado version                    Show version
  desperado help                       Show this help

Global flags:
  --verbose                            Debug logging
  --config <path>                      Alternate config file

Apps are named by their short names (csgo, dota2, tf2, portal2, steam).
Configuration lives in ~/.desperado/config.toml; DESPERADO_* environment
variables override it. The account password is read from
DESPERADO_PASSWORD or prompted for.`

// Parse maps the raw argument list to a command and its arguments.
func Parse(argv []string) (Command, *ArgParser) {
	if len(argv) == 0 {
		return CmdHelp, NewArgParser(nil)
	}

	cmd, rest := argv[0], argv[1:]
	args := NewArgParser(rest)

	switch cmd {
	case "login":
		return CmdLogin, args
	case "inventory", "inv":
		return CmdInventory, args
	case "listings":
		return CmdListings, args
	case "sell":
		return CmdSell, args
	case "version", "--version", "-v":
		return CmdVersion, args
	default:
		return CmdHelp, args
	}
}

// Run executes the CLI and returns the process exit code.
func Run(argv []string) int {
	cmd, args := Parse(argv)

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.WarnLevel)
	if args.BoolFlag("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Ctrl-C cancels in-flight logins and polls instead of leaving
	// half-open mail connections behind.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case CmdLogin:
		err = runLogin(ctx, args)
	case CmdInventory:
		err = runInventory(ctx, args)
	case CmdListings:
		err = runListings(ctx, args)
	case CmdSell:
		err = runSell(ctx, args)
	case CmdVersion:
		fmt.Printf("desperado %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	default:
		fmt.Println(usageText)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
