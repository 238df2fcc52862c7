// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestArgParser(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"clear"},
			wantSub: "clear",
		},
		{
			name:    "flag with value",
			args:    []string{"csgo", "--config", "/tmp/alt.toml"},
			wantSub: "csgo",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("config") != "/tmp/alt.toml" {
					t.Errorf("Flag(config) = %q", p.Flag("config"))
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"--tag=Type=Container"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("tag") != "Type=Container" {
					t.Errorf("Flag(tag) = %q", p.Flag("tag"))
				}
			},
		},
		{
			name:    "boolean flag",
			args:    []string{"csgo", "--tradable"},
			wantSub: "csgo",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("tradable") {
					t.Error("BoolFlag(tradable) should be true")
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"--tradable=false"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("tradable") {
					t.Error("BoolFlag(tradable) should be false")
				}
			},
		},
		{
			name:    "mixed flags and positionals",
			args:    []string{"clear", "--yes", "extra"},
			wantSub: "clear",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 2 {
					t.Errorf("PositionalCount() = %d, want 2", p.PositionalCount())
				}
				if p.Positional(1) != "extra" {
					t.Errorf("Positional(1) = %q", p.Positional(1))
				}
			},
		},
		{
			name:    "missing flag defaults",
			args:    []string{},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.FlagOrDefault("config", "fallback") != "fallback" {
					t.Error("FlagOrDefault should fall back")
				}
				if p.FlagIntOrDefault("tries", 10) != 10 {
					t.Error("FlagIntOrDefault should fall back")
				}
				if p.Positional(5) != "" {
					t.Error("out-of-range positional should be empty")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestParseCommands(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{args: nil, want: CmdHelp},
		{args: []string{"login"}, want: CmdLogin},
		{args: []string{"inventory", "csgo"}, want: CmdInventory},
		{args: []string{"inv", "csgo"}, want: CmdInventory},
		{args: []string{"listings"}, want: CmdListings},
		{args: []string{"listings", "clear"}, want: CmdListings},
		{args: []string{"sell", "csgo"}, want: CmdSell},
		{args: []string{"version"}, want: CmdVersion},
		{args: []string{"bogus"}, want: CmdHelp},
	}

	for _, tt := range tests {
		cmd, _ := Parse(tt.args)
		if cmd != tt.want {
			t.Errorf("Parse(%v) = %v, want %v", tt.args, cmd, tt.want)
		}
	}
}

func TestParseKeepsCommandArgs(t *testing.T) {
	cmd, args := Parse([]string{"listings", "clear", "--yes"})
	if cmd != CmdListings {
		t.Fatalf("Parse() = %v, want listings", cmd)
	}
	if args.Subcommand() != "clear" {
		t.Errorf("Subcommand() = %q, want clear", args.Subcommand())
	}
	if !args.BoolFlag("yes") {
		t.Error("BoolFlag(yes) should be true")
	}
}
