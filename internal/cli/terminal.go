// terminal.go - interactive prompts for login challenges and confirmations.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// IsTTY reports whether stdin is an interactive terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// PromptLine reads one line of input with line editing. It satisfies the
// auth package's PromptFunc contract.
func PromptLine(prompt string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	text, err := line.Prompt(prompt)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// PromptPassword reads a password without echoing it.
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// Confirm asks a yes/no question and returns the answer. Anything other
// than an explicit yes is no.
func Confirm(prompt string) bool {
	answer, err := PromptLine(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
