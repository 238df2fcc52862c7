// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command desperado logs into the community site and automates market
// and inventory chores over the resulting session.
package main

import (
	"os"

	"github.com/jeranaias/desperado/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
