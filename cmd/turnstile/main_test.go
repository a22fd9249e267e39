// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/cmd/turnstile/commands"
)

// TestCommandTreeShape walks the full production command tree and
// validates its basic invariants: every command either runs or
// dispatches to subcommands, every subcommand carries a summary for
// the parent's help listing, and sibling names are unique.
func TestCommandTreeShape(t *testing.T) {
	root := commands.Root()
	walkCommands(root, nil, func(command *cli.Command, path []string) {
		name := strings.Join(path, " ")
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: command has neither Run nor Subcommands", name)
		}
		if command != root && command.Summary == "" {
			t.Errorf("%s: command missing Summary", name)
		}

		seen := make(map[string]bool)
		for _, sub := range command.Subcommands {
			if seen[sub.Name] {
				t.Errorf("%s: duplicate subcommand %q", name, sub.Name)
			}
			seen[sub.Name] = true
		}
	})
}

// walkCommands recursively visits every command in the tree, calling
// visit for each node with the accumulated command path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := make([]string, len(path)+1)
	copy(current, path)
	current[len(path)] = command.Name
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}
