// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete turnstile CLI command tree.
package commands

import (
	"fmt"
	"time"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/version"
)

// Root builds and returns the complete turnstile CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "turnstile",
		Description: `Turnstile: decentralized event ticketing.

Create events, mint and transfer tickets, run door-scan validation,
and settle organizer treasuries against a capability-checked ledger.`,
		Subcommands: []*cli.Command{
			profileCommand(),
			eventCommand(),
			ticketCommand(),
			treasuryCommand(),
			discountCommand(),
			validatorCommand(),
			attendanceCommand(),
			tokenCommand(),
			logCommand(),
			payloadCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("turnstile %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// parseTime parses an RFC 3339 timestamp flag into Unix seconds.
// Empty input yields zero.
func parseTime(value, flagName string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flagName, err)
	}
	return t.Unix(), nil
}
