// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

func attendanceCommand() *cli.Command {
	return &cli.Command{
		Name:    "attendance",
		Summary: "Mint and manage soulbound attendance proofs",
		Subcommands: []*cli.Command{
			attendanceMintCommand(),
			attendanceCheckoutCommand(),
		},
	}
}

func attendanceMintCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var validatorCap, eventID string
	var ticketIDs []string

	return &cli.Command{
		Name:    "mint",
		Summary: "Mint attendance proofs for validated tickets",
		Description: `Mint attendance proofs for validated tickets.

With one --ticket the proof is minted alone; with several the batch
is all-or-nothing, matching how scan devices flush their queues.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("mint", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&validatorCap, "validator-cap", "", "validator capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringSliceVar(&ticketIDs, "ticket", nil, "ticket object ID (repeatable)")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(validatorCap)
			if err != nil {
				return fmt.Errorf("--validator-cap: %w", err)
			}
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			if len(ticketIDs) == 0 {
				return fmt.Errorf("at least one --ticket is required")
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}

			if len(ticketIDs) == 1 {
				ticketObjectID, err := ref.ParseObjectID(ticketIDs[0])
				if err != nil {
					return fmt.Errorf("--ticket: %w", err)
				}
				var result struct {
					ProofID ref.ObjectID `cbor:"proof_id" json:"proof_id"`
				}
				err = client.Call(context.Background(), "attendance.mint", map[string]any{
					"validator_cap": capObjectID,
					"event_id":      eventObjectID,
					"ticket_id":     ticketObjectID,
				}, &result)
				if err != nil {
					return err
				}
				return cli.WriteJSON(result)
			}

			parsed := make([]ref.ObjectID, 0, len(ticketIDs))
			for _, raw := range ticketIDs {
				id, err := ref.ParseObjectID(raw)
				if err != nil {
					return fmt.Errorf("--ticket %q: %w", raw, err)
				}
				parsed = append(parsed, id)
			}
			var result struct {
				ProofIDs []ref.ObjectID `cbor:"proof_ids" json:"proof_ids"`
			}
			err = client.Call(context.Background(), "attendance.batch", map[string]any{
				"validator_cap": capObjectID,
				"event_id":      eventObjectID,
				"ticket_ids":    parsed,
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func attendanceCheckoutCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var validatorCap, eventID, proofID, holderTokenPath string

	return &cli.Command{
		Name:    "checkout",
		Summary: "Record a check-out time on an attendance proof",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&validatorCap, "validator-cap", "", "validator capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&proofID, "proof", "", "attendance proof object ID (required)")
			flags.StringVar(&holderTokenPath, "holder-token", "", "holder's wallet token file (required)")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(validatorCap)
			if err != nil {
				return fmt.Errorf("--validator-cap: %w", err)
			}
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			proofObjectID, err := ref.ParseObjectID(proofID)
			if err != nil {
				return fmt.Errorf("--proof: %w", err)
			}
			holderToken, err := os.ReadFile(holderTokenPath)
			if err != nil {
				return fmt.Errorf("--holder-token: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "attendance.checkout", map[string]any{
				"validator_cap":   capObjectID,
				"event_id":        eventObjectID,
				"proof_id":        proofObjectID,
				"co_signer_token": holderToken,
			}, nil)
		},
	}
}
