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
	"github.com/turnstile-foundation/turnstile/lib/ticket"
)

func ticketCommand() *cli.Command {
	return &cli.Command{
		Name:    "ticket",
		Summary: "Mint, transfer, refund, and validate tickets",
		Subcommands: []*cli.Command{
			ticketMintCommand(),
			ticketShowCommand(),
			ticketTransferCommand(),
			ticketRefundCommand(),
			ticketValidateCommand(),
		},
	}
}

func ticketShowCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var ticketID string

	return &cli.Command{
		Name:    "show",
		Summary: "Show a ticket and its current holder",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&ticketID, "ticket", "", "ticket object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(ticketID)
			if err != nil {
				return fmt.Errorf("--ticket: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				Ticket ticket.Ticket `cbor:"ticket" json:"ticket"`
				Holder ref.Address   `cbor:"holder" json:"holder"`
			}
			if err := client.Call(context.Background(), "ticket.read", map[string]any{"ticket_id": id}, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func ticketMintCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var eventID, discountID, tier, qr, sealedRef string
	var payment uint64

	return &cli.Command{
		Name:    "mint",
		Summary: "Buy a ticket for an open event",
		Description: `Buy a ticket for an open event.

Payment must exactly match the ticket price (after any discount).
The QR payload is fingerprinted on the ledger; keep the original
payload for door-scan validation.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("mint", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&discountID, "discount", "", "discount code object ID")
			flags.StringVar(&tier, "tier", "general", "ticket tier")
			flags.Uint64Var(&payment, "payment", 0, "payment amount in base units")
			flags.StringVar(&qr, "qr", "", "QR payload to fingerprint (required)")
			flags.StringVar(&sealedRef, "sealed-ref", "", "sealed payload blob reference")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			if qr == "" {
				return fmt.Errorf("--qr is required")
			}
			fields := map[string]any{
				"event_id":   id,
				"tier":       tier,
				"payment":    payment,
				"qr":         []byte(qr),
				"sealed_ref": sealedRef,
			}
			if discountID != "" {
				discount, err := ref.ParseObjectID(discountID)
				if err != nil {
					return fmt.Errorf("--discount: %w", err)
				}
				fields["discount_id"] = discount
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				TicketID ref.ObjectID `cbor:"ticket_id" json:"ticket_id"`
			}
			if err := client.Call(context.Background(), "ticket.mint", fields, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func ticketTransferCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var eventID, ticketID, to string

	return &cli.Command{
		Name:    "transfer",
		Summary: "Transfer an unvalidated ticket to another holder",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("transfer", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&ticketID, "ticket", "", "ticket object ID (required)")
			flags.StringVar(&to, "to", "", "recipient address (required)")
			return flags
		},
		Run: func(args []string) error {
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			ticketObjectID, err := ref.ParseObjectID(ticketID)
			if err != nil {
				return fmt.Errorf("--ticket: %w", err)
			}
			recipient, err := ref.ParseAddress(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "ticket.transfer", map[string]any{
				"event_id":  eventObjectID,
				"ticket_id": ticketObjectID,
				"to":        recipient,
			}, nil)
		},
	}
}

func ticketRefundCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var eventID, ticketID string

	return &cli.Command{
		Name:    "refund",
		Summary: "Refund an unvalidated ticket before the refund deadline",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("refund", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&ticketID, "ticket", "", "ticket object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			ticketObjectID, err := ref.ParseObjectID(ticketID)
			if err != nil {
				return fmt.Errorf("--ticket: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "ticket.refund", map[string]any{
				"event_id":  eventObjectID,
				"ticket_id": ticketObjectID,
			}, nil)
		},
	}
}

func ticketValidateCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var validatorCap, eventID, ticketID, qr, holderTokenPath string

	return &cli.Command{
		Name:    "validate",
		Summary: "Validate a ticket at the door",
		Description: `Validate a ticket at the door.

Runs with the scanner's token; the holder consents by presenting
their wallet token file, whose subject co-signs the transaction.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&validatorCap, "validator-cap", "", "validator capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&ticketID, "ticket", "", "ticket object ID (required)")
			flags.StringVar(&qr, "qr", "", "scanned QR payload (required)")
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
			ticketObjectID, err := ref.ParseObjectID(ticketID)
			if err != nil {
				return fmt.Errorf("--ticket: %w", err)
			}
			holderToken, err := os.ReadFile(holderTokenPath)
			if err != nil {
				return fmt.Errorf("--holder-token: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "ticket.validate", map[string]any{
				"validator_cap":   capObjectID,
				"event_id":        eventObjectID,
				"ticket_id":       ticketObjectID,
				"qr":              []byte(qr),
				"co_signer_token": holderToken,
			}, nil)
		},
	}
}
