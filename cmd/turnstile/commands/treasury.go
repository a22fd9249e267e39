// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

func treasuryCommand() *cli.Command {
	return &cli.Command{
		Name:    "treasury",
		Summary: "Inspect and withdraw from event treasuries",
		Subcommands: []*cli.Command{
			treasuryShowCommand(),
			treasuryWithdrawCommand(),
		},
	}
}

func treasuryShowCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var treasuryID string

	return &cli.Command{
		Name:    "show",
		Summary: "Show a treasury's balances and withdrawable amount",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&treasuryID, "treasury", "", "treasury object ID (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(treasuryID)
			if err != nil {
				return fmt.Errorf("--treasury: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				Treasury     treasury.EventTreasury `cbor:"treasury" json:"treasury"`
				Withdrawable uint64                 `cbor:"withdrawable" json:"withdrawable"`
			}
			if err := client.Call(context.Background(), "treasury.read", map[string]any{"treasury_id": id}, &result); err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func treasuryWithdrawCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var capID, treasuryID string
	var amount uint64

	return &cli.Command{
		Name:    "withdraw",
		Summary: "Withdraw from the treasury's unlocked balance",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("withdraw", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&capID, "cap", "", "organizer capability object ID (required)")
			flags.StringVar(&treasuryID, "treasury", "", "treasury object ID (required)")
			flags.Uint64Var(&amount, "amount", 0, "amount to withdraw in base units")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(capID)
			if err != nil {
				return fmt.Errorf("--cap: %w", err)
			}
			treasuryObjectID, err := ref.ParseObjectID(treasuryID)
			if err != nil {
				return fmt.Errorf("--treasury: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), "treasury.withdraw", map[string]any{
				"cap_id":      capObjectID,
				"treasury_id": treasuryObjectID,
				"amount":      amount,
			}, nil)
		},
	}
}

func discountCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var capID, eventID, code, expires string
	var percent, maxUses uint64

	return &cli.Command{
		Name:    "discount",
		Summary: "Create a discount code for an event",
		Usage:   "turnstile discount [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("discount", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&capID, "cap", "", "organizer capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&code, "code", "", "discount code string (required)")
			flags.Uint64Var(&percent, "percent", 0, "discount percentage, 0-100")
			flags.Uint64Var(&maxUses, "max-uses", 0, "maximum redemptions")
			flags.StringVar(&expires, "expires", "", "expiry time, RFC 3339 (never if unset)")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(capID)
			if err != nil {
				return fmt.Errorf("--cap: %w", err)
			}
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			expiresAt, err := parseTime(expires, "expires")
			if err != nil {
				return err
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				DiscountID ref.ObjectID `cbor:"discount_id" json:"discount_id"`
			}
			err = client.Call(context.Background(), "discount.create", map[string]any{
				"cap_id":     capObjectID,
				"event_id":   eventObjectID,
				"code":       code,
				"percent":    percent,
				"max_uses":   maxUses,
				"expires_at": expiresAt,
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func validatorCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var capID, eventID, validator, expires string

	return &cli.Command{
		Name:    "validator",
		Summary: "Grant a door-scan validator capability",
		Usage:   "turnstile validator [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("validator", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&capID, "cap", "", "organizer capability object ID (required)")
			flags.StringVar(&eventID, "event", "", "event object ID (required)")
			flags.StringVar(&validator, "address", "", "validator's account address (required)")
			flags.StringVar(&expires, "expires", "", "expiry time, RFC 3339 (never if unset)")
			return flags
		},
		Run: func(args []string) error {
			capObjectID, err := ref.ParseObjectID(capID)
			if err != nil {
				return fmt.Errorf("--cap: %w", err)
			}
			eventObjectID, err := ref.ParseObjectID(eventID)
			if err != nil {
				return fmt.Errorf("--event: %w", err)
			}
			validatorAddr, err := ref.ParseAddress(validator)
			if err != nil {
				return fmt.Errorf("--address: %w", err)
			}
			expiresAt, err := parseTime(expires, "expires")
			if err != nil {
				return err
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				ValidatorCap ref.ObjectID `cbor:"validator_cap" json:"validator_cap"`
			}
			err = client.Call(context.Background(), "validator.grant", map[string]any{
				"cap_id":     capObjectID,
				"event_id":   eventObjectID,
				"validator":  validatorAddr,
				"expires_at": expiresAt,
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}
