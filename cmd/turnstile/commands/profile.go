// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:    "profile",
		Summary: "Create and inspect user profiles",
		Subcommands: []*cli.Command{
			profileCreateCommand(),
			profileShowCommand(),
			profileRateCommand(),
		},
	}
}

func profileCreateCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var displayName, avatarRef, subjectID string
	var categories []string
	var notifications bool

	return &cli.Command{
		Name:    "create",
		Summary: "Create a profile for the token's subject",
		Examples: []cli.Example{
			{Description: "Create a profile", Command: "turnstile profile create --name 'Dana K.'"},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("create", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&displayName, "name", "", "display name (required)")
			flags.StringVar(&avatarRef, "avatar", "", "avatar blob reference")
			flags.StringVar(&subjectID, "subject-id", "", "external identity provider subject ID")
			flags.StringSliceVar(&categories, "categories", nil, "preferred event categories")
			flags.BoolVar(&notifications, "notifications", true, "receive event notifications")
			return flags
		},
		Run: func(args []string) error {
			if displayName == "" {
				return fmt.Errorf("--name is required")
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				ProfileID ref.ObjectID `cbor:"profile_id" json:"profile_id"`
			}
			err = client.Call(context.Background(), "profile.create", map[string]any{
				"identity": profile.Identity{
					DisplayName: displayName,
					AvatarRef:   avatarRef,
					SubjectID:   subjectID,
				},
				"preferences": profile.Preferences{
					Notifications: notifications,
					Categories:    categories,
				},
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func profileShowCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var address string

	return &cli.Command{
		Name:    "show",
		Summary: "Show the profile for an address",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("show", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&address, "address", "", "account address (required)")
			return flags
		},
		Run: func(args []string) error {
			addr, err := ref.ParseAddress(address)
			if err != nil {
				return fmt.Errorf("--address: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				ProfileID ref.ObjectID    `cbor:"profile_id" json:"profile_id"`
				Profile   profile.Profile `cbor:"profile" json:"profile"`
			}
			err = client.Call(context.Background(), "profile.read", map[string]any{
				"address": addr,
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func profileRateCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var profileID, role, coSignerTokenPath string
	var rating uint64

	return &cli.Command{
		Name:    "rate",
		Summary: "Rate an organizer or attendee",
		Description: `Rate an organizer or attendee on a 0-100 scale.

The rated profile's holder must consent by providing their own token
file; its subject co-signs the rating transaction.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("rate", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&profileID, "profile", "", "profile object ID (required)")
			flags.StringVar(&role, "role", "organizer", "which rating to record: organizer or attendee")
			flags.Uint64Var(&rating, "rating", 0, "rating from 0 to 100")
			flags.StringVar(&coSignerTokenPath, "co-signer-token", "", "rated holder's token file (required)")
			return flags
		},
		Run: func(args []string) error {
			id, err := ref.ParseObjectID(profileID)
			if err != nil {
				return fmt.Errorf("--profile: %w", err)
			}
			var action string
			switch role {
			case "organizer":
				action = "rate.organizer"
			case "attendee":
				action = "rate.attendee"
			default:
				return fmt.Errorf("--role must be organizer or attendee")
			}
			coSignerToken, err := os.ReadFile(coSignerTokenPath)
			if err != nil {
				return fmt.Errorf("--co-signer-token: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			return client.Call(context.Background(), action, map[string]any{
				"profile_id":      id,
				"rating":          rating,
				"co_signer_token": coSignerToken,
			}, nil)
		},
	}
}
