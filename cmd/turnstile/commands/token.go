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

func tokenCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var subject, audience, outPath string
	var scopes []string
	var ttlSeconds int64

	return &cli.Command{
		Name:    "token",
		Summary: "Mint an access token (admin surface)",
		Usage:   "turnstile token [flags]",
		Examples: []cli.Example{
			{
				Description: "Mint a day-long wallet token",
				Command:     "turnstile token --subject 0x... --audience wallet --scope 'ticket.*' --scope profile.create --ttl 86400 --out wallet-token",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("token", pflag.ContinueOnError)
			conn.Register(flags)
			flags.StringVar(&subject, "subject", "", "subject account address (required)")
			flags.StringVar(&audience, "audience", "wallet", "token audience: wallet, scanner, or admin")
			flags.StringSliceVar(&scopes, "scope", nil, "operation scope pattern (repeatable)")
			flags.Int64Var(&ttlSeconds, "ttl", 3600, "token lifetime in seconds")
			flags.StringVar(&outPath, "out", "", "write the token to this file (stdout report otherwise)")
			return flags
		},
		Run: func(args []string) error {
			subjectAddr, err := ref.ParseAddress(subject)
			if err != nil {
				return fmt.Errorf("--subject: %w", err)
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				Token []byte `cbor:"token"`
			}
			err = client.Call(context.Background(), "token.mint", map[string]any{
				"subject":     subjectAddr,
				"audience":    audience,
				"scopes":      scopes,
				"ttl_seconds": ttlSeconds,
			}, &result)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := os.WriteFile(outPath, result.Token, 0600); err != nil {
					return fmt.Errorf("writing token: %w", err)
				}
				fmt.Printf("token written to %s (%d bytes)\n", outPath, len(result.Token))
				return nil
			}
			_, err = os.Stdout.Write(result.Token)
			return err
		},
	}
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:    "log",
		Summary: "Inspect and export the append-only record log",
		Subcommands: []*cli.Command{
			logRecordsCommand(),
			logExportCommand(),
		},
	}
}

func logRecordsCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var fromSeq uint64
	var limit int

	return &cli.Command{
		Name:    "records",
		Summary: "Fetch log records from a sequence number",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("records", pflag.ContinueOnError)
			conn.Register(flags)
			flags.Uint64Var(&fromSeq, "from", 0, "first sequence number to fetch")
			flags.IntVar(&limit, "limit", 100, "maximum records to fetch")
			return flags
		},
		Run: func(args []string) error {
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result map[string]any
			err = client.Call(context.Background(), "log.records", map[string]any{
				"from_seq": fromSeq,
				"limit":    limit,
			}, &result)
			if err != nil {
				return err
			}
			return cli.WriteJSON(result)
		},
	}
}

func logExportCommand() *cli.Command {
	var conn cli.ConnectionFlags
	var fromSeq uint64
	var outPath string

	return &cli.Command{
		Name:    "export",
		Summary: "Export a compressed log segment for archival",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
			conn.Register(flags)
			flags.Uint64Var(&fromSeq, "from", 0, "first sequence number to export")
			flags.StringVar(&outPath, "out", "", "segment output file (required)")
			return flags
		},
		Run: func(args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			client, err := conn.Connect()
			if err != nil {
				return err
			}
			var result struct {
				Segment []byte `cbor:"segment"`
				Records int    `cbor:"records"`
			}
			err = client.Call(context.Background(), "log.export", map[string]any{
				"from_seq": fromSeq,
			}, &result)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, result.Segment, 0644); err != nil {
				return fmt.Errorf("writing segment: %w", err)
			}
			fmt.Printf("exported %d records to %s (%d bytes)\n", result.Records, outPath, len(result.Segment))
			return nil
		},
	}
}
