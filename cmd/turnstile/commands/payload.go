// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/cli"
	"github.com/turnstile-foundation/turnstile/lib/sealed"
)

func payloadCommand() *cli.Command {
	return &cli.Command{
		Name:    "payload",
		Summary: "Seal and open off-ledger ticket payloads",
		Description: `Seal and open off-ledger ticket payloads.

Ticket records on the ledger carry only an opaque sealed reference;
the payload itself (seat, gate, entry instructions) is age-encrypted
to the holder's public key and stored off-ledger.`,
		Subcommands: []*cli.Command{
			payloadKeygenCommand(),
			payloadSealCommand(),
			payloadOpenCommand(),
		},
	}
}

func payloadKeygenCommand() *cli.Command {
	var outPath string

	return &cli.Command{
		Name:    "keygen",
		Summary: "Generate an age keypair for payload sealing",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
			flags.StringVar(&outPath, "out", "", "write the private key to this file (required)")
			return flags
		},
		Run: func(args []string) error {
			if outPath == "" {
				return fmt.Errorf("--out is required")
			}
			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(keypair.PrivateKey+"\n"), 0600); err != nil {
				return fmt.Errorf("writing private key: %w", err)
			}
			fmt.Printf("public key: %s\n", keypair.PublicKey)
			return nil
		},
	}
}

func payloadSealCommand() *cli.Command {
	var inPath, outPath string
	var recipients []string

	return &cli.Command{
		Name:    "seal",
		Summary: "Encrypt a payload to one or more recipients",
		Examples: []cli.Example{
			{
				Description: "Seal seat details to a holder and the organizer escrow key",
				Command:     "turnstile payload seal --in seat.json --recipient age1holder... --recipient age1escrow... --out seat.sealed",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flags.StringVar(&inPath, "in", "", "plaintext payload file (required)")
			flags.StringVar(&outPath, "out", "", "sealed output file (required)")
			flags.StringSliceVar(&recipients, "recipient", nil, "age public key (repeatable, required)")
			return flags
		},
		Run: func(args []string) error {
			if inPath == "" || outPath == "" {
				return fmt.Errorf("--in and --out are required")
			}
			for _, recipient := range recipients {
				if err := sealed.ParsePublicKey(recipient); err != nil {
					return fmt.Errorf("--recipient %q: %w", recipient, err)
				}
			}
			plaintext, err := os.ReadFile(inPath)
			if err != nil {
				return err
			}
			ciphertext, err := sealed.Encrypt(plaintext, recipients)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, []byte(ciphertext), 0644); err != nil {
				return fmt.Errorf("writing sealed payload: %w", err)
			}
			return nil
		},
	}
}

func payloadOpenCommand() *cli.Command {
	var inPath, outPath, keyPath string

	return &cli.Command{
		Name:    "open",
		Summary: "Decrypt a sealed payload with a private key",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("open", pflag.ContinueOnError)
			flags.StringVar(&inPath, "in", "", "sealed payload file (required)")
			flags.StringVar(&outPath, "out", "", "plaintext output file (stdout if unset)")
			flags.StringVar(&keyPath, "key", "", "age private key file (required)")
			return flags
		},
		Run: func(args []string) error {
			if inPath == "" || keyPath == "" {
				return fmt.Errorf("--in and --key are required")
			}
			keyData, err := os.ReadFile(keyPath)
			if err != nil {
				return err
			}
			privateKey := strings.TrimSpace(string(keyData))
			ciphertext, err := os.ReadFile(inPath)
			if err != nil {
				return err
			}
			plaintext, err := sealed.Decrypt(string(ciphertext), privateKey)
			if err != nil {
				return err
			}
			if outPath == "" {
				_, err := os.Stdout.Write(plaintext)
				return err
			}
			if err := os.WriteFile(outPath, plaintext, 0600); err != nil {
				return fmt.Errorf("writing payload: %w", err)
			}
			return nil
		},
	}
}
