// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Command turnstile is the operator and wallet CLI for a turnstile
// ticketing deployment. It talks to turnstile-service over its Unix
// socket and authenticates with an access token.
package main

import (
	"fmt"
	"os"

	"github.com/turnstile-foundation/turnstile/cmd/turnstile/commands"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
