// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/turnstile-foundation/turnstile/lib/config"
	"github.com/turnstile-foundation/turnstile/lib/service"
)

// ConnectionFlags holds the flags shared by every command that talks
// to the service socket.
type ConnectionFlags struct {
	// Socket is the service socket path. Empty means use the
	// configured default.
	Socket string

	// Token is the path of the access token file. Empty means send
	// unauthenticated requests (read-only actions accept those).
	Token string
}

// Register adds the shared connection flags to a flag set.
func (cf *ConnectionFlags) Register(flags *pflag.FlagSet) {
	flags.StringVar(&cf.Socket, "socket", "", "service socket path (default from configuration)")
	flags.StringVar(&cf.Token, "token", os.Getenv("TURNSTILE_TOKEN"), "access token file (default $TURNSTILE_TOKEN)")
}

// Connect builds a ServiceClient from the flags. The socket path
// falls back to the loaded configuration, then to the built-in
// default.
func (cf *ConnectionFlags) Connect() (*service.ServiceClient, error) {
	socketPath := cf.Socket
	if socketPath == "" {
		if cfg, err := config.Load(); err == nil {
			socketPath = cfg.Service.SocketPath
		} else {
			socketPath = config.Default().Service.SocketPath
		}
	}

	if cf.Token == "" {
		return service.NewServiceClientFromToken(socketPath, nil), nil
	}
	client, err := service.NewServiceClient(socketPath, cf.Token)
	if err != nil {
		return nil, fmt.Errorf("loading token: %w", err)
	}
	return client, nil
}

// WriteJSON marshals value as indented JSON and writes it to stdout.
// Command output goes through this function so results stay
// machine-readable.
func WriteJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
