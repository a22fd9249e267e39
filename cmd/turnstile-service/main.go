// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// turnstile-service is the Turnstile daemon. It owns the ledger
// database, runs genesis bootstrap on first start, and serves the
// socket protocol that wallets, organizer tooling, and door-scan
// devices speak.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/turnstile-foundation/turnstile/lib/accesstoken"
	"github.com/turnstile-foundation/turnstile/lib/bootstrap"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/config"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/service"
	"github.com/turnstile-foundation/turnstile/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		ledgerPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "configuration file (defaults to $TURNSTILE_CONFIG)")
	flag.StringVar(&socketPath, "socket", "", "override the configured socket path")
	flag.StringVar(&ledgerPath, "ledger", "", "override the configured ledger database path")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("turnstile-service %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if socketPath != "" {
		cfg.Service.SocketPath = socketPath
	}
	if ledgerPath != "" {
		cfg.Ledger.Path = ledgerPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	superAdmin, err := ref.ParseAddress(cfg.Platform.SuperAdmin)
	if err != nil {
		return fmt.Errorf("platform.super_admin: %w", err)
	}

	store, err := ledger.Open(ledger.Config{
		Path:   cfg.Ledger.Path,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	genesis, err := bootstrap.Run(store, superAdmin, cfg.Platform.FeeBps)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("ledger ready",
		"path", cfg.Ledger.Path,
		"log_seq", store.LogSeq(),
		"event_registry", genesis.EventRegistry,
	)

	if cfg.Service.TokenKeyFile == "" {
		return fmt.Errorf("config: service.token_key_file is required")
	}
	public, private, generated, err := accesstoken.LoadOrGenerateKeypair(cfg.Service.TokenKeyFile)
	if err != nil {
		return fmt.Errorf("loading token signing key: %w", err)
	}
	if generated {
		logger.Info("generated token signing key", "path", cfg.Service.TokenKeyFile)
		// First boot: mint a bootstrap admin token for the platform
		// operator so the CLI can reach the admin surface.
		if err := writeBootstrapToken(cfg.Service.TokenKeyFile, private, superAdmin); err != nil {
			return err
		}
	}

	d := &daemon{
		store:      store,
		genesis:    genesis,
		logger:     logger,
		clk:        clock.Real(),
		signingKey: private,
	}
	d.walletAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceWallet, Clock: d.clk}
	d.scannerAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceScanner, Clock: d.clk}
	d.adminAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceAdmin, Clock: d.clk}

	server := service.NewSocketServer(cfg.Service.SocketPath, logger)
	server.SetCodeExtractor(ledger.CodeOf)
	d.register(server)

	logger.Info("turnstile-service starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"socket", cfg.Service.SocketPath,
	)
	return server.Serve(ctx)
}

// writeBootstrapToken mints a one-year admin token for the platform
// operator and writes it next to the signing key with 0600
// permissions. Subsequent tokens are minted over the socket with
// token.mint.
func writeBootstrapToken(keyPath string, private []byte, superAdmin ref.Address) error {
	minted, err := accesstoken.Mint(private, &accesstoken.Token{
		Subject:   superAdmin,
		Audience:  accesstoken.AudienceAdmin,
		Scopes:    []string{"*.*"},
		ID:        accesstoken.NewID(),
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(365 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		return fmt.Errorf("minting bootstrap token: %w", err)
	}
	tokenPath := filepath.Join(filepath.Dir(keyPath), "bootstrap-token")
	if err := os.WriteFile(tokenPath, minted, 0600); err != nil {
		return fmt.Errorf("writing bootstrap token: %w", err)
	}
	return nil
}
