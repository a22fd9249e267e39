// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package accesstoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
)

// GenerateKeypair creates a new Ed25519 keypair for token signing.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return public, private, nil
}

// SaveKeypair writes an Ed25519 keypair to keyPath and keyPath+".pub".
// The private key file has 0600 permissions; the public key file 0644.
func SaveKeypair(keyPath string, public ed25519.PublicKey, private ed25519.PrivateKey) error {
	if err := os.WriteFile(keyPath, private, 0600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	if err := os.WriteFile(keyPath+".pub", public, 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// LoadKeypair loads an Ed25519 keypair from keyPath and keyPath+".pub".
// Returns an error if either file is missing or has an unexpected size.
func LoadKeypair(keyPath string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	privateBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading private key: %w", err)
	}
	if len(privateBytes) != ed25519.PrivateKeySize {
		return nil, nil, fmt.Errorf("private key has %d bytes, want %d", len(privateBytes), ed25519.PrivateKeySize)
	}

	publicBytes, err := os.ReadFile(keyPath + ".pub")
	if err != nil {
		return nil, nil, fmt.Errorf("reading public key: %w", err)
	}
	if len(publicBytes) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("public key has %d bytes, want %d", len(publicBytes), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(publicBytes), ed25519.PrivateKey(privateBytes), nil
}

// LoadOrGenerateKeypair loads an existing keypair from keyPath, or
// generates and saves a new one if the files don't exist. Returns the
// keypair and whether it was newly generated.
func LoadOrGenerateKeypair(keyPath string) (ed25519.PublicKey, ed25519.PrivateKey, bool, error) {
	if keyPath == "" {
		return nil, nil, false, fmt.Errorf("accesstoken: signing key path is empty")
	}
	public, private, err := LoadKeypair(keyPath)
	if err == nil {
		return public, private, false, nil
	}

	// Distinguish missing files (expected on first boot) from
	// corruption or bad permissions.
	if _, statErr := os.Stat(keyPath); statErr == nil {
		return nil, nil, false, err
	}

	public, private, err = GenerateKeypair()
	if err != nil {
		return nil, nil, false, err
	}

	if err := SaveKeypair(keyPath, public, private); err != nil {
		return nil, nil, false, err
	}

	return public, private, true, nil
}
