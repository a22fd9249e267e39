// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package accesstoken

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadOrGenerateKeypairRoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "token.key")

	public, private, generated, err := LoadOrGenerateKeypair(keyPath)
	if err != nil {
		t.Fatalf("first LoadOrGenerateKeypair: %v", err)
	}
	if !generated {
		t.Error("first load should generate a fresh keypair")
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 0600", perm)
	}

	reloadedPublic, reloadedPrivate, generated, err := LoadOrGenerateKeypair(keyPath)
	if err != nil {
		t.Fatalf("second LoadOrGenerateKeypair: %v", err)
	}
	if generated {
		t.Error("second load should reuse the saved keypair")
	}
	if !bytes.Equal(reloadedPublic, public) || !bytes.Equal(reloadedPrivate, private) {
		t.Error("reloaded keypair differs from the generated one")
	}
}

func TestLoadOrGenerateKeypairRejectsEmptyPath(t *testing.T) {
	_, _, _, err := LoadOrGenerateKeypair("")
	if err == nil {
		t.Fatal("empty key path should be rejected, not treated as first boot")
	}
	if !strings.Contains(err.Error(), "key path is empty") {
		t.Errorf("error = %v, want an explicit empty-path message", err)
	}
}

func TestLoadOrGenerateKeypairRejectsCorruptKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "token.key")
	if err := os.WriteFile(keyPath, []byte("truncated"), 0600); err != nil {
		t.Fatalf("writing corrupt key: %v", err)
	}

	// An existing but malformed key file is an error, never silently
	// overwritten with a fresh keypair.
	_, _, _, err := LoadOrGenerateKeypair(keyPath)
	if err == nil {
		t.Fatal("corrupt key file should fail the load")
	}
	data, readErr := os.ReadFile(keyPath)
	if readErr != nil {
		t.Fatalf("re-reading key file: %v", readErr)
	}
	if string(data) != "truncated" {
		t.Error("corrupt key file was overwritten")
	}
}
