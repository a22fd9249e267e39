// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// addressBytes is the fixed byte length of a ledger address.
const addressBytes = 32

// Address is a validated ledger account address: "0x" followed by 64
// lowercase hex characters (32 bytes). Addresses identify the holders
// of owned objects and the actors recorded in log records.
//
// Turnstile treats addresses as opaque account identifiers — it never
// derives them from keys or dereferences them. The external identity
// provider maps its stable subject IDs to addresses at the boundary.
//
// Address is an immutable value type. The zero value is not valid;
// use IsZero to check.
type Address struct {
	addr string
}

// ParseAddress validates and wraps a raw address string. The input
// must be "0x" followed by exactly 64 hex characters; uppercase hex
// is normalized to lowercase so that equal addresses compare equal.
func ParseAddress(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(raw, "0x") {
		return Address{}, fmt.Errorf("address must start with 0x: %q", raw)
	}
	body := strings.ToLower(raw[2:])
	if len(body) != addressBytes*2 {
		return Address{}, fmt.Errorf("address must be %d hex characters, got %d: %q", addressBytes*2, len(body), raw)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return Address{}, fmt.Errorf("address is not valid hex: %q", raw)
	}
	return Address{addr: "0x" + body}, nil
}

// MustParseAddress is like ParseAddress but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseAddress(raw string) Address {
	a, err := ParseAddress(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseAddress(%q): %v", raw, err))
	}
	return a
}

// String returns the canonical "0x..." form.
func (a Address) String() string { return a.addr }

// IsZero reports whether the Address is the zero value (uninitialized).
func (a Address) IsZero() bool { return a.addr == "" }

// Less reports whether a sorts before other. Used for deterministic
// ordering of address sets in log records and lock acquisition.
func (a Address) Less(other Address) bool { return a.addr < other.addr }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	if a.addr == "" {
		return nil, nil
	}
	return []byte(a.addr), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset address).
func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
