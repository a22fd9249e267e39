// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Mode is an object's ownership mode, fixed at creation.
type Mode uint8

const (
	// ModeOwned objects have exactly one owner address. Only a
	// transaction sent by that owner may take (mutate, transfer, or
	// destroy) the object.
	ModeOwned Mode = iota + 1

	// ModeShared objects belong to no address. Any transaction may
	// reference them; the store serializes conflicting writers.
	ModeShared
)

// String returns "owned" or "shared".
func (m Mode) String() string {
	switch m {
	case ModeOwned:
		return "owned"
	case ModeShared:
		return "shared"
	default:
		return "invalid"
	}
}

// Info is the public envelope of a ledger object: everything about it
// except the content value. Engines use Info for ownership checks
// that cross object boundaries (for example, a ticket transfer
// verifies the sender owns both the ticket and their profile).
type Info struct {
	// ID is the object's globally unique identifier.
	ID ref.ObjectID

	// Kind names the content type (for example "ticket", "event",
	// "treasury.event"). Take and Read verify it so an engine can
	// never decode one entity into another's struct.
	Kind string

	// Mode is the ownership mode.
	Mode Mode

	// Owner is the holding address for owned objects. Zero for
	// shared objects.
	Owner ref.Address

	// Soulbound marks an owned object as permanently
	// non-transferable. Set at creation, never cleared.
	Soulbound bool

	// Version counts committed mutations. Starts at 1.
	Version uint64
}

// object is the authoritative in-memory entry for one ledger object.
type object struct {
	info    Info
	content []byte // deterministic CBOR
}
