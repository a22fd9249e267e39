// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjectID is the globally unique identifier of a ledger object. The
// canonical form is a lowercase UUID string (RFC 4122). Every object
// in the store — events, tickets, treasuries, capabilities, profiles,
// proofs — is addressed by exactly one ObjectID for its whole life.
//
// ObjectID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type ObjectID struct {
	id string
}

// NewObjectID returns a freshly generated random ObjectID (UUIDv4).
func NewObjectID() ObjectID {
	return ObjectID{id: uuid.NewString()}
}

// ParseObjectID validates and wraps a raw object ID string.
func ParseObjectID(raw string) (ObjectID, error) {
	if raw == "" {
		return ObjectID{}, fmt.Errorf("empty object ID")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object ID %q: %w", raw, err)
	}
	return ObjectID{id: parsed.String()}, nil
}

// MustParseObjectID is like ParseObjectID but panics on error. Use in
// tests and static initialization where the input is known-valid.
func MustParseObjectID(raw string) ObjectID {
	o, err := ParseObjectID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseObjectID(%q): %v", raw, err))
	}
	return o
}

// String returns the canonical UUID string form.
func (o ObjectID) String() string { return o.id }

// IsZero reports whether the ObjectID is the zero value (uninitialized).
func (o ObjectID) IsZero() bool { return o.id == "" }

// Less reports whether o sorts before other. The store acquires
// per-object locks in this order to stay deadlock-free.
func (o ObjectID) Less(other ObjectID) bool { return o.id < other.id }

// MarshalText implements encoding.TextMarshaler.
func (o ObjectID) MarshalText() ([]byte, error) {
	if o.id == "" {
		return nil, nil
	}
	return []byte(o.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (unset object ID).
func (o *ObjectID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = ObjectID{}
		return nil
	}
	parsed, err := ParseObjectID(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
