// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref defines the validated identifier types used throughout
// the ledger: account addresses and object identifiers.
//
// Both types are immutable value types. The zero value is never valid;
// use IsZero to check. Both implement encoding.TextMarshaler and
// encoding.TextUnmarshaler so they serialize as text strings in CBOR,
// JSON, and YAML without any per-call conversion.
//
// This package has no dependencies on the rest of the module and no
// I/O. Every other package imports it; it imports nothing above the
// standard library and the UUID generator.
package ref
