// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for ticket payloads. A ticket's
// on-ledger record carries only an opaque sealed reference; the payload
// behind it (seat assignment, entry instructions, venue details) is
// encrypted off-ledger to the holder's public key so that validators and
// the platform operator cannot read it.
package sealed
