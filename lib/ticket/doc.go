// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package ticket mints, validates, transfers, and refunds ticket
// assets.
//
// A Ticket is an owned object. Minting is the engine's composition
// point: in one transaction it applies any discount, splits the exact
// payment into platform fee and escrowed organizer share, draws a
// sequential number from the event's pool, registers the buyer in the
// attendee table, updates the buyer's purchase stats, and creates the
// asset. An abort at any step leaves none of it behind.
//
// Validation is the one multi-party flow: the validator sends the
// transaction presenting their capability while the ticket holder
// co-signs to authorize mutation of the ticket. The presented QR
// payload must hash to the fingerprint stored at mint time.
// Validation is irreversible and mutually exclusive with refund.
//
// Refund destroys the ticket, so every check (ownership, event
// match, refund window, not validated, not checked in, treasury
// balance) runs before destruction, and destruction is the last
// staged effect.
//
// Abort codes: 500-599.
package ticket
