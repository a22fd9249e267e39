// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package attendance mints soulbound proof-of-attendance assets.
//
// A proof certifies that a specific ticket was validated at a
// specific event. Proofs are created soulbound: the ledger refuses to
// ever transfer one, an irrevocable choice made because
// proof-of-attendance has no legitimate secondary market.
//
// The engine reads the ticket and the event but never mutates either;
// uniqueness (at most one proof per ticket) is enforced through the
// AttendanceRegistry singleton's ticket-to-proof map, whose entries
// are append-only.
//
// Abort codes: 600-699.
package attendance
