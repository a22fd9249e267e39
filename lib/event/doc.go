// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package event implements the event lifecycle state machine.
//
// An Event is a shared object that advances strictly forward:
// Draft -> Open -> InProgress -> Completed, with Cancelled reachable
// from any state before Completed and terminal once entered. Creation
// atomically provisions the event's treasury, its ticket pool, and
// the creator's full-permission organizer capability; if any of the
// temporal-ordering checks fail, none of them exist.
//
// The attendee table lives on the event. Registration is the single
// place capacity is enforced; it is package-internal because only the
// ticket engine may register an attendee (a registration without a
// ticket would be unaccounted revenue). Check-in is idempotent so a
// validator retrying a dropped call does no harm. Unregistration
// refuses checked-in attendees: check-in and refund are mutually
// exclusive.
//
// Abort codes: 400-499.
package event
