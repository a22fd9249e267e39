// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// The attendee operations are engine-internal and mutate an Event the
// caller has already taken: the ticket engine stages the event once
// per transaction and threads the pointer through registration,
// payment, and minting so every effect commits together.

// RegisterAttendee adds an attendee to the event's table. This is the
// single place capacity is enforced. Requires the event Open, the
// registration window still open, and the address not yet registered.
func RegisterAttendee(tx *ledger.Tx, _ enginegate.Key, ev *Event, attendee ref.Address, ticketID ref.ObjectID) error {
	if ev.Status != StatusOpen {
		return ledger.Abortf(CodeWrongStatus, "event is %s, registration requires open", ev.Status)
	}
	now := tx.Now().Unix()
	if now > ev.Config.RegistrationDeadline {
		return ledger.Abortf(CodeRegistrationClosed, "registration deadline %d passed", ev.Config.RegistrationDeadline)
	}
	if ev.Stats.Registered >= ev.Config.Capacity {
		return ledger.Abortf(CodeSoldOut, "event is at capacity %d", ev.Config.Capacity)
	}
	addr := attendee.String()
	if _, ok := ev.Attendees[addr]; ok {
		return ledger.Abortf(CodeAlreadyRegistered, "%s is already registered", attendee)
	}

	ev.Attendees[addr] = Registration{
		TicketID:     ticketID,
		RegisteredAt: now,
	}
	ev.Stats.Registered++
	return nil
}

// CheckInAttendee marks an attendee present. Idempotent: a repeated
// check-in is a silent no-op so a validator retrying a dropped call
// does no harm. An unregistered address aborts.
func CheckInAttendee(tx *ledger.Tx, _ enginegate.Key, ev *Event, attendee ref.Address) error {
	addr := attendee.String()
	reg, ok := ev.Attendees[addr]
	if !ok {
		return ledger.Abortf(CodeNotRegistered, "%s is not registered", attendee)
	}
	if reg.CheckedIn {
		return nil
	}
	reg.CheckedIn = true
	reg.CheckedInAt = tx.Now().Unix()
	ev.Attendees[addr] = reg
	ev.Stats.CheckedIn++
	return nil
}

// UnregisterAttendee removes an attendee, on the refund path. Refused
// once the attendee checked in: check-in and refund are mutually
// exclusive.
func UnregisterAttendee(_ enginegate.Key, ev *Event, attendee ref.Address) error {
	addr := attendee.String()
	reg, ok := ev.Attendees[addr]
	if !ok {
		return ledger.Abortf(CodeNotRegistered, "%s is not registered", attendee)
	}
	if reg.CheckedIn {
		return ledger.Abortf(CodeCheckedIn, "%s already checked in, refund refused", attendee)
	}
	delete(ev.Attendees, addr)
	ev.Stats.Registered--
	return nil
}

// MoveRegistration transfers an attendee's registration to a new
// address, preserving the row. Used when a ticket changes hands so
// the table never carries a stale entry for the old owner.
func MoveRegistration(_ enginegate.Key, ev *Event, from, to ref.Address) error {
	fromAddr := from.String()
	reg, ok := ev.Attendees[fromAddr]
	if !ok {
		return ledger.Abortf(CodeNotRegistered, "%s is not registered", from)
	}
	toAddr := to.String()
	if _, ok := ev.Attendees[toAddr]; ok {
		return ledger.Abortf(CodeAlreadyRegistered, "%s is already registered", to)
	}
	delete(ev.Attendees, fromAddr)
	ev.Attendees[toAddr] = reg
	return nil
}

// creditOrganized folds a completed event into the organizer's
// profile stats.
func creditOrganized(tx *ledger.Tx, profileID ref.ObjectID) error {
	var p profile.Profile
	if err := tx.Take(profileID, profile.KindProfile, &p); err != nil {
		return err
	}
	return profile.RecordOrganized(tx, enginegate.New(), &p)
}
