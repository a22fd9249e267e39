// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

// Object kinds owned by this engine.
const (
	KindEvent    = "event"
	KindRegistry = "event.registry"
	KindPool     = "event.pool"
)

// Abort codes 400-499.
const (
	// CodeBadSchedule: event times violate the required ordering
	// (start > now, end > start, deadlines at or before start).
	CodeBadSchedule ledger.Code = 400

	// CodeBadCapacity: capacity is zero.
	CodeBadCapacity ledger.Code = 401

	// CodeWrongStatus: the requested transition or operation is not
	// valid in the event's current status.
	CodeWrongStatus ledger.Code = 402

	// CodeRegistrationClosed: the registration deadline has passed.
	CodeRegistrationClosed ledger.Code = 403

	// CodeSoldOut: no pool availability remains.
	CodeSoldOut ledger.Code = 404

	// CodeAlreadyRegistered: the address is already in the attendee
	// table.
	CodeAlreadyRegistered ledger.Code = 405

	// CodeNotRegistered: the address is not in the attendee table.
	CodeNotRegistered ledger.Code = 406

	// CodeCheckedIn: unregistration refused because the attendee
	// already checked in.
	CodeCheckedIn ledger.Code = 407

	// CodeRefundWindowOpen: funds cannot unlock before the refund
	// deadline passes.
	CodeRefundWindowOpen ledger.Code = 408
)

// Status is an event's lifecycle state. Transitions move strictly
// forward; Cancelled is reachable from anything before Completed and
// is terminal.
type Status uint8

const (
	StatusDraft Status = iota + 1
	StatusOpen
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusOpen:
		return "open"
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "invalid"
	}
}

// Metadata is the human-facing event description. VenueRef and
// ImageRef are opaque storage-blob identifiers, stored verbatim.
type Metadata struct {
	Name        string `cbor:"name"`
	Description string `cbor:"description,omitempty"`
	Category    string `cbor:"category"`
	VenueRef    string `cbor:"venue_ref,omitempty"`
	ImageRef    string `cbor:"image_ref,omitempty"`
}

// Config is the immutable part of an event: times, capacity, price,
// and flags. All times are Unix seconds.
type Config struct {
	StartTime            int64  `cbor:"start_time"`
	EndTime              int64  `cbor:"end_time"`
	RegistrationDeadline int64  `cbor:"registration_deadline"`
	RefundDeadline       int64  `cbor:"refund_deadline"`
	Capacity             uint64 `cbor:"capacity"`
	TicketPrice          uint64 `cbor:"ticket_price"`
	Transferable         bool   `cbor:"transferable"`
}

// Registration is one attendee's row in the event's attendee table.
type Registration struct {
	TicketID     ref.ObjectID `cbor:"ticket_id"`
	RegisteredAt int64        `cbor:"registered_at"`
	CheckedIn    bool         `cbor:"checked_in"`
	CheckedInAt  int64        `cbor:"checked_in_at,omitempty"`
}

// Stats are the event's aggregate counters.
type Stats struct {
	Registered uint64 `cbor:"registered"`
	CheckedIn  uint64 `cbor:"checked_in"`
}

// Event is the shared lifecycle object. Attendees is keyed by the
// attendee address in its text form.
type Event struct {
	Organizer ref.Address  `cbor:"organizer"`
	Metadata  Metadata     `cbor:"metadata"`
	Config    Config       `cbor:"config"`
	Status    Status       `cbor:"status"`
	Stats     Stats        `cbor:"stats"`
	Attendees map[string]Registration `cbor:"attendees"`

	TreasuryID ref.ObjectID `cbor:"treasury_id"`
	PoolID     ref.ObjectID `cbor:"pool_id"`
	CreatedAt  int64        `cbor:"created_at"`
}

// Registry is the shared singleton tracking platform-wide event
// state. FeeBps is fixed at genesis for this version.
type Registry struct {
	TotalEvents uint64                    `cbor:"total_events"`
	FeeBps      uint64                    `cbor:"fee_bps"`
	Categories  map[string][]ref.ObjectID `cbor:"categories"`
}

// CreateRegistry creates the event registry singleton with the
// platform fee. Engine-internal: only the genesis bootstrap calls it.
func CreateRegistry(tx *ledger.Tx, _ enginegate.Key, feeBps uint64) (ref.ObjectID, error) {
	return tx.Create(KindRegistry, ledger.ModeShared, ref.Address{}, &Registry{
		FeeBps:     feeBps,
		Categories: map[string][]ref.ObjectID{},
	})
}

// Created is the object set a successful CreateEvent returns.
type Created struct {
	EventID      ref.ObjectID
	OrganizerCap ref.ObjectID
	TreasuryID   ref.ObjectID
	PoolID       ref.ObjectID
}

// CreateEvent creates an event in Draft status together with its
// treasury, its ticket pool, and the sender's full-permission
// organizer capability. The registry must be declared as a shared
// input. Schedule checks: start > now, end > start, both deadlines at
// or before start, capacity > 0; any violation aborts the whole
// creation.
func CreateEvent(tx *ledger.Tx, registryID ref.ObjectID, meta Metadata, cfg Config) (Created, error) {
	now := tx.Now().Unix()
	switch {
	case cfg.StartTime <= now:
		return Created{}, ledger.Abortf(CodeBadSchedule, "start time %d is not after now %d", cfg.StartTime, now)
	case cfg.EndTime <= cfg.StartTime:
		return Created{}, ledger.Abortf(CodeBadSchedule, "end time %d is not after start %d", cfg.EndTime, cfg.StartTime)
	case cfg.RegistrationDeadline > cfg.StartTime:
		return Created{}, ledger.Abortf(CodeBadSchedule, "registration deadline %d is after start %d", cfg.RegistrationDeadline, cfg.StartTime)
	case cfg.RefundDeadline > cfg.StartTime:
		return Created{}, ledger.Abortf(CodeBadSchedule, "refund deadline %d is after start %d", cfg.RefundDeadline, cfg.StartTime)
	case cfg.Capacity == 0:
		return Created{}, ledger.Abortf(CodeBadCapacity, "capacity must be positive")
	}

	var reg Registry
	if err := tx.Take(registryID, KindRegistry, &reg); err != nil {
		return Created{}, err
	}

	key := enginegate.New()
	organizer := tx.Sender()
	ev := &Event{
		Organizer: organizer,
		Metadata:  meta,
		Config:    cfg,
		Status:    StatusDraft,
		Attendees: map[string]Registration{},
		CreatedAt: now,
	}
	eventID, err := tx.Create(KindEvent, ledger.ModeShared, ref.Address{}, ev)
	if err != nil {
		return Created{}, err
	}

	treasuryID, err := treasury.CreateEventTreasury(tx, key, eventID, organizer)
	if err != nil {
		return Created{}, err
	}
	poolID, err := createPool(tx, key, eventID, cfg.Capacity)
	if err != nil {
		return Created{}, err
	}
	capID, err := capability.IssueOrganizerCap(tx, key, eventID, organizer)
	if err != nil {
		return Created{}, err
	}
	// ev is still the staged value; the links are committed with it.
	ev.TreasuryID = treasuryID
	ev.PoolID = poolID

	reg.TotalEvents++
	reg.Categories[meta.Category] = append(reg.Categories[meta.Category], eventID)

	tx.Emit(ledger.Record{
		Kind:      "event.created",
		Objects:   []ref.ObjectID{eventID, treasuryID, poolID, capID},
		Addresses: []ref.Address{organizer},
		Amounts:   map[string]uint64{"capacity": cfg.Capacity, "price": cfg.TicketPrice},
	})
	return Created{
		EventID:      eventID,
		OrganizerCap: capID,
		TreasuryID:   treasuryID,
		PoolID:       poolID,
	}, nil
}

// Publish opens a Draft event for registration. Requires the update
// permission and a registration deadline still in the future.
func Publish(tx *ledger.Tx, capID, eventID ref.ObjectID) error {
	ev, err := takeInStatus(tx, capID, eventID, capability.PermUpdate, StatusDraft)
	if err != nil {
		return err
	}
	if tx.Now().Unix() >= ev.Config.RegistrationDeadline {
		return ledger.Abortf(CodeRegistrationClosed, "registration deadline %d already passed", ev.Config.RegistrationDeadline)
	}
	ev.Status = StatusOpen
	emitStatus(tx, eventID, ev)
	return nil
}

// Start moves an Open event to InProgress. Requires the update
// permission and the start time to have arrived.
func Start(tx *ledger.Tx, capID, eventID ref.ObjectID) error {
	ev, err := takeInStatus(tx, capID, eventID, capability.PermUpdate, StatusOpen)
	if err != nil {
		return err
	}
	if tx.Now().Unix() < ev.Config.StartTime {
		return ledger.Abortf(CodeWrongStatus, "event starts at %d, now is %d", ev.Config.StartTime, tx.Now().Unix())
	}
	ev.Status = StatusInProgress
	emitStatus(tx, eventID, ev)
	return nil
}

// Complete finishes an InProgress event once its end time has passed,
// and credits the organizer's profile with an organized event (which
// may mint a milestone badge). The organizer profile must belong to
// the sender.
func Complete(tx *ledger.Tx, capID, eventID, organizerProfileID ref.ObjectID) error {
	ev, err := takeInStatus(tx, capID, eventID, capability.PermUpdate, StatusInProgress)
	if err != nil {
		return err
	}
	if tx.Now().Unix() < ev.Config.EndTime {
		return ledger.Abortf(CodeWrongStatus, "event ends at %d, now is %d", ev.Config.EndTime, tx.Now().Unix())
	}
	ev.Status = StatusCompleted

	if err := creditOrganized(tx, organizerProfileID); err != nil {
		return err
	}
	emitStatus(tx, eventID, ev)
	return nil
}

// Cancel cancels an event from any state before Completed. Requires
// the cancel permission. Terminal.
func Cancel(tx *ledger.Tx, capID, eventID ref.ObjectID) error {
	var ev Event
	if err := tx.Take(eventID, KindEvent, &ev); err != nil {
		return err
	}
	if _, err := capability.VerifyOrganizer(tx, capID, eventID, capability.PermCancel); err != nil {
		return err
	}
	switch ev.Status {
	case StatusCompleted, StatusCancelled:
		return ledger.Abortf(CodeWrongStatus, "cannot cancel a %s event", ev.Status)
	}
	ev.Status = StatusCancelled
	emitStatus(tx, eventID, &ev)
	return nil
}

// UpdateMetadata replaces the event's metadata. Allowed while the
// event is Draft or Open; requires the update permission. The
// registry's category index is not rewritten: the index reflects the
// category at creation time.
func UpdateMetadata(tx *ledger.Tx, capID, eventID ref.ObjectID, meta Metadata) error {
	var ev Event
	if err := tx.Take(eventID, KindEvent, &ev); err != nil {
		return err
	}
	if _, err := capability.VerifyOrganizer(tx, capID, eventID, capability.PermUpdate); err != nil {
		return err
	}
	if ev.Status != StatusDraft && ev.Status != StatusOpen {
		return ledger.Abortf(CodeWrongStatus, "cannot update a %s event", ev.Status)
	}
	ev.Metadata = meta
	tx.Emit(ledger.Record{
		Kind:      "event.metadata_updated",
		Objects:   []ref.ObjectID{eventID},
		Addresses: []ref.Address{tx.Sender()},
	})
	return nil
}

// UnlockFunds releases the treasury's refund reserve for withdrawal.
// Requires the withdraw permission and the refund deadline to have
// passed; the deadline lives on the event, which is why this entry
// point is here and not in the treasury.
func UnlockFunds(tx *ledger.Tx, capID, eventID ref.ObjectID) (uint64, error) {
	var ev Event
	if err := tx.Read(eventID, KindEvent, &ev); err != nil {
		return 0, err
	}
	if _, err := capability.VerifyOrganizer(tx, capID, eventID, capability.PermWithdraw); err != nil {
		return 0, err
	}
	if tx.Now().Unix() <= ev.Config.RefundDeadline {
		return 0, ledger.Abortf(CodeRefundWindowOpen, "refund deadline %d has not passed", ev.Config.RefundDeadline)
	}
	return treasury.Unlock(tx, enginegate.New(), ev.TreasuryID)
}

// takeInStatus stages the event for mutation after verifying the
// capability and the expected status.
func takeInStatus(tx *ledger.Tx, capID, eventID ref.ObjectID, need capability.Permission, want Status) (*Event, error) {
	var ev Event
	if err := tx.Take(eventID, KindEvent, &ev); err != nil {
		return nil, err
	}
	if _, err := capability.VerifyOrganizer(tx, capID, eventID, need); err != nil {
		return nil, err
	}
	if ev.Status != want {
		return nil, ledger.Abortf(CodeWrongStatus, "event is %s, operation requires %s", ev.Status, want)
	}
	return &ev, nil
}

func emitStatus(tx *ledger.Tx, eventID ref.ObjectID, ev *Event) {
	tx.Emit(ledger.Record{
		Kind:      "event.status_changed",
		Objects:   []ref.ObjectID{eventID},
		Addresses: []ref.Address{tx.Sender()},
		Amounts:   map[string]uint64{"status": uint64(ev.Status)},
	})
}
