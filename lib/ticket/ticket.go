// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

// KindTicket is the ticket object kind.
const KindTicket = "ticket"

// Abort codes 500-599.
const (
	// CodeWrongEvent: the ticket belongs to a different event.
	CodeWrongEvent ledger.Code = 500

	// CodeAlreadyValidated: the ticket was validated before; both a
	// second validation and a refund hit this.
	CodeAlreadyValidated ledger.Code = 501

	// CodeQRMismatch: the presented QR payload does not hash to the
	// fingerprint stored at mint time.
	CodeQRMismatch ledger.Code = 502

	// CodeNotTransferable: the event forbids ticket transfers.
	CodeNotTransferable ledger.Code = 503

	// CodeRefundClosed: the refund deadline has passed.
	CodeRefundClosed ledger.Code = 504
)

// Ticket is an event admission asset. The refund value is the
// organizer share escrowed for this ticket; the platform fee is kept
// even when the ticket is refunded.
type Ticket struct {
	EventID       ref.ObjectID `cbor:"event_id"`
	OriginalOwner ref.Address  `cbor:"original_owner"`
	Tier          string       `cbor:"tier"`
	Number        uint64       `cbor:"number"`
	PurchasePrice uint64       `cbor:"purchase_price"`
	RefundValue   uint64       `cbor:"refund_value"`

	// SealedRef is an opaque encrypted-payload reference, stored
	// verbatim and never dereferenced.
	SealedRef string `cbor:"sealed_ref,omitempty"`

	// QRHash is the fingerprint of the QR payload issued off-ledger.
	QRHash string `cbor:"qr_hash"`

	Validated   bool  `cbor:"validated"`
	ValidatedAt int64 `cbor:"validated_at,omitempty"`
}

// MintParams collects the object references and arguments for
// MintTicket. Every referenced shared object must be declared as a
// transaction input.
type MintParams struct {
	EventID    ref.ObjectID
	RegistryID ref.ObjectID // event registry, source of the platform fee
	PlatformID ref.ObjectID // platform treasury
	ProfileID  ref.ObjectID // buyer's profile, owned by the sender
	DiscountID ref.ObjectID // optional, zero to pay full price

	Tier      string
	Payment   uint64
	QR        []byte
	SealedRef string
}

// MintTicket purchases one ticket for the sender. The event's
// treasury and pool IDs are read off the event; the caller must have
// declared them (along with the event, registry, platform treasury,
// and any discount code) as shared inputs.
func MintTicket(tx *ledger.Tx, p MintParams) (ref.ObjectID, error) {
	key := enginegate.New()
	buyer := tx.Sender()

	var ev event.Event
	if err := tx.Take(p.EventID, event.KindEvent, &ev); err != nil {
		return ref.ObjectID{}, err
	}
	var reg event.Registry
	if err := tx.Read(p.RegistryID, event.KindRegistry, &reg); err != nil {
		return ref.ObjectID{}, err
	}

	price := ev.Config.TicketPrice
	if !p.DiscountID.IsZero() {
		var err error
		price, err = treasury.ApplyDiscount(tx, key, p.DiscountID, p.EventID, price)
		if err != nil {
			return ref.ObjectID{}, err
		}
	}

	_, organizerShare, err := treasury.ProcessPayment(tx, key, ev.TreasuryID, p.PlatformID, price, p.Payment, reg.FeeBps)
	if err != nil {
		return ref.ObjectID{}, err
	}

	var pool event.TicketPool
	if err := tx.Take(ev.PoolID, event.KindPool, &pool); err != nil {
		return ref.ObjectID{}, err
	}
	number, err := event.ReserveTicket(key, &pool)
	if err != nil {
		return ref.ObjectID{}, err
	}

	ticketID, err := tx.Create(KindTicket, ledger.ModeOwned, buyer, &Ticket{
		EventID:       p.EventID,
		OriginalOwner: buyer,
		Tier:          p.Tier,
		Number:        number,
		PurchasePrice: price,
		RefundValue:   organizerShare,
		SealedRef:     p.SealedRef,
		QRHash:        Fingerprint(p.QR),
	})
	if err != nil {
		return ref.ObjectID{}, err
	}

	if err := event.RegisterAttendee(tx, key, &ev, buyer, ticketID); err != nil {
		return ref.ObjectID{}, err
	}

	var prof profile.Profile
	if err := tx.Take(p.ProfileID, profile.KindProfile, &prof); err != nil {
		return ref.ObjectID{}, err
	}
	profile.RecordPurchase(key, &prof, price)

	tx.Emit(ledger.Record{
		Kind:      "ticket.minted",
		Objects:   []ref.ObjectID{ticketID, p.EventID},
		Addresses: []ref.Address{buyer},
		Amounts:   map[string]uint64{"number": number, "price": price},
	})
	return ticketID, nil
}

// ValidateTicket validates a ticket at the door. The sender is the
// validator; the ticket holder must co-sign the transaction. The
// presented QR payload must hash to the stored fingerprint.
// Validation flips exactly once, checks the holder in, and credits
// the holder's attendance stats (which may mint a milestone badge).
// attendeeProfileID is the holder's profile.
func ValidateTicket(tx *ledger.Tx, valCapID, eventID, ticketID, attendeeProfileID ref.ObjectID, qr []byte) error {
	key := enginegate.New()

	if _, err := capability.VerifyValidator(tx, valCapID, eventID); err != nil {
		return err
	}

	var tk Ticket
	if err := tx.Take(ticketID, KindTicket, &tk); err != nil {
		return err
	}
	if tk.EventID != eventID {
		return ledger.Abortf(CodeWrongEvent, "ticket %s is for event %s, not %s", ticketID, tk.EventID, eventID)
	}
	if tk.Validated {
		return ledger.Abortf(CodeAlreadyValidated, "ticket %s was already validated at %d", ticketID, tk.ValidatedAt)
	}
	if Fingerprint(qr) != tk.QRHash {
		return ledger.Abortf(CodeQRMismatch, "QR payload does not match ticket %s", ticketID)
	}

	tk.Validated = true
	tk.ValidatedAt = tx.Now().Unix()

	holder, err := tx.Info(ticketID)
	if err != nil {
		return err
	}

	var ev event.Event
	if err := tx.Take(eventID, event.KindEvent, &ev); err != nil {
		return err
	}
	if err := event.CheckInAttendee(tx, key, &ev, holder.Owner); err != nil {
		return err
	}

	var prof profile.Profile
	if err := tx.Take(attendeeProfileID, profile.KindProfile, &prof); err != nil {
		return err
	}
	if err := profile.RecordAttendance(tx, key, &prof); err != nil {
		return err
	}

	tx.Emit(ledger.Record{
		Kind:      "ticket.validated",
		Objects:   []ref.ObjectID{ticketID, eventID},
		Addresses: []ref.Address{holder.Owner, tx.Sender()},
		Amounts:   map[string]uint64{"number": tk.Number},
	})
	return nil
}

// TransferTicket moves a ticket to a new holder, carrying the
// attendee registration with it so the table never holds a stale
// entry. The event must allow transfers; validated tickets are spent
// and cannot move. senderProfileID is the sender's own profile,
// required to prove the sender participates in the platform.
func TransferTicket(tx *ledger.Tx, eventID, ticketID, senderProfileID ref.ObjectID, to ref.Address) error {
	key := enginegate.New()

	var prof profile.Profile
	if err := tx.Take(senderProfileID, profile.KindProfile, &prof); err != nil {
		return err
	}

	var tk Ticket
	if err := tx.Take(ticketID, KindTicket, &tk); err != nil {
		return err
	}
	if tk.EventID != eventID {
		return ledger.Abortf(CodeWrongEvent, "ticket %s is for event %s, not %s", ticketID, tk.EventID, eventID)
	}
	if tk.Validated {
		return ledger.Abortf(CodeAlreadyValidated, "ticket %s is already validated", ticketID)
	}

	var ev event.Event
	if err := tx.Take(eventID, event.KindEvent, &ev); err != nil {
		return err
	}
	if !ev.Config.Transferable {
		return ledger.Abortf(CodeNotTransferable, "event %s forbids ticket transfers", eventID)
	}

	from := tx.Sender()
	if err := event.MoveRegistration(key, &ev, from, to); err != nil {
		return err
	}
	if err := tx.Transfer(ticketID, to); err != nil {
		return err
	}

	tx.Emit(ledger.Record{
		Kind:      "ticket.transferred",
		Objects:   []ref.ObjectID{ticketID, eventID},
		Addresses: []ref.Address{from, to},
		Amounts:   map[string]uint64{"number": tk.Number},
	})
	return nil
}

// RefundTicket refunds the sender's ticket and destroys it. Every
// precondition runs first: event match, refund window still open,
// not validated, holder not checked in, and the treasury able to
// cover the refund value. Destruction is staged last so any abort
// leaves the ticket intact and refundable later.
func RefundTicket(tx *ledger.Tx, eventID, ticketID ref.ObjectID) error {
	key := enginegate.New()
	holder := tx.Sender()

	var tk Ticket
	if err := tx.Take(ticketID, KindTicket, &tk); err != nil {
		return err
	}
	if tk.EventID != eventID {
		return ledger.Abortf(CodeWrongEvent, "ticket %s is for event %s, not %s", ticketID, tk.EventID, eventID)
	}
	if tk.Validated {
		return ledger.Abortf(CodeAlreadyValidated, "ticket %s was validated, refund refused", ticketID)
	}

	var ev event.Event
	if err := tx.Take(eventID, event.KindEvent, &ev); err != nil {
		return err
	}
	if tx.Now().Unix() > ev.Config.RefundDeadline {
		return ledger.Abortf(CodeRefundClosed, "refund deadline %d passed", ev.Config.RefundDeadline)
	}

	if err := event.UnregisterAttendee(key, &ev, holder); err != nil {
		return err
	}

	var pool event.TicketPool
	if err := tx.Take(ev.PoolID, event.KindPool, &pool); err != nil {
		return err
	}
	event.ReleaseTicket(key, &pool)

	if err := treasury.IssueRefund(tx, key, ev.TreasuryID, tk.RefundValue, holder); err != nil {
		return err
	}

	tx.Emit(ledger.Record{
		Kind:      "ticket.refunded",
		Objects:   []ref.ObjectID{ticketID, eventID},
		Addresses: []ref.Address{holder},
		Amounts:   map[string]uint64{"number": tk.Number, "amount": tk.RefundValue},
	})

	// Last effect: only now is the asset gone.
	return tx.Destroy(ticketID)
}
