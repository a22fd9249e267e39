// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package attendance

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/ticket"
)

// Object kinds owned by this engine.
const (
	KindProof    = "attendance.proof"
	KindRegistry = "attendance.registry"
)

// Abort codes 600-699.
const (
	// CodeProofExists: the ticket already has a proof.
	CodeProofExists ledger.Code = 600

	// CodeNotValidated: the ticket was never validated.
	CodeNotValidated ledger.Code = 601

	// CodeWrongEvent: the ticket belongs to a different event.
	CodeWrongEvent ledger.Code = 602
)

// Proof is a soulbound attendance certificate.
type Proof struct {
	EventID  ref.ObjectID `cbor:"event_id"`
	Attendee ref.Address  `cbor:"attendee"`
	TicketID ref.ObjectID `cbor:"ticket_id"`

	CheckInTime  int64 `cbor:"check_in_time"`
	CheckOutTime int64 `cbor:"check_out_time,omitempty"`

	Validator ref.Address `cbor:"validator"`

	// TicketHash carries the validated ticket's QR fingerprint so a
	// proof can be tied to the scan that produced it.
	TicketHash string `cbor:"ticket_hash"`
}

// Registry is the shared singleton mapping ticket ID to proof ID.
// Entries are append-only; the map is the uniqueness guarantee.
type Registry struct {
	TotalProofs uint64                  `cbor:"total_proofs"`
	ByTicket    map[string]ref.ObjectID `cbor:"by_ticket"`
}

// CreateRegistry creates the attendance registry singleton.
// Engine-internal: only the genesis bootstrap calls it.
func CreateRegistry(tx *ledger.Tx, _ enginegate.Key) (ref.ObjectID, error) {
	return tx.Create(KindRegistry, ledger.ModeShared, ref.Address{}, &Registry{
		ByTicket: map[string]ref.ObjectID{},
	})
}

// MintProof mints the attendance proof for one validated ticket. The
// sender must present a live validator capability for the event; the
// registry must be declared as a shared input. The ticket is read,
// never taken: proof minting must not bump the asset's version.
func MintProof(tx *ledger.Tx, valCapID, registryID, eventID, ticketID ref.ObjectID) (ref.ObjectID, error) {
	if _, err := capability.VerifyValidator(tx, valCapID, eventID); err != nil {
		return ref.ObjectID{}, err
	}

	var tk ticket.Ticket
	if err := tx.Read(ticketID, ticket.KindTicket, &tk); err != nil {
		return ref.ObjectID{}, err
	}
	if tk.EventID != eventID {
		return ref.ObjectID{}, ledger.Abortf(CodeWrongEvent, "ticket %s is for event %s, not %s", ticketID, tk.EventID, eventID)
	}
	if !tk.Validated {
		return ref.ObjectID{}, ledger.Abortf(CodeNotValidated, "ticket %s was never validated", ticketID)
	}

	var reg Registry
	if err := tx.Take(registryID, KindRegistry, &reg); err != nil {
		return ref.ObjectID{}, err
	}
	if existing, ok := reg.ByTicket[ticketID.String()]; ok {
		return ref.ObjectID{}, ledger.Abortf(CodeProofExists, "ticket %s already has proof %s", ticketID, existing)
	}

	holder, err := tx.Info(ticketID)
	if err != nil {
		return ref.ObjectID{}, err
	}

	proofID, err := tx.CreateSoulbound(KindProof, holder.Owner, &Proof{
		EventID:     eventID,
		Attendee:    holder.Owner,
		TicketID:    ticketID,
		CheckInTime: tk.ValidatedAt,
		Validator:   tx.Sender(),
		TicketHash:  tk.QRHash,
	})
	if err != nil {
		return ref.ObjectID{}, err
	}

	reg.ByTicket[ticketID.String()] = proofID
	reg.TotalProofs++

	tx.Emit(ledger.Record{
		Kind:      "attendance.proof_minted",
		Objects:   []ref.ObjectID{proofID, ticketID, eventID},
		Addresses: []ref.Address{holder.Owner, tx.Sender()},
	})
	return proofID, nil
}

// MintProofBatch mints proofs for any number of validated tickets in
// one transaction. All-or-nothing: one bad ticket aborts the whole
// batch.
func MintProofBatch(tx *ledger.Tx, valCapID, registryID, eventID ref.ObjectID, ticketIDs []ref.ObjectID) ([]ref.ObjectID, error) {
	proofs := make([]ref.ObjectID, 0, len(ticketIDs))
	for _, ticketID := range ticketIDs {
		proofID, err := MintProof(tx, valCapID, registryID, eventID, ticketID)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, proofID)
	}
	return proofs, nil
}

// CheckOut stamps the proof's check-out time. The sender is the
// validator; the proof holder must co-sign (the proof is their owned
// object). A second check-out is a silent no-op, matching check-in's
// tolerance for duplicate validator calls.
func CheckOut(tx *ledger.Tx, valCapID, eventID, proofID ref.ObjectID) error {
	if _, err := capability.VerifyValidator(tx, valCapID, eventID); err != nil {
		return err
	}

	var proof Proof
	if err := tx.Take(proofID, KindProof, &proof); err != nil {
		return err
	}
	if proof.EventID != eventID {
		return ledger.Abortf(CodeWrongEvent, "proof %s is for event %s, not %s", proofID, proof.EventID, eventID)
	}
	if proof.CheckOutTime != 0 {
		return nil
	}
	proof.CheckOutTime = tx.Now().Unix()

	tx.Emit(ledger.Record{
		Kind:      "attendance.checked_out",
		Objects:   []ref.ObjectID{proofID, eventID},
		Addresses: []ref.Address{proof.Attendee, tx.Sender()},
	})
	return nil
}
