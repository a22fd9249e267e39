// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package attendance

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/ticket"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

func testAddr(b byte) ref.Address {
	const hexDigits = "0123456789abcdef"
	return ref.MustParseAddress("0x" + strings.Repeat(string([]byte{hexDigits[b&0x0f]}), 64))
}

var (
	organizer = testAddr(0x0a)
	buyer1    = testAddr(0x0b)
	buyer2    = testAddr(0x0c)
	validator = testAddr(0x0d)
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fixture is a full platform with an open event, a validator
// capability, and the attendance registry.
type fixture struct {
	store *ledger.Store
	clk   *clock.FakeClock

	created    event.Created
	registryID ref.ObjectID // attendance registry
	valCapID   ref.ObjectID
	platformID ref.ObjectID
	eventRegID ref.ObjectID
	profRegID  ref.ObjectID
	profiles   map[ref.Address]ref.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clk:      clock.Fake(baseTime),
		profiles: map[ref.Address]ref.ObjectID{},
	}
	var err error
	f.store, err = ledger.Open(ledger.Config{
		Path:  filepath.Join(t.TempDir(), "ledger.db"),
		Clock: f.clk,
	})
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { f.store.Close() })

	err = f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		key := enginegate.New()
		var err error
		if f.eventRegID, err = event.CreateRegistry(tx, key, 250); err != nil {
			return err
		}
		if f.profRegID, err = profile.CreateRegistry(tx, key); err != nil {
			return err
		}
		if f.platformID, err = treasury.CreatePlatformTreasury(tx, key); err != nil {
			return err
		}
		f.registryID, err = CreateRegistry(tx, key)
		return err
	})
	if err != nil {
		t.Fatalf("platform setup: %v", err)
	}

	for _, addr := range []ref.Address{buyer1, buyer2} {
		err = f.store.Execute(addr, []ref.ObjectID{f.profRegID}, func(tx *ledger.Tx) error {
			id, err := profile.CreateProfile(tx, f.profRegID, profile.Identity{}, profile.Preferences{})
			f.profiles[addr] = id
			return err
		})
		if err != nil {
			t.Fatalf("profile for %s: %v", addr, err)
		}
	}

	cfg := event.Config{
		StartTime:            baseTime.Add(24 * time.Hour).Unix(),
		EndTime:              baseTime.Add(26 * time.Hour).Unix(),
		RegistrationDeadline: baseTime.Add(20 * time.Hour).Unix(),
		RefundDeadline:       baseTime.Add(22 * time.Hour).Unix(),
		Capacity:             10,
		TicketPrice:          100,
		Transferable:         true,
	}
	err = f.store.Execute(organizer, []ref.ObjectID{f.eventRegID}, func(tx *ledger.Tx) error {
		var err error
		f.created, err = event.CreateEvent(tx, f.eventRegID, event.Metadata{Name: "goconf", Category: "tech"}, cfg)
		return err
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	err = f.store.Execute(organizer, []ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
		if err := event.Publish(tx, f.created.OrganizerCap, f.created.EventID); err != nil {
			return err
		}
		var err error
		f.valCapID, err = capability.GrantValidatorCap(tx, f.created.OrganizerCap, f.created.EventID, validator, 0)
		return err
	})
	if err != nil {
		t.Fatalf("publishing event: %v", err)
	}
	return f
}

// mintValidated buys a ticket for the holder and runs the door scan.
func (f *fixture) mintValidated(t *testing.T, holder ref.Address) ref.ObjectID {
	t.Helper()
	id := f.mintTicket(t, holder)
	err := f.store.ExecuteMultiAgent(validator, []ref.Address{holder},
		[]ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
			return ticket.ValidateTicket(tx, f.valCapID, f.created.EventID, id, f.profiles[holder], []byte("qr-"+holder.String()))
		})
	if err != nil {
		t.Fatalf("validating ticket: %v", err)
	}
	return id
}

func (f *fixture) mintTicket(t *testing.T, holder ref.Address) ref.ObjectID {
	t.Helper()
	inputs := []ref.ObjectID{
		f.created.EventID, f.eventRegID, f.platformID,
		f.created.TreasuryID, f.created.PoolID,
	}
	var id ref.ObjectID
	err := f.store.Execute(holder, inputs, func(tx *ledger.Tx) error {
		var err error
		id, err = ticket.MintTicket(tx, ticket.MintParams{
			EventID:    f.created.EventID,
			RegistryID: f.eventRegID,
			PlatformID: f.platformID,
			ProfileID:  f.profiles[holder],
			Tier:       "general",
			Payment:    100,
			QR:         []byte("qr-" + holder.String()),
		})
		return err
	})
	if err != nil {
		t.Fatalf("minting ticket: %v", err)
	}
	return id
}

func (f *fixture) mintProof(ticketID ref.ObjectID) (ref.ObjectID, error) {
	var proofID ref.ObjectID
	err := f.store.Execute(validator, []ref.ObjectID{f.registryID}, func(tx *ledger.Tx) error {
		var err error
		proofID, err = MintProof(tx, f.valCapID, f.registryID, f.created.EventID, ticketID)
		return err
	})
	return proofID, err
}

func wantCode(t *testing.T, err error, want ledger.Code) {
	t.Helper()
	if got, _ := ledger.CodeOf(err); got != want {
		t.Fatalf("want abort code %d, got %d (%v)", want, got, err)
	}
}

func TestMintProof(t *testing.T) {
	f := newFixture(t)
	tkID := f.mintValidated(t, buyer1)

	before, err := f.store.InfoOf(tkID)
	if err != nil {
		t.Fatalf("InfoOf before: %v", err)
	}

	proofID, err := f.mintProof(tkID)
	if err != nil {
		t.Fatalf("minting proof: %v", err)
	}

	var proof Proof
	if err := f.store.Get(proofID, KindProof, &proof); err != nil {
		t.Fatalf("reading proof: %v", err)
	}
	if proof.Attendee != buyer1 || proof.TicketID != tkID || proof.EventID != f.created.EventID {
		t.Errorf("proof = %+v", proof)
	}
	if proof.Validator != validator {
		t.Errorf("proof validator = %s, want %s", proof.Validator, validator)
	}
	if proof.CheckInTime == 0 {
		t.Error("check-in time not carried from validation")
	}

	info, err := f.store.InfoOf(proofID)
	if err != nil {
		t.Fatalf("InfoOf proof: %v", err)
	}
	if !info.Soulbound || info.Owner != buyer1 {
		t.Errorf("proof info = %+v, want soulbound and owned by the attendee", info)
	}

	// Proof minting reads the ticket; its version must not move.
	after, err := f.store.InfoOf(tkID)
	if err != nil {
		t.Fatalf("InfoOf after: %v", err)
	}
	if after.Version != before.Version {
		t.Errorf("ticket version moved %d -> %d during proof mint", before.Version, after.Version)
	}

	var reg Registry
	if err := f.store.Get(f.registryID, KindRegistry, &reg); err != nil {
		t.Fatalf("reading registry: %v", err)
	}
	if reg.TotalProofs != 1 || reg.ByTicket[tkID.String()] != proofID {
		t.Errorf("registry = %+v", reg)
	}
}

func TestOneProofPerTicket(t *testing.T) {
	f := newFixture(t)
	tkID := f.mintValidated(t, buyer1)

	if _, err := f.mintProof(tkID); err != nil {
		t.Fatalf("first proof: %v", err)
	}
	_, err := f.mintProof(tkID)
	wantCode(t, err, CodeProofExists)
}

func TestProofRequiresValidation(t *testing.T) {
	f := newFixture(t)
	tkID := f.mintTicket(t, buyer1)

	_, err := f.mintProof(tkID)
	wantCode(t, err, CodeNotValidated)
}

func TestProofIsSoulbound(t *testing.T) {
	f := newFixture(t)
	proofID, err := f.mintProof(f.mintValidated(t, buyer1))
	if err != nil {
		t.Fatalf("minting proof: %v", err)
	}

	err = f.store.Execute(buyer1, nil, func(tx *ledger.Tx) error {
		var proof Proof
		if err := tx.Take(proofID, KindProof, &proof); err != nil {
			return err
		}
		return tx.Transfer(proofID, buyer2)
	})
	wantCode(t, err, ledger.CodeSoulbound)
}

func TestBatchAllOrNothing(t *testing.T) {
	f := newFixture(t)
	valid1 := f.mintValidated(t, buyer1)
	valid2 := f.mintValidated(t, buyer2)

	// One unvalidated ticket poisons the whole batch.
	unvalidated := ref.NewObjectID()
	err := f.store.Execute(validator, []ref.ObjectID{f.registryID}, func(tx *ledger.Tx) error {
		_, err := MintProofBatch(tx, f.valCapID, f.registryID, f.created.EventID,
			[]ref.ObjectID{valid1, unvalidated, valid2})
		return err
	})
	wantCode(t, err, ledger.CodeUnknownObject)

	var reg Registry
	if err := f.store.Get(f.registryID, KindRegistry, &reg); err != nil {
		t.Fatalf("reading registry: %v", err)
	}
	if reg.TotalProofs != 0 {
		t.Fatalf("aborted batch minted %d proofs", reg.TotalProofs)
	}

	// The clean batch succeeds.
	var proofs []ref.ObjectID
	err = f.store.Execute(validator, []ref.ObjectID{f.registryID}, func(tx *ledger.Tx) error {
		var err error
		proofs, err = MintProofBatch(tx, f.valCapID, f.registryID, f.created.EventID,
			[]ref.ObjectID{valid1, valid2})
		return err
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(proofs) != 2 {
		t.Fatalf("batch minted %d proofs, want 2", len(proofs))
	}
}

func TestCheckOutOnce(t *testing.T) {
	f := newFixture(t)
	proofID, err := f.mintProof(f.mintValidated(t, buyer1))
	if err != nil {
		t.Fatalf("minting proof: %v", err)
	}

	checkOut := func() error {
		return f.store.ExecuteMultiAgent(validator, []ref.Address{buyer1}, nil, func(tx *ledger.Tx) error {
			return CheckOut(tx, f.valCapID, f.created.EventID, proofID)
		})
	}

	f.clk.Advance(3 * time.Hour)
	if err := checkOut(); err != nil {
		t.Fatalf("check-out: %v", err)
	}

	var proof Proof
	if err := f.store.Get(proofID, KindProof, &proof); err != nil {
		t.Fatalf("reading proof: %v", err)
	}
	first := proof.CheckOutTime
	if first == 0 {
		t.Fatal("check-out time not set")
	}

	// A later retry does not move the stamp.
	f.clk.Advance(time.Hour)
	if err := checkOut(); err != nil {
		t.Fatalf("repeat check-out: %v", err)
	}
	if err := f.store.Get(proofID, KindProof, &proof); err != nil {
		t.Fatalf("re-reading proof: %v", err)
	}
	if proof.CheckOutTime != first {
		t.Errorf("check-out time moved %d -> %d", first, proof.CheckOutTime)
	}
}
