// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ticket

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
	buyer3    = testAddr(0x0d)
	validator = testAddr(0x0e)
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fixture is a complete platform: registries, platform treasury, an
// open event, and profiles for the organizer and buyers.
type fixture struct {
	store *ledger.Store
	clk   *clock.FakeClock

	eventRegistryID   ref.ObjectID
	profileRegistryID ref.ObjectID
	platformID        ref.ObjectID

	created  event.Created
	profiles map[ref.Address]ref.ObjectID
}

func newFixture(t *testing.T, cfg event.Config) *fixture {
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
		if f.eventRegistryID, err = event.CreateRegistry(tx, key, 250); err != nil {
			return err
		}
		if f.profileRegistryID, err = profile.CreateRegistry(tx, key); err != nil {
			return err
		}
		f.platformID, err = treasury.CreatePlatformTreasury(tx, key)
		return err
	})
	if err != nil {
		t.Fatalf("platform setup: %v", err)
	}

	for _, addr := range []ref.Address{organizer, buyer1, buyer2, buyer3} {
		f.addProfile(t, addr)
	}

	err = f.store.Execute(organizer, []ref.ObjectID{f.eventRegistryID}, func(tx *ledger.Tx) error {
		var err error
		f.created, err = event.CreateEvent(tx, f.eventRegistryID, event.Metadata{Name: "goconf", Category: "tech"}, cfg)
		return err
	})
	if err != nil {
		t.Fatalf("creating event: %v", err)
	}
	err = f.store.Execute(organizer, []ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
		return event.Publish(tx, f.created.OrganizerCap, f.created.EventID)
	})
	if err != nil {
		t.Fatalf("publishing event: %v", err)
	}
	return f
}

func testConfig(capacity, price uint64, transferable bool) event.Config {
	return event.Config{
		StartTime:            baseTime.Add(24 * time.Hour).Unix(),
		EndTime:              baseTime.Add(26 * time.Hour).Unix(),
		RegistrationDeadline: baseTime.Add(20 * time.Hour).Unix(),
		RefundDeadline:       baseTime.Add(22 * time.Hour).Unix(),
		Capacity:             capacity,
		TicketPrice:          price,
		Transferable:         transferable,
	}
}

func (f *fixture) addProfile(t *testing.T, addr ref.Address) {
	t.Helper()
	err := f.store.Execute(addr, []ref.ObjectID{f.profileRegistryID}, func(tx *ledger.Tx) error {
		id, err := profile.CreateProfile(tx, f.profileRegistryID, profile.Identity{}, profile.Preferences{})
		f.profiles[addr] = id
		return err
	})
	if err != nil {
		t.Fatalf("profile for %s: %v", addr, err)
	}
}

func (f *fixture) mintInputs(extra ...ref.ObjectID) []ref.ObjectID {
	inputs := []ref.ObjectID{
		f.created.EventID, f.eventRegistryID, f.platformID,
		f.created.TreasuryID, f.created.PoolID,
	}
	return append(inputs, extra...)
}

func (f *fixture) mint(buyer ref.Address, payment uint64, qr []byte) (ref.ObjectID, error) {
	var id ref.ObjectID
	err := f.store.Execute(buyer, f.mintInputs(), func(tx *ledger.Tx) error {
		var err error
		id, err = MintTicket(tx, MintParams{
			EventID:    f.created.EventID,
			RegistryID: f.eventRegistryID,
			PlatformID: f.platformID,
			ProfileID:  f.profiles[buyer],
			Tier:       "general",
			Payment:    payment,
			QR:         qr,
		})
		return err
	})
	return id, err
}

// grantValidator issues a validator capability with no expiry.
func (f *fixture) grantValidator(t *testing.T) ref.ObjectID {
	t.Helper()
	var capID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		capID, err = capability.GrantValidatorCap(tx, f.created.OrganizerCap, f.created.EventID, validator, 0)
		return err
	})
	if err != nil {
		t.Fatalf("granting validator capability: %v", err)
	}
	return capID
}

// validate runs the multi-party door scan: validator sends, holder
// co-signs.
func (f *fixture) validate(valCapID, ticketID ref.ObjectID, holder ref.Address, qr []byte) error {
	return f.store.ExecuteMultiAgent(validator, []ref.Address{holder},
		[]ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
			return ValidateTicket(tx, valCapID, f.created.EventID, ticketID, f.profiles[holder], qr)
		})
}

func (f *fixture) ticket(t *testing.T, id ref.ObjectID) *Ticket {
	t.Helper()
	var tk Ticket
	if err := f.store.Get(id, KindTicket, &tk); err != nil {
		t.Fatalf("reading ticket: %v", err)
	}
	return &tk
}

func wantCode(t *testing.T, err error, want ledger.Code) {
	t.Helper()
	if got, _ := ledger.CodeOf(err); got != want {
		t.Fatalf("want abort code %d, got %d (%v)", want, got, err)
	}
}

func TestMintSellOutAndRefundReopens(t *testing.T) {
	f := newFixture(t, testConfig(2, 100, true))

	t1, err := f.mint(buyer1, 100, []byte("qr-1"))
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	t2, err := f.mint(buyer2, 100, []byte("qr-2"))
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}

	if n := f.ticket(t, t1).Number; n != 1 {
		t.Errorf("first ticket number = %d, want 1", n)
	}
	if n := f.ticket(t, t2).Number; n != 2 {
		t.Errorf("second ticket number = %d, want 2", n)
	}

	// Capacity 2 is exhausted.
	_, err = f.mint(buyer3, 100, []byte("qr-3"))
	wantCode(t, err, event.CodeSoldOut)

	// A refund before the deadline reopens a seat.
	err = f.store.Execute(buyer1, f.mintInputs(), func(tx *ledger.Tx) error {
		return RefundTicket(tx, f.created.EventID, t1)
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}

	var pool event.TicketPool
	if err := f.store.Get(f.created.PoolID, event.KindPool, &pool); err != nil {
		t.Fatalf("reading pool: %v", err)
	}
	if pool.Available != 1 {
		t.Errorf("pool available after refund = %d, want 1", pool.Available)
	}

	t3, err := f.mint(buyer3, 100, []byte("qr-3"))
	if err != nil {
		t.Fatalf("mint after refund: %v", err)
	}
	// The freed seat sells under a fresh number.
	if n := f.ticket(t, t3).Number; n != 3 {
		t.Errorf("post-refund ticket number = %d, want 3", n)
	}

	// The refunded asset is gone for good.
	if _, err := f.store.InfoOf(t1); err == nil {
		t.Error("refunded ticket still resolvable")
	} else if code, _ := ledger.CodeOf(err); code != ledger.CodeUnknownObject {
		t.Errorf("refunded ticket still resolvable: %v", err)
	}
}

func TestMintSplitsPayment(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	if _, err := f.mint(buyer1, 100, []byte("qr")); err != nil {
		t.Fatalf("mint: %v", err)
	}

	var et treasury.EventTreasury
	if err := f.store.Get(f.created.TreasuryID, treasury.KindEventTreasury, &et); err != nil {
		t.Fatalf("reading treasury: %v", err)
	}
	// 250 bps of 100 is a fee of 2.
	if et.Balance != 98 || et.LockedForRefund != 98 {
		t.Errorf("event treasury balance/locked = %d/%d, want 98/98", et.Balance, et.LockedForRefund)
	}
	var pt treasury.PlatformTreasury
	if err := f.store.Get(f.platformID, treasury.KindPlatformTreasury, &pt); err != nil {
		t.Fatalf("reading platform treasury: %v", err)
	}
	if pt.Balance != 2 {
		t.Errorf("platform balance = %d, want 2", pt.Balance)
	}

	var p profile.Profile
	if err := f.store.Get(f.profiles[buyer1], profile.KindProfile, &p); err != nil {
		t.Fatalf("reading profile: %v", err)
	}
	if p.Stats.TicketsPurchased != 1 || p.Stats.TotalSpent != 100 {
		t.Errorf("purchase stats = %+v", p.Stats)
	}
}

func TestMintRequiresExactPayment(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	_, err := f.mint(buyer1, 99, []byte("qr"))
	wantCode(t, err, treasury.CodeExactPaymentRequired)

	// The abort left no trace: no registration, full pool.
	var ev event.Event
	if err := f.store.Get(f.created.EventID, event.KindEvent, &ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Stats.Registered != 0 {
		t.Errorf("registered = %d after aborted mint", ev.Stats.Registered)
	}
	var pool event.TicketPool
	if err := f.store.Get(f.created.PoolID, event.KindPool, &pool); err != nil {
		t.Fatalf("reading pool: %v", err)
	}
	if pool.Available != 5 || pool.Issued != 0 {
		t.Errorf("pool = %+v after aborted mint", pool)
	}
}

func TestValidateExactlyOnce(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))
	valCap := f.grantValidator(t)

	qr := []byte("door-scan-payload")
	tkID, err := f.mint(buyer1, 100, qr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := f.validate(valCap, tkID, buyer1, qr); err != nil {
		t.Fatalf("validate: %v", err)
	}
	tk := f.ticket(t, tkID)
	if !tk.Validated || tk.ValidatedAt == 0 {
		t.Fatalf("ticket not marked validated: %+v", tk)
	}

	// Second scan aborts and changes nothing.
	before := *tk
	wantCode(t, f.validate(valCap, tkID, buyer1, qr), CodeAlreadyValidated)
	if after := f.ticket(t, tkID); *after != before {
		t.Errorf("second validation mutated the ticket: %+v", after)
	}
}

func TestValidateChecksQR(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))
	valCap := f.grantValidator(t)

	tkID, err := f.mint(buyer1, 100, []byte("real-payload"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	wantCode(t, f.validate(valCap, tkID, buyer1, []byte("forged-payload")), CodeQRMismatch)
	if f.ticket(t, tkID).Validated {
		t.Error("ticket validated despite QR mismatch")
	}
}

func TestValidateChecksInAndCreditsAttendance(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))
	valCap := f.grantValidator(t)

	qr := []byte("qr")
	tkID, err := f.mint(buyer1, 100, qr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.validate(valCap, tkID, buyer1, qr); err != nil {
		t.Fatalf("validate: %v", err)
	}

	var ev event.Event
	if err := f.store.Get(f.created.EventID, event.KindEvent, &ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	reg := ev.Attendees[buyer1.String()]
	if !reg.CheckedIn {
		t.Error("attendee not checked in after validation")
	}

	var p profile.Profile
	if err := f.store.Get(f.profiles[buyer1], profile.KindProfile, &p); err != nil {
		t.Fatalf("reading profile: %v", err)
	}
	if p.Stats.EventsAttended != 1 {
		t.Errorf("events attended = %d, want 1", p.Stats.EventsAttended)
	}
	// First attendance lands on the first milestone.
	if n := len(f.store.List(profile.KindBadge)); n != 1 {
		t.Errorf("badges minted = %d, want 1", n)
	}
}

func TestExpiredValidatorCannotScan(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	var valCap ref.ObjectID
	expiry := f.clk.Now().Add(time.Hour).Unix()
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		valCap, err = capability.GrantValidatorCap(tx, f.created.OrganizerCap, f.created.EventID, validator, expiry)
		return err
	})
	if err != nil {
		t.Fatalf("granting: %v", err)
	}

	qr := []byte("qr")
	tkID, err := f.mint(buyer1, 100, qr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	f.clk.Advance(2 * time.Hour)
	wantCode(t, f.validate(valCap, tkID, buyer1, qr), capability.CodeValidatorExpired)
}

func TestTransferMovesRegistration(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	tkID, err := f.mint(buyer1, 100, []byte("qr"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	err = f.store.Execute(buyer1, []ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
		return TransferTicket(tx, f.created.EventID, tkID, f.profiles[buyer1], buyer2)
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	info, err := f.store.InfoOf(tkID)
	if err != nil {
		t.Fatalf("InfoOf: %v", err)
	}
	if info.Owner != buyer2 {
		t.Errorf("ticket owner = %s, want %s", info.Owner, buyer2)
	}
	if tk := f.ticket(t, tkID); tk.OriginalOwner != buyer1 {
		t.Errorf("original owner = %s, want %s", tk.OriginalOwner, buyer1)
	}

	var ev event.Event
	if err := f.store.Get(f.created.EventID, event.KindEvent, &ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if _, stale := ev.Attendees[buyer1.String()]; stale {
		t.Error("old owner still registered after transfer")
	}
	if _, ok := ev.Attendees[buyer2.String()]; !ok {
		t.Error("new owner not registered after transfer")
	}

	// The previous holder can no longer move it.
	err = f.store.Execute(buyer1, []ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
		return TransferTicket(tx, f.created.EventID, tkID, f.profiles[buyer1], buyer3)
	})
	wantCode(t, err, ledger.CodeNotOwner)
}

func TestTransferRespectsEventFlag(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, false))

	tkID, err := f.mint(buyer1, 100, []byte("qr"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	err = f.store.Execute(buyer1, []ref.ObjectID{f.created.EventID}, func(tx *ledger.Tx) error {
		return TransferTicket(tx, f.created.EventID, tkID, f.profiles[buyer1], buyer2)
	})
	wantCode(t, err, CodeNotTransferable)
}

func TestRefundAfterValidationAborts(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))
	valCap := f.grantValidator(t)

	qr := []byte("qr")
	tkID, err := f.mint(buyer1, 100, qr)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := f.validate(valCap, tkID, buyer1, qr); err != nil {
		t.Fatalf("validate: %v", err)
	}

	err = f.store.Execute(buyer1, f.mintInputs(), func(tx *ledger.Tx) error {
		return RefundTicket(tx, f.created.EventID, tkID)
	})
	wantCode(t, err, CodeAlreadyValidated)

	// The ticket survives the failed refund.
	if _, err := f.store.InfoOf(tkID); err != nil {
		t.Fatalf("ticket gone after failed refund: %v", err)
	}
}

func TestRefundAfterDeadlineAborts(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	tkID, err := f.mint(buyer1, 100, []byte("qr"))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	f.clk.Advance(23 * time.Hour)
	err = f.store.Execute(buyer1, f.mintInputs(), func(tx *ledger.Tx) error {
		return RefundTicket(tx, f.created.EventID, tkID)
	})
	wantCode(t, err, CodeRefundClosed)

	if _, err := f.store.InfoOf(tkID); err != nil {
		t.Fatalf("ticket gone after failed refund: %v", err)
	}
}

func TestMintWithDiscount(t *testing.T) {
	f := newFixture(t, testConfig(5, 100, true))

	var discountID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		discountID, err = treasury.CreateDiscountCode(tx, f.created.OrganizerCap, f.created.EventID, "EARLY", 20, 10, 0)
		return err
	})
	if err != nil {
		t.Fatalf("creating discount: %v", err)
	}

	mint := func(payment uint64) error {
		return f.store.Execute(buyer1, f.mintInputs(discountID), func(tx *ledger.Tx) error {
			_, err := MintTicket(tx, MintParams{
				EventID:    f.created.EventID,
				RegistryID: f.eventRegistryID,
				PlatformID: f.platformID,
				ProfileID:  f.profiles[buyer1],
				DiscountID: discountID,
				Tier:       "general",
				Payment:    payment,
				QR:         []byte("qr"),
			})
			return err
		})
	}

	// Full price no longer matches: the discounted price is exact.
	wantCode(t, mint(100), treasury.CodeExactPaymentRequired)
	if err := mint(80); err != nil {
		t.Fatalf("discounted mint: %v", err)
	}

	var dc treasury.DiscountCode
	if err := f.store.Get(discountID, treasury.KindDiscountCode, &dc); err != nil {
		t.Fatalf("reading discount: %v", err)
	}
	if dc.CurrentUses != 1 {
		t.Errorf("uses = %d, want 1 (aborted mint must not consume a use)", dc.CurrentUses)
	}
}
