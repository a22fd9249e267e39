// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

func testAddr(b byte) ref.Address {
	const hexDigits = "0123456789abcdef"
	return ref.MustParseAddress("0x" + strings.Repeat(string([]byte{hexDigits[b&0x0f]}), 64))
}

var (
	organizer = testAddr(0x0a)
	buyer     = testAddr(0x0b)
)

// fixture is a ledger with an event treasury, the platform treasury,
// and a full-permission organizer capability.
type fixture struct {
	store      *ledger.Store
	clk        *clock.FakeClock
	eventID    ref.ObjectID
	treasuryID ref.ObjectID
	platformID ref.ObjectID
	orgCapID   ref.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clk:     clock.Fake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
		eventID: ref.NewObjectID(),
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
		if f.treasuryID, err = CreateEventTreasury(tx, key, f.eventID, organizer); err != nil {
			return err
		}
		if f.platformID, err = CreatePlatformTreasury(tx, key); err != nil {
			return err
		}
		f.orgCapID, err = capability.IssueOrganizerCap(tx, key, f.eventID, organizer)
		return err
	})
	if err != nil {
		t.Fatalf("fixture setup: %v", err)
	}
	return f
}

// pay processes an exact payment from the buyer.
func (f *fixture) pay(t *testing.T, price, feeBps uint64) (fee, share uint64) {
	t.Helper()
	err := f.store.Execute(buyer, []ref.ObjectID{f.treasuryID, f.platformID}, func(tx *ledger.Tx) error {
		var err error
		fee, share, err = ProcessPayment(tx, enginegate.New(), f.treasuryID, f.platformID, price, price, feeBps)
		return err
	})
	if err != nil {
		t.Fatalf("payment of %d: %v", price, err)
	}
	return fee, share
}

func (f *fixture) eventTreasury(t *testing.T) *EventTreasury {
	t.Helper()
	var et EventTreasury
	if err := f.store.Get(f.treasuryID, KindEventTreasury, &et); err != nil {
		t.Fatalf("reading event treasury: %v", err)
	}
	return &et
}

func (f *fixture) platformTreasury(t *testing.T) *PlatformTreasury {
	t.Helper()
	var pt PlatformTreasury
	if err := f.store.Get(f.platformID, KindPlatformTreasury, &pt); err != nil {
		t.Fatalf("reading platform treasury: %v", err)
	}
	return &pt
}

func (f *fixture) unlock(t *testing.T) {
	t.Helper()
	err := f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		_, err := Unlock(tx, enginegate.New(), f.treasuryID)
		return err
	})
	if err != nil {
		t.Fatalf("unlocking: %v", err)
	}
}

func (f *fixture) withdraw(t *testing.T, amount uint64) error {
	t.Helper()
	return f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return WithdrawFunds(tx, f.orgCapID, f.treasuryID, amount)
	})
}

func wantCode(t *testing.T, err error, want ledger.Code) {
	t.Helper()
	if got, _ := ledger.CodeOf(err); got != want {
		t.Fatalf("want abort code %d, got %d (%v)", want, got, err)
	}
}

func TestPaymentSplitsExactly(t *testing.T) {
	f := newFixture(t)

	fee, share := f.pay(t, 100, 250)
	if fee != 2 || share != 98 {
		t.Fatalf("split of 100 at 250 bps = (%d, %d), want (2, 98)", fee, share)
	}

	et := f.eventTreasury(t)
	if et.Balance != 98 || et.LockedForRefund != 98 || et.TotalCollected != 98 {
		t.Errorf("event treasury = %+v, want balance/locked/collected all 98", et)
	}
	if et.Withdrawable() != 0 {
		t.Errorf("withdrawable = %d immediately after payment, want 0", et.Withdrawable())
	}

	pt := f.platformTreasury(t)
	if pt.Balance != 2 || pt.TotalFeesCollected != 2 {
		t.Errorf("platform treasury = %+v, want balance/fees 2", pt)
	}
}

func TestPaymentMustBeExact(t *testing.T) {
	f := newFixture(t)

	for _, paid := range []uint64{99, 101, 0} {
		err := f.store.Execute(buyer, []ref.ObjectID{f.treasuryID, f.platformID}, func(tx *ledger.Tx) error {
			_, _, err := ProcessPayment(tx, enginegate.New(), f.treasuryID, f.platformID, 100, paid, 250)
			return err
		})
		wantCode(t, err, CodeExactPaymentRequired)
	}

	if et := f.eventTreasury(t); et.Balance != 0 {
		t.Errorf("balance after rejected payments = %d, want 0", et.Balance)
	}
}

func TestPaymentAccrualCannotWrap(t *testing.T) {
	f := newFixture(t)

	// Fill the treasury to the uint64 ceiling (zero fee keeps the
	// whole price in the organizer share).
	f.pay(t, math.MaxUint64, 0)

	err := f.store.Execute(buyer, []ref.ObjectID{f.treasuryID, f.platformID}, func(tx *ledger.Tx) error {
		_, _, err := ProcessPayment(tx, enginegate.New(), f.treasuryID, f.platformID, 1, 1, 0)
		return err
	})
	wantCode(t, err, CodeBalanceOverflow)

	et := f.eventTreasury(t)
	if et.Balance != math.MaxUint64 || et.LockedForRefund != math.MaxUint64 {
		t.Errorf("treasury after rejected accrual = %+v, want untouched ceiling", et)
	}
}

func TestWithdrawalCannotStarveRefunds(t *testing.T) {
	f := newFixture(t)

	// Build balance 100 with 60 still locked: collect 40, release
	// it, then collect 60 more.
	f.pay(t, 40, 0)
	f.unlock(t)
	f.pay(t, 60, 0)

	et := f.eventTreasury(t)
	if et.Balance != 100 || et.LockedForRefund != 60 {
		t.Fatalf("setup: balance %d locked %d, want 100/60", et.Balance, et.LockedForRefund)
	}

	wantCode(t, f.withdraw(t, 41), CodeInsufficientWithdrawable)

	if err := f.withdraw(t, 40); err != nil {
		t.Fatalf("withdrawing exactly the unlocked amount: %v", err)
	}
	et = f.eventTreasury(t)
	if et.Balance != 60 || et.TotalWithdrawn != 40 {
		t.Errorf("after withdrawal: balance %d withdrawn %d, want 60/40", et.Balance, et.TotalWithdrawn)
	}
}

func TestWithdrawNeedsPermission(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100, 0)
	f.unlock(t)

	helper := testAddr(0x0c)
	var narrowID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		narrowID, err = capability.CreateLimitedCap(tx, f.orgCapID, capability.Permissions{CanUpdate: true}, helper)
		return err
	})
	if err != nil {
		t.Fatalf("delegating: %v", err)
	}

	err = f.store.Execute(helper, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return WithdrawFunds(tx, narrowID, f.treasuryID, 1)
	})
	wantCode(t, err, capability.CodePermissionDenied)
}

func TestRefundReleasesLock(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100, 0)

	err := f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return IssueRefund(tx, enginegate.New(), f.treasuryID, 100, buyer)
	})
	if err != nil {
		t.Fatalf("refunding: %v", err)
	}

	et := f.eventTreasury(t)
	if et.Balance != 0 || et.LockedForRefund != 0 {
		t.Errorf("after refund: balance %d locked %d, want 0/0", et.Balance, et.LockedForRefund)
	}
}

func TestRefundExceedingBalanceAborts(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 50, 0)

	err := f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return IssueRefund(tx, enginegate.New(), f.treasuryID, 51, buyer)
	})
	wantCode(t, err, CodeInsufficientBalance)

	if et := f.eventTreasury(t); et.Balance != 50 {
		t.Errorf("balance after rejected refund = %d, want 50", et.Balance)
	}
}

func TestRefundLockFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	f.pay(t, 100, 0)
	f.unlock(t)

	// Locked is zero; a refund still debits the balance without
	// underflowing the lock counter.
	err := f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return IssueRefund(tx, enginegate.New(), f.treasuryID, 30, buyer)
	})
	if err != nil {
		t.Fatalf("refunding: %v", err)
	}

	et := f.eventTreasury(t)
	if et.Balance != 70 || et.LockedForRefund != 0 {
		t.Errorf("balance %d locked %d, want 70/0", et.Balance, et.LockedForRefund)
	}
}

func TestBalanceAlwaysCoversLock(t *testing.T) {
	f := newFixture(t)

	check := func(step string) {
		t.Helper()
		et := f.eventTreasury(t)
		if et.Balance < et.LockedForRefund {
			t.Fatalf("%s: balance %d < locked %d", step, et.Balance, et.LockedForRefund)
		}
	}

	f.pay(t, 100, 250)
	check("payment")
	f.pay(t, 37, 250)
	check("second payment")
	f.unlock(t)
	check("unlock")
	if err := f.withdraw(t, 50); err != nil {
		t.Fatalf("withdrawing: %v", err)
	}
	check("withdrawal")
	f.pay(t, 13, 250)
	check("third payment")
	err := f.store.Execute(organizer, []ref.ObjectID{f.treasuryID}, func(tx *ledger.Tx) error {
		return IssueRefund(tx, enginegate.New(), f.treasuryID, 12, buyer)
	})
	if err != nil {
		t.Fatalf("refunding: %v", err)
	}
	check("refund")
}

func TestDiscountLifecycle(t *testing.T) {
	f := newFixture(t)

	var discountID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		discountID, err = CreateDiscountCode(tx, f.orgCapID, f.eventID, "EARLYBIRD", 20, 2, 0)
		return err
	})
	if err != nil {
		t.Fatalf("creating discount: %v", err)
	}

	apply := func() (uint64, error) {
		var price uint64
		err := f.store.Execute(buyer, []ref.ObjectID{discountID}, func(tx *ledger.Tx) error {
			var err error
			price, err = ApplyDiscount(tx, enginegate.New(), discountID, f.eventID, 100)
			return err
		})
		return price, err
	}

	for use := 1; use <= 2; use++ {
		price, err := apply()
		if err != nil {
			t.Fatalf("use %d: %v", use, err)
		}
		if price != 80 {
			t.Fatalf("use %d: discounted price = %d, want 80", use, price)
		}
	}

	_, err = apply()
	wantCode(t, err, CodeDiscountExhausted)

	var dc DiscountCode
	if err := f.store.Get(discountID, KindDiscountCode, &dc); err != nil {
		t.Fatalf("reading discount: %v", err)
	}
	if dc.CurrentUses != 2 {
		t.Errorf("uses = %d, want 2", dc.CurrentUses)
	}
}

func TestDiscountExpiry(t *testing.T) {
	f := newFixture(t)

	expiry := f.clk.Now().Add(time.Hour).Unix()
	var discountID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		discountID, err = CreateDiscountCode(tx, f.orgCapID, f.eventID, "FLASH", 50, 100, expiry)
		return err
	})
	if err != nil {
		t.Fatalf("creating discount: %v", err)
	}

	f.clk.Advance(2 * time.Hour)
	err = f.store.Execute(buyer, []ref.ObjectID{discountID}, func(tx *ledger.Tx) error {
		_, err := ApplyDiscount(tx, enginegate.New(), discountID, f.eventID, 100)
		return err
	})
	wantCode(t, err, CodeDiscountExpired)
}

func TestDiscountWrongEvent(t *testing.T) {
	f := newFixture(t)

	var discountID ref.ObjectID
	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		var err error
		discountID, err = CreateDiscountCode(tx, f.orgCapID, f.eventID, "PROMO", 10, 5, 0)
		return err
	})
	if err != nil {
		t.Fatalf("creating discount: %v", err)
	}

	err = f.store.Execute(buyer, []ref.ObjectID{discountID}, func(tx *ledger.Tx) error {
		_, err := ApplyDiscount(tx, enginegate.New(), discountID, ref.NewObjectID(), 100)
		return err
	})
	wantCode(t, err, CodeDiscountWrongEvent)
}

func TestDiscountPercentRange(t *testing.T) {
	f := newFixture(t)

	err := f.store.Execute(organizer, nil, func(tx *ledger.Tx) error {
		_, err := CreateDiscountCode(tx, f.orgCapID, f.eventID, "TOOBIG", 101, 5, 0)
		return err
	})
	wantCode(t, err, CodePercentRange)
}
