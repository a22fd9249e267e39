// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package treasury

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/money"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Object kinds owned by this engine.
const (
	KindEventTreasury    = "treasury.event"
	KindPlatformTreasury = "treasury.platform"
	KindDiscountCode     = "treasury.discount"
)

// Abort codes 300-399.
const (
	// CodeExactPaymentRequired: the paid amount does not equal the
	// price. No overpayment or underpayment tolerance.
	CodeExactPaymentRequired ledger.Code = 300

	// CodeInsufficientWithdrawable: withdrawal request exceeds
	// balance minus locked-for-refund.
	CodeInsufficientWithdrawable ledger.Code = 301

	// CodeInsufficientBalance: refund request exceeds the treasury
	// balance.
	CodeInsufficientBalance ledger.Code = 302

	// CodeDiscountExhausted: the code's usage cap is reached.
	CodeDiscountExhausted ledger.Code = 303

	// CodeDiscountExpired: the code's expiry is at or before the
	// transaction time.
	CodeDiscountExpired ledger.Code = 304

	// CodeDiscountWrongEvent: the code belongs to a different event.
	CodeDiscountWrongEvent ledger.Code = 305

	// CodePercentRange: a discount percentage outside [0, 100].
	CodePercentRange ledger.Code = 306

	// CodeBalanceOverflow: an accrual would push a balance or
	// running total past the uint64 ceiling.
	CodeBalanceOverflow ledger.Code = 307
)

// accrue adds amount to a balance or running total, aborting the
// transaction instead of wrapping.
func accrue(total, amount uint64) (uint64, error) {
	sum, err := money.CheckedAdd(total, amount)
	if err != nil {
		return 0, ledger.Abortf(CodeBalanceOverflow, "%v", err)
	}
	return sum, nil
}

// EventTreasury escrows one event's ticket revenue.
type EventTreasury struct {
	EventID         ref.ObjectID `cbor:"event_id"`
	Organizer       ref.Address  `cbor:"organizer"`
	Balance         uint64       `cbor:"balance"`
	TotalCollected  uint64       `cbor:"total_collected"`
	TotalWithdrawn  uint64       `cbor:"total_withdrawn"`
	LockedForRefund uint64       `cbor:"locked_for_refund"`
}

// Withdrawable is the portion of the balance not reserved for
// refunds.
func (t *EventTreasury) Withdrawable() uint64 {
	return money.SaturatingSub(t.Balance, t.LockedForRefund)
}

// PlatformTreasury accumulates platform fees. Credit-only: there is
// deliberately no withdrawal operation anywhere in this package.
type PlatformTreasury struct {
	Balance            uint64 `cbor:"balance"`
	TotalFeesCollected uint64 `cbor:"total_fees_collected"`
}

// CreateEventTreasury creates an event's escrow treasury.
// Engine-internal: the event engine creates it during event creation.
func CreateEventTreasury(tx *ledger.Tx, _ enginegate.Key, eventID ref.ObjectID, organizer ref.Address) (ref.ObjectID, error) {
	return tx.Create(KindEventTreasury, ledger.ModeShared, ref.Address{}, &EventTreasury{
		EventID:   eventID,
		Organizer: organizer,
	})
}

// CreatePlatformTreasury creates the platform fee singleton.
// Engine-internal: only the genesis bootstrap calls it.
func CreatePlatformTreasury(tx *ledger.Tx, _ enginegate.Key) (ref.ObjectID, error) {
	return tx.Create(KindPlatformTreasury, ledger.ModeShared, ref.Address{}, &PlatformTreasury{})
}

// ProcessPayment splits an exact ticket payment between the platform
// treasury and the event treasury. The organizer share lands in the
// balance and is locked for refunds in the same motion. Both
// treasuries must be declared as shared inputs. Engine-internal: the
// ticket engine is the only caller.
func ProcessPayment(tx *ledger.Tx, _ enginegate.Key, treasuryID, platformID ref.ObjectID, price, paid, feeBps uint64) (fee, organizerShare uint64, err error) {
	if paid != price {
		return 0, 0, ledger.Abortf(CodeExactPaymentRequired, "paid %d, price is %d", paid, price)
	}
	fee, organizerShare, err = money.SplitFee(price, feeBps)
	if err != nil {
		return 0, 0, err
	}

	var et EventTreasury
	if err := tx.Take(treasuryID, KindEventTreasury, &et); err != nil {
		return 0, 0, err
	}
	var pt PlatformTreasury
	if err := tx.Take(platformID, KindPlatformTreasury, &pt); err != nil {
		return 0, 0, err
	}

	if et.Balance, err = accrue(et.Balance, organizerShare); err != nil {
		return 0, 0, err
	}
	if et.TotalCollected, err = accrue(et.TotalCollected, organizerShare); err != nil {
		return 0, 0, err
	}
	if et.LockedForRefund, err = accrue(et.LockedForRefund, organizerShare); err != nil {
		return 0, 0, err
	}
	if pt.Balance, err = accrue(pt.Balance, fee); err != nil {
		return 0, 0, err
	}
	if pt.TotalFeesCollected, err = accrue(pt.TotalFeesCollected, fee); err != nil {
		return 0, 0, err
	}

	tx.Emit(ledger.Record{
		Kind:      "treasury.payment",
		Objects:   []ref.ObjectID{treasuryID, platformID, et.EventID},
		Addresses: []ref.Address{tx.Sender(), et.Organizer},
		Amounts: map[string]uint64{
			"price":     price,
			"fee":       fee,
			"organizer": organizerShare,
		},
	})
	return fee, organizerShare, nil
}

// WithdrawFunds pays out part of the unlocked balance to the sender.
// Requires an organizer capability for the treasury's event carrying
// the withdraw permission. The withdrawable amount excludes funds
// locked for refunds; asking for more aborts.
func WithdrawFunds(tx *ledger.Tx, orgCapID, treasuryID ref.ObjectID, amount uint64) error {
	var et EventTreasury
	if err := tx.Take(treasuryID, KindEventTreasury, &et); err != nil {
		return err
	}
	if _, err := capability.VerifyOrganizer(tx, orgCapID, et.EventID, capability.PermWithdraw); err != nil {
		return err
	}
	if amount > et.Withdrawable() {
		return ledger.Abortf(CodeInsufficientWithdrawable, "requested %d, withdrawable is %d (balance %d, locked %d)",
			amount, et.Withdrawable(), et.Balance, et.LockedForRefund)
	}

	et.Balance -= amount
	var err error
	if et.TotalWithdrawn, err = accrue(et.TotalWithdrawn, amount); err != nil {
		return err
	}

	tx.Emit(ledger.Record{
		Kind:      "treasury.withdrawal",
		Objects:   []ref.ObjectID{treasuryID, et.EventID},
		Addresses: []ref.Address{tx.Sender()},
		Amounts:   map[string]uint64{"amount": amount, "balance": et.Balance},
	})
	return nil
}

// IssueRefund debits the treasury for a refund. The debit comes from
// the live balance; locked-for-refund decrements by the same amount
// floored at zero, so accounting drift can never underflow it.
// Engine-internal: the ticket engine's refund path is the only
// caller.
func IssueRefund(tx *ledger.Tx, _ enginegate.Key, treasuryID ref.ObjectID, amount uint64, recipient ref.Address) error {
	var et EventTreasury
	if err := tx.Take(treasuryID, KindEventTreasury, &et); err != nil {
		return err
	}
	if amount > et.Balance {
		return ledger.Abortf(CodeInsufficientBalance, "refund %d exceeds balance %d", amount, et.Balance)
	}

	et.Balance -= amount
	et.LockedForRefund = money.SaturatingSub(et.LockedForRefund, amount)

	tx.Emit(ledger.Record{
		Kind:      "treasury.refund",
		Objects:   []ref.ObjectID{treasuryID, et.EventID},
		Addresses: []ref.Address{recipient},
		Amounts:   map[string]uint64{"amount": amount, "balance": et.Balance},
	})
	return nil
}

// Unlock releases the entire locked-for-refund reserve into the
// withdrawable balance and returns the amount released.
// Engine-internal: the event engine calls it once the refund deadline
// has passed; the deadline check lives there because the treasury
// does not know event times.
func Unlock(tx *ledger.Tx, _ enginegate.Key, treasuryID ref.ObjectID) (uint64, error) {
	var et EventTreasury
	if err := tx.Take(treasuryID, KindEventTreasury, &et); err != nil {
		return 0, err
	}
	released := et.LockedForRefund
	et.LockedForRefund = 0

	tx.Emit(ledger.Record{
		Kind:    "treasury.unlocked",
		Objects: []ref.ObjectID{treasuryID, et.EventID},
		Amounts: map[string]uint64{"amount": released, "balance": et.Balance},
	})
	return released, nil
}
