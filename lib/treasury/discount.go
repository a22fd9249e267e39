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

// DiscountCode is a bounded-use percentage discount for one event's
// tickets. Shared so that concurrent purchases serialize on the usage
// counter rather than double-spending the last use.
type DiscountCode struct {
	EventID     ref.ObjectID `cbor:"event_id"`
	Code        string       `cbor:"code"`
	Percent     uint64       `cbor:"percent"`
	MaxUses     uint64       `cbor:"max_uses"`
	CurrentUses uint64       `cbor:"current_uses"`
	ExpiresAt   int64        `cbor:"expires_at,omitempty"`
}

// CreateDiscountCode creates a discount code for an event. The sender
// must present an organizer capability with the update permission.
// Percent must be in [0, 100]; expiresAt is Unix seconds, zero for no
// expiry.
func CreateDiscountCode(tx *ledger.Tx, orgCapID, eventID ref.ObjectID, code string, percent, maxUses uint64, expiresAt int64) (ref.ObjectID, error) {
	if _, err := capability.VerifyOrganizer(tx, orgCapID, eventID, capability.PermUpdate); err != nil {
		return ref.ObjectID{}, err
	}
	if percent > money.MaxPercent {
		return ref.ObjectID{}, ledger.Abortf(CodePercentRange, "discount percent %d outside [0, %d]", percent, money.MaxPercent)
	}

	id, err := tx.Create(KindDiscountCode, ledger.ModeShared, ref.Address{}, &DiscountCode{
		EventID:   eventID,
		Code:      code,
		Percent:   percent,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "treasury.discount_created",
		Objects:   []ref.ObjectID{id, eventID},
		Addresses: []ref.Address{tx.Sender()},
		Amounts:   map[string]uint64{"percent": percent, "max_uses": maxUses},
	})
	return id, nil
}

// ApplyDiscount consumes one use of the code and returns the
// discounted price. The code must be declared as a shared input; the
// usage increment and the price computation commit together, so a
// stale usage count is never observable. Engine-internal: the ticket
// engine applies discounts during minting.
func ApplyDiscount(tx *ledger.Tx, _ enginegate.Key, discountID, eventID ref.ObjectID, price uint64) (uint64, error) {
	var dc DiscountCode
	if err := tx.Take(discountID, KindDiscountCode, &dc); err != nil {
		return 0, err
	}
	if dc.EventID != eventID {
		return 0, ledger.Abortf(CodeDiscountWrongEvent, "discount %s is for event %s, not %s", dc.Code, dc.EventID, eventID)
	}
	if dc.ExpiresAt != 0 && tx.Now().Unix() >= dc.ExpiresAt {
		return 0, ledger.Abortf(CodeDiscountExpired, "discount %s expired at %d", dc.Code, dc.ExpiresAt)
	}
	if dc.CurrentUses >= dc.MaxUses {
		return 0, ledger.Abortf(CodeDiscountExhausted, "discount %s has no uses left (%d of %d)", dc.Code, dc.CurrentUses, dc.MaxUses)
	}

	discounted, err := money.Discounted(price, dc.Percent)
	if err != nil {
		return 0, err
	}
	dc.CurrentUses++

	tx.Emit(ledger.Record{
		Kind:      "treasury.discount_applied",
		Objects:   []ref.ObjectID{discountID, eventID},
		Addresses: []ref.Address{tx.Sender()},
		Amounts: map[string]uint64{
			"price":      price,
			"discounted": discounted,
			"uses":       dc.CurrentUses,
		},
	})
	return discounted, nil
}
