// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package money implements the integer arithmetic used for ticket
// prices, fee splits, and discounts. All amounts are unsigned 64-bit
// integers in the platform's smallest currency unit; there is no
// floating point anywhere and every division rounds down.
package money

import (
	"fmt"
	"math/bits"
)

// FeeDenominator is the divisor for basis-point fees: 10000 basis
// points is 100%.
const FeeDenominator = 10000

// MaxPercent is the upper bound for discount percentages.
const MaxPercent = 100

// SplitFee divides price into the platform fee and the organizer
// share. The fee is floor(price * feeBps / 10000); the organizer share
// is price minus the fee, never computed independently, so the two
// always sum exactly to price for any inputs. feeBps above 10000 is
// rejected — a fee over 100% would make the organizer share negative.
//
// The intermediate product is computed with 128-bit arithmetic, so
// the split is exact even when price is near the uint64 ceiling.
func SplitFee(price uint64, feeBps uint64) (fee, organizer uint64, err error) {
	if feeBps > FeeDenominator {
		return 0, 0, fmt.Errorf("money: fee %d bps exceeds %d", feeBps, FeeDenominator)
	}
	hi, lo := bits.Mul64(price, feeBps)
	fee, _ = bits.Div64(hi, lo, FeeDenominator)
	return fee, price - fee, nil
}

// Discounted returns the price after applying a percentage discount:
// price - floor(price * percent / 100). A 100% discount yields zero;
// percent above 100 is rejected.
func Discounted(price uint64, percent uint64) (uint64, error) {
	if percent > MaxPercent {
		return 0, fmt.Errorf("money: discount %d%% exceeds %d%%", percent, MaxPercent)
	}
	hi, lo := bits.Mul64(price, percent)
	off, _ := bits.Div64(hi, lo, MaxPercent)
	return price - off, nil
}

// CheckedAdd returns a + b, or an error if the sum would overflow.
// Treasury accruals (balances, collected and withdrawn totals, the
// refund lock) go through this; a balance that silently wraps is a
// stolen refund.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("money: %d + %d overflows", a, b)
	}
	return sum, nil
}

// SaturatingSub returns a - b floored at zero. Used where drift
// between two counters is tolerated by design (the refund lock is
// decremented with this so a locked-accounting drift can never abort
// a legitimate refund).
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
