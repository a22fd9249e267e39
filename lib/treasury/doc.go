// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package treasury implements escrowed ticket revenue.
//
// Each event has one EventTreasury, a shared object. Ticket payments
// are split exactly: fee = floor(price * feeBps / 10000), organizer
// share = price - fee. The fee goes to the PlatformTreasury singleton
// (credit-only, no withdrawal path exists on purpose); the organizer
// share is credited to the event treasury's balance and
// simultaneously locked for refunds. Locked funds become withdrawable
// only when the refund deadline passes or a refund consumes them, so
// an organizer withdrawal can never starve a refund.
//
// Discount codes are shared objects holding a bounded usage counter;
// applying one recomputes the price and increments the counter in the
// same transaction.
//
// Abort codes: 300-399.
package treasury
