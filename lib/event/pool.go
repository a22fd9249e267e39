// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// TicketPool bounds an event's ticket supply. Issued only ever grows
// and numbers tickets in mint order; Available is returned to the
// pool by refunds, so a refunded seat can be sold again under a fresh
// number.
type TicketPool struct {
	EventID   ref.ObjectID `cbor:"event_id"`
	Capacity  uint64       `cbor:"capacity"`
	Issued    uint64       `cbor:"issued"`
	Available uint64       `cbor:"available"`
}

func createPool(tx *ledger.Tx, _ enginegate.Key, eventID ref.ObjectID, capacity uint64) (ref.ObjectID, error) {
	return tx.Create(KindPool, ledger.ModeShared, ref.Address{}, &TicketPool{
		EventID:   eventID,
		Capacity:  capacity,
		Available: capacity,
	})
}

// ReserveTicket consumes one unit of availability and returns the
// next ticket number. Engine-internal: the ticket engine calls it on
// a pool it has taken.
func ReserveTicket(_ enginegate.Key, pool *TicketPool) (uint64, error) {
	if pool.Available == 0 {
		return 0, ledger.Abortf(CodeSoldOut, "pool for event %s is exhausted", pool.EventID)
	}
	pool.Available--
	pool.Issued++
	return pool.Issued, nil
}

// ReleaseTicket returns one unit of availability after a refund.
// Issued is untouched; ticket numbers are never reused.
func ReleaseTicket(_ enginegate.Key, pool *TicketPool) {
	if pool.Available < pool.Capacity {
		pool.Available++
	}
}
