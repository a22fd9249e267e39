// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Rarity grades an achievement badge.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Badge is an achievement asset. Owned and transferable; holding one
// proves nothing beyond that it was once earned.
type Badge struct {
	User     ref.Address `cbor:"user"`
	Type     string      `cbor:"type"`
	Rarity   Rarity      `cbor:"rarity"`
	EarnedAt int64       `cbor:"earned_at"`
}

type milestone struct {
	count  uint64
	name   string
	rarity Rarity
}

// Milestone tables. Counters increment strictly by one, so an
// equality check mints each badge exactly once.
var (
	attendedMilestones = []milestone{
		{1, "first_steps", RarityCommon},
		{10, "enthusiast", RarityRare},
		{50, "regular", RarityEpic},
		{100, "legend", RarityLegendary},
	}
	organizedMilestones = []milestone{
		{5, "organizer", RarityRare},
		{25, "master_organizer", RarityEpic},
	}
)

func mintMilestoneBadge(tx *ledger.Tx, p *Profile, table []milestone, count uint64) error {
	for _, m := range table {
		if count != m.count {
			continue
		}
		id, err := tx.Create(KindBadge, ledger.ModeOwned, p.Address, &Badge{
			User:     p.Address,
			Type:     m.name,
			Rarity:   m.rarity,
			EarnedAt: tx.Now().Unix(),
		})
		if err != nil {
			return err
		}
		tx.Emit(ledger.Record{
			Kind:      "profile.badge_earned",
			Objects:   []ref.ObjectID{id},
			Addresses: []ref.Address{p.Address},
			Amounts:   map[string]uint64{"milestone": m.count},
		})
		return nil
	}
	return nil
}
