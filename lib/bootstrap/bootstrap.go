// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap performs genesis: the one-time creation of the
// platform singletons and the first admin capability. Everything the
// engines assume exists (the event registry with its fixed fee, the
// profile registry, the attendance registry, the platform treasury)
// is created here in a single transaction, so a half-initialized
// ledger is impossible.
package bootstrap

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/attendance"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

// Genesis is the object set created at bootstrap. Services hold it
// for the life of the process; every entry operation needs at least
// one of these IDs.
type Genesis struct {
	EventRegistry      ref.ObjectID `cbor:"event_registry"`
	ProfileRegistry    ref.ObjectID `cbor:"profile_registry"`
	AttendanceRegistry ref.ObjectID `cbor:"attendance_registry"`
	PlatformTreasury   ref.ObjectID `cbor:"platform_treasury"`
	SuperAdminCap      ref.ObjectID `cbor:"super_admin_cap"`
}

// Run creates the platform singletons and issues the super-tier admin
// capability to the given address. Idempotence guard: if the event
// registry already exists, the prior genesis is returned unchanged.
// The platform fee is fixed here for the life of the ledger.
func Run(store *ledger.Store, superAdmin ref.Address, feeBps uint64) (Genesis, error) {
	if prior, ok := priorGenesis(store); ok {
		return prior, nil
	}

	var g Genesis
	err := store.Execute(superAdmin, nil, func(tx *ledger.Tx) error {
		key := enginegate.New()
		var err error
		if g.EventRegistry, err = event.CreateRegistry(tx, key, feeBps); err != nil {
			return err
		}
		if g.ProfileRegistry, err = profile.CreateRegistry(tx, key); err != nil {
			return err
		}
		if g.AttendanceRegistry, err = attendance.CreateRegistry(tx, key); err != nil {
			return err
		}
		if g.PlatformTreasury, err = treasury.CreatePlatformTreasury(tx, key); err != nil {
			return err
		}
		if g.SuperAdminCap, err = capability.IssueGenesisAdmin(tx, key, superAdmin); err != nil {
			return err
		}
		tx.Emit(ledger.Record{
			Kind: "genesis",
			Objects: []ref.ObjectID{
				g.EventRegistry, g.ProfileRegistry, g.AttendanceRegistry,
				g.PlatformTreasury, g.SuperAdminCap,
			},
			Addresses: []ref.Address{superAdmin},
			Amounts:   map[string]uint64{"fee_bps": feeBps},
		})
		return nil
	})
	if err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// priorGenesis reconstructs the genesis set from an already-bootstrapped
// store.
func priorGenesis(store *ledger.Store) (Genesis, bool) {
	registries := store.List(event.KindRegistry)
	if len(registries) == 0 {
		return Genesis{}, false
	}
	g := Genesis{EventRegistry: registries[0].ID}
	if infos := store.List(profile.KindRegistry); len(infos) > 0 {
		g.ProfileRegistry = infos[0].ID
	}
	if infos := store.List(attendance.KindRegistry); len(infos) > 0 {
		g.AttendanceRegistry = infos[0].ID
	}
	if infos := store.List(treasury.KindPlatformTreasury); len(infos) > 0 {
		g.PlatformTreasury = infos[0].ID
	}
	if infos := store.List(capability.KindAdminCap); len(infos) > 0 {
		g.SuperAdminCap = infos[0].ID
	}
	return g, true
}
