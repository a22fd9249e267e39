// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

var superAdmin = ref.MustParseAddress("0x" + strings.Repeat("a", 64))

func testStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(ledger.Config{
		Path:  filepath.Join(t.TempDir(), "ledger.db"),
		Clock: clock.Fake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunCreatesEverything(t *testing.T) {
	store := testStore(t)

	g, err := Run(store, superAdmin, 250)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	for name, id := range map[string]ref.ObjectID{
		"event registry":      g.EventRegistry,
		"profile registry":    g.ProfileRegistry,
		"attendance registry": g.AttendanceRegistry,
		"platform treasury":   g.PlatformTreasury,
		"super admin cap":     g.SuperAdminCap,
	} {
		if id.IsZero() {
			t.Errorf("%s not created", name)
		}
	}

	var reg event.Registry
	if err := store.Get(g.EventRegistry, event.KindRegistry, &reg); err != nil {
		t.Fatalf("reading event registry: %v", err)
	}
	if reg.FeeBps != 250 {
		t.Errorf("fee = %d bps, want 250", reg.FeeBps)
	}

	var admin capability.AdminCap
	if err := store.Get(g.SuperAdminCap, capability.KindAdminCap, &admin); err != nil {
		t.Fatalf("reading admin cap: %v", err)
	}
	if admin.Level != capability.AdminSuper {
		t.Errorf("admin level = %d, want super", admin.Level)
	}
	info, err := store.InfoOf(g.SuperAdminCap)
	if err != nil {
		t.Fatalf("InfoOf: %v", err)
	}
	if info.Owner != superAdmin {
		t.Errorf("admin cap owner = %s, want %s", info.Owner, superAdmin)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := testStore(t)

	first, err := Run(store, superAdmin, 250)
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	second, err := Run(store, superAdmin, 500)
	if err != nil {
		t.Fatalf("second genesis: %v", err)
	}
	if first != second {
		t.Errorf("second run produced different objects:\n%+v\n%+v", first, second)
	}

	// The fee from the first run stands.
	var reg event.Registry
	if err := store.Get(first.EventRegistry, event.KindRegistry, &reg); err != nil {
		t.Fatalf("reading event registry: %v", err)
	}
	if reg.FeeBps != 250 {
		t.Errorf("fee = %d bps, want the original 250", reg.FeeBps)
	}
}
