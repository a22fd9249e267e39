// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/turnstile-foundation/turnstile/lib/accesstoken"
	"github.com/turnstile-foundation/turnstile/lib/bootstrap"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/service"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

var testEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testAddr(b byte) ref.Address {
	return ref.MustParseAddress("0x" + strings.Repeat(fmt.Sprintf("%02x", b), 32))
}

var (
	operatorAddr  = testAddr(0x01)
	organizerAddr = testAddr(0x02)
	buyerAddr     = testAddr(0x03)
	scannerAddr   = testAddr(0x04)
)

// testDaemon is a fully bootstrapped daemon listening on a temp
// socket, with a fake clock shared by the ledger and token checks.
type testDaemon struct {
	daemon     *daemon
	socketPath string
	clk        *clock.FakeClock
}

func startDaemon(t *testing.T) *testDaemon {
	t.Helper()

	dir := t.TempDir()
	clk := clock.Fake(testEpoch)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := ledger.Open(ledger.Config{
		Path:   filepath.Join(dir, "ledger.db"),
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("opening ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	genesis, err := bootstrap.Run(store, operatorAddr, 250)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	public, private, err := accesstoken.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	d := &daemon{
		store:      store,
		genesis:    genesis,
		logger:     logger,
		clk:        clk,
		signingKey: private,
	}
	d.walletAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceWallet, Clock: clk}
	d.scannerAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceScanner, Clock: clk}
	d.adminAuth = &service.AuthConfig{PublicKey: public, Audience: accesstoken.AudienceAdmin, Clock: clk}

	socketPath := filepath.Join(dir, "service.sock")
	server := service.NewSocketServer(socketPath, logger)
	server.SetCodeExtractor(ledger.CodeOf)
	d.register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down within 5s")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return &testDaemon{daemon: d, socketPath: socketPath, clk: clk}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("socket file never appeared")
	return nil
}

// client returns a ServiceClient holding a token for the given
// subject, audience, and scopes, valid for a week from the epoch.
func (td *testDaemon) client(t *testing.T, subject ref.Address, audience string, scopes ...string) *service.ServiceClient {
	t.Helper()
	return service.NewServiceClientFromToken(td.socketPath, td.token(t, subject, audience, scopes...))
}

func (td *testDaemon) token(t *testing.T, subject ref.Address, audience string, scopes ...string) []byte {
	t.Helper()
	minted, err := accesstoken.Mint(td.daemon.signingKey, &accesstoken.Token{
		Subject:   subject,
		Audience:  audience,
		Scopes:    scopes,
		ID:        accesstoken.NewID(),
		IssuedAt:  testEpoch.Unix(),
		ExpiresAt: testEpoch.Add(7 * 24 * time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return minted
}

// createProfile registers a profile for addr over the socket and
// returns its object ID.
func (td *testDaemon) createProfile(t *testing.T, addr ref.Address, name string) ref.ObjectID {
	t.Helper()
	client := td.client(t, addr, accesstoken.AudienceWallet, "profile.*")
	var result struct {
		ProfileID ref.ObjectID `cbor:"profile_id"`
	}
	err := client.Call(context.Background(), "profile.create", map[string]any{
		"identity": profile.Identity{DisplayName: name},
	}, &result)
	if err != nil {
		t.Fatalf("profile.create for %s: %v", name, err)
	}
	return result.ProfileID
}

// createEvent provisions a published event with capacity 10 and a
// 1000-unit ticket price, starting 24h after the epoch.
func (td *testDaemon) createEvent(t *testing.T) event.Created {
	t.Helper()
	admin := td.client(t, organizerAddr, accesstoken.AudienceAdmin, "event.*")

	var created event.Created
	err := admin.Call(context.Background(), "event.create", map[string]any{
		"metadata": event.Metadata{Name: "Warehouse Night", Category: "music"},
		"config": event.Config{
			StartTime:            testEpoch.Add(24 * time.Hour).Unix(),
			EndTime:              testEpoch.Add(30 * time.Hour).Unix(),
			RegistrationDeadline: testEpoch.Add(23 * time.Hour).Unix(),
			RefundDeadline:       testEpoch.Add(20 * time.Hour).Unix(),
			Capacity:             10,
			TicketPrice:          1000,
			Transferable:         true,
		},
	}, &created)
	if err != nil {
		t.Fatalf("event.create: %v", err)
	}

	if err := admin.Call(context.Background(), "event.publish", map[string]any{
		"cap_id":   created.OrganizerCap,
		"event_id": created.EventID,
	}, nil); err != nil {
		t.Fatalf("event.publish: %v", err)
	}
	return created
}

func TestEndToEndTicketFlow(t *testing.T) {
	td := startDaemon(t)

	td.createProfile(t, organizerAddr, "organizer")
	buyerProfile := td.createProfile(t, buyerAddr, "buyer")
	created := td.createEvent(t)

	// Buyer mints a ticket at full price.
	buyer := td.client(t, buyerAddr, accesstoken.AudienceWallet, "ticket.*")
	qr := []byte("qr-payload-1")
	var mintResult struct {
		TicketID ref.ObjectID `cbor:"ticket_id"`
	}
	err := buyer.Call(context.Background(), "ticket.mint", map[string]any{
		"event_id": created.EventID,
		"tier":     "general",
		"payment":  uint64(1000),
		"qr":       qr,
	}, &mintResult)
	if err != nil {
		t.Fatalf("ticket.mint: %v", err)
	}

	// The organizer share is escrowed, the platform fee split off.
	var et treasury.EventTreasury
	if err := td.daemon.store.Get(created.TreasuryID, treasury.KindEventTreasury, &et); err != nil {
		t.Fatalf("reading treasury: %v", err)
	}
	if et.Balance != 975 || et.LockedForRefund != 975 {
		t.Errorf("treasury balance/locked = %d/%d, want 975/975", et.Balance, et.LockedForRefund)
	}

	// Organizer grants the scanner a validator capability.
	admin := td.client(t, organizerAddr, accesstoken.AudienceAdmin, "validator.*")
	var grantResult struct {
		ValidatorCap ref.ObjectID `cbor:"validator_cap"`
	}
	err = admin.Call(context.Background(), "validator.grant", map[string]any{
		"cap_id":     created.OrganizerCap,
		"event_id":   created.EventID,
		"validator":  scannerAddr,
		"expires_at": int64(0),
	}, &grantResult)
	if err != nil {
		t.Fatalf("validator.grant: %v", err)
	}

	// Door scan: scanner validates with the buyer co-signing.
	scanner := td.client(t, scannerAddr, accesstoken.AudienceScanner, "ticket.validate", "attendance.*")
	holderToken := td.token(t, buyerAddr, accesstoken.AudienceWallet, "ticket.present")
	err = scanner.Call(context.Background(), "ticket.validate", map[string]any{
		"validator_cap":   grantResult.ValidatorCap,
		"event_id":        created.EventID,
		"ticket_id":       mintResult.TicketID,
		"qr":              qr,
		"co_signer_token": holderToken,
	}, nil)
	if err != nil {
		t.Fatalf("ticket.validate: %v", err)
	}

	// Attendance proof lands with the buyer, reputation credited.
	var proofResult struct {
		ProofID ref.ObjectID `cbor:"proof_id"`
	}
	err = scanner.Call(context.Background(), "attendance.mint", map[string]any{
		"validator_cap": grantResult.ValidatorCap,
		"event_id":      created.EventID,
		"ticket_id":     mintResult.TicketID,
	}, &proofResult)
	if err != nil {
		t.Fatalf("attendance.mint: %v", err)
	}
	info, err := td.daemon.store.InfoOf(proofResult.ProofID)
	if err != nil {
		t.Fatalf("InfoOf(proof): %v", err)
	}
	if info.Owner != buyerAddr {
		t.Errorf("proof owner = %s, want buyer", info.Owner)
	}

	var buyerState profile.Profile
	if err := td.daemon.store.Get(buyerProfile, profile.KindProfile, &buyerState); err != nil {
		t.Fatalf("reading buyer profile: %v", err)
	}
	if buyerState.Stats.EventsAttended != 1 {
		t.Errorf("EventsAttended = %d, want 1", buyerState.Stats.EventsAttended)
	}
}

func TestMintRejectsWrongPaymentWithCode(t *testing.T) {
	td := startDaemon(t)

	td.createProfile(t, organizerAddr, "organizer")
	td.createProfile(t, buyerAddr, "buyer")
	created := td.createEvent(t)

	buyer := td.client(t, buyerAddr, accesstoken.AudienceWallet, "ticket.*")
	err := buyer.Call(context.Background(), "ticket.mint", map[string]any{
		"event_id": created.EventID,
		"tier":     "general",
		"payment":  uint64(999),
		"qr":       []byte("qr"),
	}, nil)
	if err == nil {
		t.Fatal("ticket.mint with short payment should fail")
	}
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %T, want *ServiceError", err)
	}
	if serviceErr.Code != treasury.CodeExactPaymentRequired {
		t.Errorf("code = %d, want %d", serviceErr.Code, treasury.CodeExactPaymentRequired)
	}
}

func TestWalletTokenRejectedOnAdminSurface(t *testing.T) {
	td := startDaemon(t)
	td.createProfile(t, organizerAddr, "organizer")

	// A wallet-audience token must not reach event.create even with
	// a matching scope string.
	impostor := td.client(t, organizerAddr, accesstoken.AudienceWallet, "event.*")
	err := impostor.Call(context.Background(), "event.create", map[string]any{
		"metadata": event.Metadata{Name: "x"},
		"config":   event.Config{},
	}, nil)
	if err == nil {
		t.Fatal("event.create should reject a wallet token")
	}
	if !strings.Contains(err.Error(), "audience") {
		t.Errorf("error = %v, want audience mismatch", err)
	}
}

func TestRefundOverSocketReopensCapacity(t *testing.T) {
	td := startDaemon(t)

	td.createProfile(t, organizerAddr, "organizer")
	td.createProfile(t, buyerAddr, "buyer")
	created := td.createEvent(t)

	buyer := td.client(t, buyerAddr, accesstoken.AudienceWallet, "ticket.*")
	var mintResult struct {
		TicketID ref.ObjectID `cbor:"ticket_id"`
	}
	err := buyer.Call(context.Background(), "ticket.mint", map[string]any{
		"event_id": created.EventID,
		"tier":     "general",
		"payment":  uint64(1000),
		"qr":       []byte("qr"),
	}, &mintResult)
	if err != nil {
		t.Fatalf("ticket.mint: %v", err)
	}

	if err := buyer.Call(context.Background(), "ticket.refund", map[string]any{
		"event_id":  created.EventID,
		"ticket_id": mintResult.TicketID,
	}, nil); err != nil {
		t.Fatalf("ticket.refund: %v", err)
	}

	var pool event.TicketPool
	if err := td.daemon.store.Get(created.PoolID, event.KindPool, &pool); err != nil {
		t.Fatalf("reading pool: %v", err)
	}
	if pool.Available != 10 {
		t.Errorf("Available = %d, want 10 after refund", pool.Available)
	}

	// The refunded ticket is gone.
	var readResult any
	err = buyer.Call(context.Background(), "ticket.refund", map[string]any{
		"event_id":  created.EventID,
		"ticket_id": mintResult.TicketID,
	}, &readResult)
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code != ledger.CodeUnknownObject {
		t.Errorf("second refund error = %v, want unknown object abort", err)
	}
}

func TestUnauthenticatedReadSurface(t *testing.T) {
	td := startDaemon(t)
	td.createProfile(t, organizerAddr, "organizer")
	td.createProfile(t, buyerAddr, "buyer")
	created := td.createEvent(t)

	buyer := td.client(t, buyerAddr, accesstoken.AudienceWallet, "ticket.*")
	var mintResult struct {
		TicketID ref.ObjectID `cbor:"ticket_id"`
	}
	err := buyer.Call(context.Background(), "ticket.mint", map[string]any{
		"event_id": created.EventID,
		"tier":     "general",
		"payment":  uint64(1000),
		"qr":       []byte("qr"),
	}, &mintResult)
	if err != nil {
		t.Fatalf("ticket.mint: %v", err)
	}

	// Reads carry no token.
	reader := service.NewServiceClientFromToken(td.socketPath, nil)

	var ticketResult struct {
		Ticket struct {
			EventID ref.ObjectID `cbor:"event_id"`
			Number  uint64       `cbor:"number"`
		} `cbor:"ticket"`
		Holder ref.Address `cbor:"holder"`
	}
	if err := reader.Call(context.Background(), "ticket.read", map[string]any{"ticket_id": mintResult.TicketID}, &ticketResult); err != nil {
		t.Fatalf("ticket.read: %v", err)
	}
	if ticketResult.Ticket.EventID != created.EventID || ticketResult.Holder != buyerAddr {
		t.Errorf("ticket.read = %+v, want buyer's ticket for the event", ticketResult)
	}

	var treasuryResult struct {
		Treasury struct {
			Balance         uint64 `cbor:"balance"`
			LockedForRefund uint64 `cbor:"locked_for_refund"`
		} `cbor:"treasury"`
		Withdrawable uint64 `cbor:"withdrawable"`
	}
	if err := reader.Call(context.Background(), "treasury.read", map[string]any{"treasury_id": created.TreasuryID}, &treasuryResult); err != nil {
		t.Fatalf("treasury.read: %v", err)
	}
	if treasuryResult.Treasury.Balance != 975 || treasuryResult.Withdrawable != 0 {
		t.Errorf("treasury.read = %+v, want escrowed 975 with nothing withdrawable", treasuryResult)
	}

	var attendeesResult struct {
		Attendees map[string]event.Registration `cbor:"attendees"`
		Count     int                           `cbor:"count"`
	}
	if err := reader.Call(context.Background(), "event.attendees", map[string]any{"event_id": created.EventID}, &attendeesResult); err != nil {
		t.Fatalf("event.attendees: %v", err)
	}
	if attendeesResult.Count != 1 {
		t.Fatalf("attendee count = %d, want 1", attendeesResult.Count)
	}
	reg, ok := attendeesResult.Attendees[buyerAddr.String()]
	if !ok || reg.TicketID != mintResult.TicketID {
		t.Errorf("attendees = %+v, want buyer registered with the minted ticket", attendeesResult.Attendees)
	}
}

func TestEventListByCategory(t *testing.T) {
	td := startDaemon(t)
	td.createProfile(t, organizerAddr, "organizer")
	created := td.createEvent(t)

	client := service.NewServiceClientFromToken(td.socketPath, nil)
	var listResult struct {
		Events []struct {
			ID     ref.ObjectID `cbor:"id"`
			Name   string       `cbor:"name"`
			Status string       `cbor:"status"`
		} `cbor:"events"`
		Total uint64 `cbor:"total"`
	}
	err := client.Call(context.Background(), "event.list", map[string]any{"category": "music"}, &listResult)
	if err != nil {
		t.Fatalf("event.list: %v", err)
	}
	if listResult.Total != 1 || len(listResult.Events) != 1 {
		t.Fatalf("list = %+v, want one event", listResult)
	}
	if listResult.Events[0].ID != created.EventID || listResult.Events[0].Status != "open" {
		t.Errorf("event = %+v, want open %s", listResult.Events[0], created.EventID)
	}

	if err := client.Call(context.Background(), "event.list", map[string]any{"category": "sports"}, &listResult); err != nil {
		t.Fatalf("event.list(sports): %v", err)
	}
	if len(listResult.Events) != 0 {
		t.Errorf("sports list = %+v, want empty", listResult.Events)
	}
}
