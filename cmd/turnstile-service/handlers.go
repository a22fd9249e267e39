// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"github.com/turnstile-foundation/turnstile/lib/accesstoken"
	"github.com/turnstile-foundation/turnstile/lib/attendance"
	"github.com/turnstile-foundation/turnstile/lib/bootstrap"
	"github.com/turnstile-foundation/turnstile/lib/capability"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/event"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/profile"
	"github.com/turnstile-foundation/turnstile/lib/ref"
	"github.com/turnstile-foundation/turnstile/lib/service"
	"github.com/turnstile-foundation/turnstile/lib/ticket"
	"github.com/turnstile-foundation/turnstile/lib/treasury"
)

// daemon holds the state shared by all socket handlers.
type daemon struct {
	store      *ledger.Store
	genesis    bootstrap.Genesis
	logger     *slog.Logger
	clk        clock.Clock
	signingKey ed25519.PrivateKey

	walletAuth  *service.AuthConfig
	scannerAuth *service.AuthConfig
	adminAuth   *service.AuthConfig
}

// register wires every action onto the server. Wallet actions carry
// the holder's token; scanner actions carry a device token; admin
// actions carry an organizer or platform operator token.
func (d *daemon) register(s *service.SocketServer) {
	// Unauthenticated reads.
	s.Handle("ping", d.handlePing)
	s.Handle("genesis", d.handleGenesis)
	s.Handle("event.read", d.handleEventRead)
	s.Handle("event.list", d.handleEventList)
	s.Handle("event.attendees", d.handleEventAttendees)
	s.Handle("profile.read", d.handleProfileRead)
	s.Handle("ticket.read", d.handleTicketRead)
	s.Handle("treasury.read", d.handleTreasuryRead)

	// Wallet surface.
	s.Handle("profile.create", service.Authenticated(d.walletAuth, "profile.create", d.handleProfileCreate))
	s.Handle("profile.update", service.Authenticated(d.walletAuth, "profile.update", d.handleProfileUpdate))
	s.Handle("ticket.mint", service.Authenticated(d.walletAuth, "ticket.mint", d.handleTicketMint))
	s.Handle("ticket.transfer", service.Authenticated(d.walletAuth, "ticket.transfer", d.handleTicketTransfer))
	s.Handle("ticket.refund", service.Authenticated(d.walletAuth, "ticket.refund", d.handleTicketRefund))
	s.Handle("rate.organizer", service.Authenticated(d.walletAuth, "rate.organizer", d.handleRateOrganizer))
	s.Handle("rate.attendee", service.Authenticated(d.walletAuth, "rate.attendee", d.handleRateAttendee))

	// Organizer and platform surface.
	s.Handle("token.mint", service.Authenticated(d.adminAuth, "token.mint", d.handleTokenMint))
	s.Handle("event.create", service.Authenticated(d.adminAuth, "event.create", d.handleEventCreate))
	s.Handle("event.publish", service.Authenticated(d.adminAuth, "event.publish", d.handleEventPublish))
	s.Handle("event.start", service.Authenticated(d.adminAuth, "event.start", d.handleEventStart))
	s.Handle("event.complete", service.Authenticated(d.adminAuth, "event.complete", d.handleEventComplete))
	s.Handle("event.cancel", service.Authenticated(d.adminAuth, "event.cancel", d.handleEventCancel))
	s.Handle("event.update", service.Authenticated(d.adminAuth, "event.update", d.handleEventUpdate))
	s.Handle("event.unlock", service.Authenticated(d.adminAuth, "event.unlock", d.handleEventUnlock))
	s.Handle("treasury.withdraw", service.Authenticated(d.adminAuth, "treasury.withdraw", d.handleTreasuryWithdraw))
	s.Handle("discount.create", service.Authenticated(d.adminAuth, "discount.create", d.handleDiscountCreate))
	s.Handle("validator.grant", service.Authenticated(d.adminAuth, "validator.grant", d.handleValidatorGrant))
	s.Handle("log.records", service.Authenticated(d.adminAuth, "log.records", d.handleLogRecords))
	s.Handle("log.export", service.Authenticated(d.adminAuth, "log.export", d.handleLogExport))

	// Door-scan surface.
	s.Handle("ticket.validate", service.Authenticated(d.scannerAuth, "ticket.validate", d.handleTicketValidate))
	s.Handle("attendance.mint", service.Authenticated(d.scannerAuth, "attendance.mint", d.handleAttendanceMint))
	s.Handle("attendance.batch", service.Authenticated(d.scannerAuth, "attendance.batch", d.handleAttendanceBatch))
	s.Handle("attendance.checkout", service.Authenticated(d.scannerAuth, "attendance.checkout", d.handleAttendanceCheckout))
}

func decode[T any](raw []byte) (T, error) {
	var request T
	if err := codec.Unmarshal(raw, &request); err != nil {
		return request, fmt.Errorf("invalid request: %w", err)
	}
	return request, nil
}

// coSigner verifies a second party's wallet token carried inside the
// request and returns its subject. Multi-party operations (door-scan
// validation, peer rating) need the other party's consent; presenting
// a valid token is how that consent travels over the socket.
func (d *daemon) coSigner(tokenBytes []byte) (ref.Address, error) {
	if len(tokenBytes) == 0 {
		return ref.Address{}, fmt.Errorf("missing required field: co_signer_token")
	}
	token, err := accesstoken.VerifyForAudienceAt(d.walletAuth.PublicKey, tokenBytes, accesstoken.AudienceWallet, d.clk.Now())
	if err != nil {
		return ref.Address{}, fmt.Errorf("co-signer token: %w", err)
	}
	return token.Subject, nil
}

// profileOf resolves an address to its profile object through the
// profile registry.
func (d *daemon) profileOf(addr ref.Address) (ref.ObjectID, error) {
	var registry profile.Registry
	if err := d.store.Get(d.genesis.ProfileRegistry, profile.KindRegistry, &registry); err != nil {
		return ref.ObjectID{}, err
	}
	id, ok := registry.ByAddress[addr.String()]
	if !ok {
		return ref.ObjectID{}, ledger.Abortf(profile.CodeNoProfile, "no profile for %s", addr)
	}
	return id, nil
}

func (d *daemon) handlePing(ctx context.Context, raw []byte) (any, error) {
	return map[string]any{"log_seq": d.store.LogSeq()}, nil
}

func (d *daemon) handleGenesis(ctx context.Context, raw []byte) (any, error) {
	return d.genesis, nil
}

func (d *daemon) handleEventRead(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		EventID ref.ObjectID `cbor:"event_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := d.store.Get(request.EventID, event.KindEvent, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (d *daemon) handleEventList(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		Category string `cbor:"category,omitempty"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var registry event.Registry
	if err := d.store.Get(d.genesis.EventRegistry, event.KindRegistry, &registry); err != nil {
		return nil, err
	}

	var ids []ref.ObjectID
	if request.Category != "" {
		ids = registry.Categories[request.Category]
	} else {
		for _, info := range d.store.List(event.KindEvent) {
			ids = append(ids, info.ID)
		}
	}

	type summary struct {
		ID       ref.ObjectID `cbor:"id"`
		Name     string       `cbor:"name"`
		Category string       `cbor:"category"`
		Status   string       `cbor:"status"`
		Start    int64        `cbor:"start"`
	}
	summaries := make([]summary, 0, len(ids))
	for _, id := range ids {
		var ev event.Event
		if err := d.store.Get(id, event.KindEvent, &ev); err != nil {
			continue
		}
		summaries = append(summaries, summary{
			ID:       id,
			Name:     ev.Metadata.Name,
			Category: ev.Metadata.Category,
			Status:   ev.Status.String(),
			Start:    ev.Config.StartTime,
		})
	}
	return map[string]any{"events": summaries, "total": registry.TotalEvents}, nil
}

func (d *daemon) handleEventAttendees(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		EventID ref.ObjectID `cbor:"event_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := d.store.Get(request.EventID, event.KindEvent, &ev); err != nil {
		return nil, err
	}
	return map[string]any{"attendees": ev.Attendees, "count": len(ev.Attendees)}, nil
}

func (d *daemon) handleTicketRead(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		TicketID ref.ObjectID `cbor:"ticket_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var t ticket.Ticket
	if err := d.store.Get(request.TicketID, ticket.KindTicket, &t); err != nil {
		return nil, err
	}
	info, err := d.store.InfoOf(request.TicketID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ticket": t, "holder": info.Owner}, nil
}

func (d *daemon) handleTreasuryRead(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		TreasuryID ref.ObjectID `cbor:"treasury_id"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var t treasury.EventTreasury
	if err := d.store.Get(request.TreasuryID, treasury.KindEventTreasury, &t); err != nil {
		return nil, err
	}
	return map[string]any{"treasury": t, "withdrawable": t.Withdrawable()}, nil
}

func (d *daemon) handleProfileRead(ctx context.Context, raw []byte) (any, error) {
	request, err := decode[struct {
		Address ref.Address `cbor:"address"`
	}](raw)
	if err != nil {
		return nil, err
	}
	profileID, err := d.profileOf(request.Address)
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := d.store.Get(profileID, profile.KindProfile, &p); err != nil {
		return nil, err
	}
	return map[string]any{"profile_id": profileID, "profile": p}, nil
}

func (d *daemon) handleProfileCreate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		Identity    profile.Identity    `cbor:"identity"`
		Preferences profile.Preferences `cbor:"preferences"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var profileID ref.ObjectID
	err = d.store.Execute(sender, []ref.ObjectID{d.genesis.ProfileRegistry}, func(tx *ledger.Tx) error {
		profileID, err = profile.CreateProfile(tx, d.genesis.ProfileRegistry, request.Identity, request.Preferences)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"profile_id": profileID}, nil
}

func (d *daemon) handleProfileUpdate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		ProfileID   ref.ObjectID         `cbor:"profile_id"`
		Identity    *profile.Identity    `cbor:"identity,omitempty"`
		Preferences *profile.Preferences `cbor:"preferences,omitempty"`
	}](raw)
	if err != nil {
		return nil, err
	}

	return nil, d.store.Execute(sender, nil, func(tx *ledger.Tx) error {
		if request.Identity != nil {
			if err := profile.UpdateIdentity(tx, request.ProfileID, *request.Identity); err != nil {
				return err
			}
		}
		if request.Preferences != nil {
			if err := profile.UpdatePreferences(tx, request.ProfileID, *request.Preferences); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *daemon) handleTicketMint(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		EventID    ref.ObjectID `cbor:"event_id"`
		DiscountID ref.ObjectID `cbor:"discount_id,omitempty"`
		Tier       string       `cbor:"tier"`
		Payment    uint64       `cbor:"payment"`
		QR         []byte       `cbor:"qr"`
		SealedRef  string       `cbor:"sealed_ref,omitempty"`
	}](raw)
	if err != nil {
		return nil, err
	}

	// The event carries its treasury and pool IDs; both are shared
	// inputs of the mint transaction.
	var ev event.Event
	if err := d.store.Get(request.EventID, event.KindEvent, &ev); err != nil {
		return nil, err
	}
	profileID, err := d.profileOf(sender)
	if err != nil {
		return nil, err
	}

	sharedInputs := []ref.ObjectID{
		request.EventID,
		d.genesis.EventRegistry,
		d.genesis.PlatformTreasury,
		ev.TreasuryID,
		ev.PoolID,
	}
	if !request.DiscountID.IsZero() {
		sharedInputs = append(sharedInputs, request.DiscountID)
	}

	var ticketID ref.ObjectID
	err = d.store.Execute(sender, sharedInputs, func(tx *ledger.Tx) error {
		ticketID, err = ticket.MintTicket(tx, ticket.MintParams{
			EventID:    request.EventID,
			RegistryID: d.genesis.EventRegistry,
			PlatformID: d.genesis.PlatformTreasury,
			ProfileID:  profileID,
			DiscountID: request.DiscountID,
			Tier:       request.Tier,
			Payment:    request.Payment,
			QR:         request.QR,
			SealedRef:  request.SealedRef,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"ticket_id": ticketID}, nil
}

func (d *daemon) handleTicketTransfer(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		EventID  ref.ObjectID `cbor:"event_id"`
		TicketID ref.ObjectID `cbor:"ticket_id"`
		To       ref.Address  `cbor:"to"`
	}](raw)
	if err != nil {
		return nil, err
	}
	profileID, err := d.profileOf(sender)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return ticket.TransferTicket(tx, request.EventID, request.TicketID, profileID, request.To)
	})
}

func (d *daemon) handleTicketRefund(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		EventID  ref.ObjectID `cbor:"event_id"`
		TicketID ref.ObjectID `cbor:"ticket_id"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var ev event.Event
	if err := d.store.Get(request.EventID, event.KindEvent, &ev); err != nil {
		return nil, err
	}
	sharedInputs := []ref.ObjectID{request.EventID, ev.TreasuryID, ev.PoolID}
	return nil, d.store.Execute(sender, sharedInputs, func(tx *ledger.Tx) error {
		return ticket.RefundTicket(tx, request.EventID, request.TicketID)
	})
}

// handleRateOrganizer records a rating on an organizer's profile.
// The profile holder co-signs by including their own wallet token.
func (d *daemon) handleRateOrganizer(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	return d.handleRating(sender, raw, profile.RateOrganizer)
}

func (d *daemon) handleRateAttendee(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	return d.handleRating(sender, raw, profile.RateAttendee)
}

func (d *daemon) handleRating(sender ref.Address, raw []byte, rate func(*ledger.Tx, ref.ObjectID, uint64) error) (any, error) {
	request, err := decode[struct {
		ProfileID     ref.ObjectID `cbor:"profile_id"`
		Rating        uint64       `cbor:"rating"`
		CoSignerToken []byte       `cbor:"co_signer_token"`
	}](raw)
	if err != nil {
		return nil, err
	}
	holder, err := d.coSigner(request.CoSignerToken)
	if err != nil {
		return nil, err
	}
	return nil, d.store.ExecuteMultiAgent(sender, []ref.Address{holder}, nil, func(tx *ledger.Tx) error {
		return rate(tx, request.ProfileID, request.Rating)
	})
}

func (d *daemon) handleTokenMint(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		Subject    ref.Address `cbor:"subject"`
		Audience   string      `cbor:"audience"`
		Scopes     []string    `cbor:"scopes"`
		TTLSeconds int64       `cbor:"ttl_seconds"`
	}](raw)
	if err != nil {
		return nil, err
	}
	switch request.Audience {
	case accesstoken.AudienceWallet, accesstoken.AudienceScanner, accesstoken.AudienceAdmin:
	default:
		return nil, fmt.Errorf("unknown audience %q", request.Audience)
	}
	if request.TTLSeconds <= 0 {
		return nil, fmt.Errorf("ttl_seconds must be positive")
	}

	now := d.clk.Now()
	minted, err := accesstoken.Mint(d.signingKey, &accesstoken.Token{
		Subject:   request.Subject,
		Audience:  request.Audience,
		Scopes:    request.Scopes,
		ID:        accesstoken.NewID(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Duration(request.TTLSeconds) * time.Second).Unix(),
	})
	if err != nil {
		return nil, err
	}
	d.logger.Info("token minted",
		"minted_by", sender,
		"subject", request.Subject,
		"audience", request.Audience,
	)
	return map[string]any{"token": minted}, nil
}

func (d *daemon) handleEventCreate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		Metadata event.Metadata `cbor:"metadata"`
		Config   event.Config   `cbor:"config"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var created event.Created
	err = d.store.Execute(sender, []ref.ObjectID{d.genesis.EventRegistry}, func(tx *ledger.Tx) error {
		created, err = event.CreateEvent(tx, d.genesis.EventRegistry, request.Metadata, request.Config)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type lifecycleRequest struct {
	CapID   ref.ObjectID `cbor:"cap_id"`
	EventID ref.ObjectID `cbor:"event_id"`
}

func (d *daemon) handleEventPublish(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[lifecycleRequest](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return event.Publish(tx, request.CapID, request.EventID)
	})
}

func (d *daemon) handleEventStart(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[lifecycleRequest](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return event.Start(tx, request.CapID, request.EventID)
	})
}

func (d *daemon) handleEventComplete(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[lifecycleRequest](raw)
	if err != nil {
		return nil, err
	}
	profileID, err := d.profileOf(sender)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return event.Complete(tx, request.CapID, request.EventID, profileID)
	})
}

func (d *daemon) handleEventCancel(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[lifecycleRequest](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return event.Cancel(tx, request.CapID, request.EventID)
	})
}

func (d *daemon) handleEventUpdate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		CapID    ref.ObjectID   `cbor:"cap_id"`
		EventID  ref.ObjectID   `cbor:"event_id"`
		Metadata event.Metadata `cbor:"metadata"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return event.UpdateMetadata(tx, request.CapID, request.EventID, request.Metadata)
	})
}

func (d *daemon) handleEventUnlock(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[lifecycleRequest](raw)
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := d.store.Get(request.EventID, event.KindEvent, &ev); err != nil {
		return nil, err
	}

	var released uint64
	err = d.store.Execute(sender, []ref.ObjectID{request.EventID, ev.TreasuryID}, func(tx *ledger.Tx) error {
		released, err = event.UnlockFunds(tx, request.CapID, request.EventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"released": released}, nil
}

func (d *daemon) handleTreasuryWithdraw(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		CapID      ref.ObjectID `cbor:"cap_id"`
		TreasuryID ref.ObjectID `cbor:"treasury_id"`
		Amount     uint64       `cbor:"amount"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return nil, d.store.Execute(sender, []ref.ObjectID{request.TreasuryID}, func(tx *ledger.Tx) error {
		return treasury.WithdrawFunds(tx, request.CapID, request.TreasuryID, request.Amount)
	})
}

func (d *daemon) handleDiscountCreate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		CapID     ref.ObjectID `cbor:"cap_id"`
		EventID   ref.ObjectID `cbor:"event_id"`
		Code      string       `cbor:"code"`
		Percent   uint64       `cbor:"percent"`
		MaxUses   uint64       `cbor:"max_uses"`
		ExpiresAt int64        `cbor:"expires_at"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var discountID ref.ObjectID
	err = d.store.Execute(sender, nil, func(tx *ledger.Tx) error {
		discountID, err = treasury.CreateDiscountCode(tx, request.CapID, request.EventID, request.Code, request.Percent, request.MaxUses, request.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"discount_id": discountID}, nil
}

func (d *daemon) handleValidatorGrant(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		CapID     ref.ObjectID `cbor:"cap_id"`
		EventID   ref.ObjectID `cbor:"event_id"`
		Validator ref.Address  `cbor:"validator"`
		ExpiresAt int64        `cbor:"expires_at"`
	}](raw)
	if err != nil {
		return nil, err
	}

	var valCapID ref.ObjectID
	err = d.store.Execute(sender, nil, func(tx *ledger.Tx) error {
		valCapID, err = capability.GrantValidatorCap(tx, request.CapID, request.EventID, request.Validator, request.ExpiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"validator_cap": valCapID}, nil
}

func (d *daemon) handleLogRecords(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		FromSeq uint64 `cbor:"from_seq"`
		Limit   int    `cbor:"limit"`
	}](raw)
	if err != nil {
		return nil, err
	}
	if request.Limit <= 0 || request.Limit > 1000 {
		request.Limit = 1000
	}
	records, err := d.store.Records(ctx, request.FromSeq, request.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"records": records, "log_seq": d.store.LogSeq()}, nil
}

func (d *daemon) handleLogExport(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		FromSeq uint64 `cbor:"from_seq"`
	}](raw)
	if err != nil {
		return nil, err
	}
	var segment bytes.Buffer
	count, err := d.store.ExportSegment(ctx, &segment, request.FromSeq)
	if err != nil {
		return nil, err
	}
	return map[string]any{"segment": segment.Bytes(), "records": count}, nil
}

func (d *daemon) handleTicketValidate(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		ValidatorCap  ref.ObjectID `cbor:"validator_cap"`
		EventID       ref.ObjectID `cbor:"event_id"`
		TicketID      ref.ObjectID `cbor:"ticket_id"`
		QR            []byte       `cbor:"qr"`
		CoSignerToken []byte       `cbor:"co_signer_token"`
	}](raw)
	if err != nil {
		return nil, err
	}

	// The ticket and the attendee profile are owned by the holder;
	// the holder consents to the scan by presenting their token.
	holder, err := d.coSigner(request.CoSignerToken)
	if err != nil {
		return nil, err
	}
	profileID, err := d.profileOf(holder)
	if err != nil {
		return nil, err
	}

	return nil, d.store.ExecuteMultiAgent(sender, []ref.Address{holder}, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return ticket.ValidateTicket(tx, request.ValidatorCap, request.EventID, request.TicketID, profileID, request.QR)
	})
}

func (d *daemon) handleAttendanceMint(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		ValidatorCap ref.ObjectID `cbor:"validator_cap"`
		EventID      ref.ObjectID `cbor:"event_id"`
		TicketID     ref.ObjectID `cbor:"ticket_id"`
	}](raw)
	if err != nil {
		return nil, err
	}

	shared := []ref.ObjectID{d.genesis.AttendanceRegistry, request.EventID}
	var proofID ref.ObjectID
	err = d.store.Execute(sender, shared, func(tx *ledger.Tx) error {
		proofID, err = attendance.MintProof(tx, request.ValidatorCap, d.genesis.AttendanceRegistry, request.EventID, request.TicketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"proof_id": proofID}, nil
}

func (d *daemon) handleAttendanceBatch(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		ValidatorCap ref.ObjectID   `cbor:"validator_cap"`
		EventID      ref.ObjectID   `cbor:"event_id"`
		TicketIDs    []ref.ObjectID `cbor:"ticket_ids"`
	}](raw)
	if err != nil {
		return nil, err
	}

	shared := []ref.ObjectID{d.genesis.AttendanceRegistry, request.EventID}
	var proofIDs []ref.ObjectID
	err = d.store.Execute(sender, shared, func(tx *ledger.Tx) error {
		proofIDs, err = attendance.MintProofBatch(tx, request.ValidatorCap, d.genesis.AttendanceRegistry, request.EventID, request.TicketIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"proof_ids": proofIDs}, nil
}

func (d *daemon) handleAttendanceCheckout(ctx context.Context, sender ref.Address, raw []byte) (any, error) {
	request, err := decode[struct {
		ValidatorCap  ref.ObjectID `cbor:"validator_cap"`
		EventID       ref.ObjectID `cbor:"event_id"`
		ProofID       ref.ObjectID `cbor:"proof_id"`
		CoSignerToken []byte       `cbor:"co_signer_token"`
	}](raw)
	if err != nil {
		return nil, err
	}
	holder, err := d.coSigner(request.CoSignerToken)
	if err != nil {
		return nil, err
	}
	return nil, d.store.ExecuteMultiAgent(sender, []ref.Address{holder}, []ref.ObjectID{request.EventID}, func(tx *ledger.Tx) error {
		return attendance.CheckOut(tx, request.ValidatorCap, request.EventID, request.ProofID)
	})
}
