// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"github.com/turnstile-foundation/turnstile/lib/accesstoken"
	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// AuthConfig is the token verification configuration shared by all
// authenticated actions on a server.
type AuthConfig struct {
	// PublicKey verifies access token signatures.
	PublicKey ed25519.PublicKey

	// Audience is the surface this server serves (accesstoken
	// audience constants). Tokens minted for other surfaces are
	// rejected.
	Audience string

	// Clock is the time source for token expiry checks.
	Clock clock.Clock
}

// AuthenticatedFunc is an ActionFunc that additionally receives the
// verified token subject. The subject becomes the transaction sender
// for ledger operations.
type AuthenticatedFunc func(ctx context.Context, subject ref.Address, raw []byte) (any, error)

// Authenticated wraps a handler with access token verification. The
// request must carry a "token" field holding the raw minted token
// bytes. The token's signature, expiry, and audience are checked, and
// its scopes must cover the given operation name. On success the
// handler runs with the token's subject address.
func Authenticated(auth *AuthConfig, operation string, handler AuthenticatedFunc) ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		var fields struct {
			Token []byte `cbor:"token"`
		}
		if err := codec.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		if len(fields.Token) == 0 {
			return nil, fmt.Errorf("missing required field: token")
		}

		token, err := accesstoken.VerifyForAudienceAt(auth.PublicKey, fields.Token, auth.Audience, auth.Clock.Now())
		if err != nil {
			return nil, err
		}
		if !accesstoken.ScopesAllow(token.Scopes, operation) {
			return nil, fmt.Errorf("token %s does not authorize %q", token.ID, operation)
		}

		return handler(ctx, token.Subject, raw)
	}
}
