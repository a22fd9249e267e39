// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package accesstoken

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// Audiences a token can be scoped to. A token minted for the scanner
// surface cannot be replayed against the wallet surface.
const (
	AudienceWallet  = "wallet"
	AudienceScanner = "scanner"
	AudienceAdmin   = "admin"
)

// Token is the CBOR-encoded payload of an access token.
type Token struct {
	// Subject is the ledger address of the principal the token was
	// minted for. Operations submitted with this token run with
	// Subject as the transaction sender.
	Subject ref.Address `cbor:"1,keyasint"`

	// Audience is the service surface this token is scoped to
	// (AudienceWallet, AudienceScanner, AudienceAdmin).
	Audience string `cbor:"2,keyasint"`

	// Scopes are operation patterns (glob syntax) the subject may
	// invoke, e.g. "ticket.*" or "event.read". An empty scope list
	// authorizes nothing.
	Scopes []string `cbor:"3,keyasint,omitempty"`

	// ID is a unique token identifier. Logged with every request
	// the token authorizes.
	ID string `cbor:"4,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the service
	// minted this token.
	IssuedAt int64 `cbor:"5,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) after which this
	// token is no longer valid.
	ExpiresAt int64 `cbor:"6,keyasint"`
}

// Errors returned by Verify and related functions.
var (
	ErrTokenTooShort    = errors.New("accesstoken: token too short for signature")
	ErrInvalidSignature = errors.New("accesstoken: invalid Ed25519 signature")
	ErrTokenExpired     = errors.New("accesstoken: token has expired")
	ErrAudienceMismatch = errors.New("accesstoken: audience does not match")
)

// NewID returns a fresh token identifier.
func NewID() string {
	return uuid.NewString()
}

// Mint signs a Token with the service's private key and returns the
// raw wire-format bytes: CBOR-encoded payload followed by the 64-byte
// Ed25519 signature.
func Mint(privateKey ed25519.PrivateKey, token *Token) ([]byte, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("accesstoken: encoding token payload: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// Verify splits the raw token bytes, verifies the Ed25519 signature,
// CBOR-decodes the payload, and checks expiry. Returns the decoded
// Token on success.
//
// The caller should additionally check the Audience field against the
// surface handling the request.
func Verify(publicKey ed25519.PublicKey, tokenBytes []byte) (*Token, error) {
	return VerifyAt(publicKey, tokenBytes, time.Now())
}

// VerifyAt is like Verify but accepts an explicit time for expiry
// checks. This supports deterministic testing.
func VerifyAt(publicKey ed25519.PublicKey, tokenBytes []byte, now time.Time) (*Token, error) {
	if len(tokenBytes) <= signatureSize {
		return nil, ErrTokenTooShort
	}

	splitPoint := len(tokenBytes) - signatureSize
	payload := tokenBytes[:splitPoint]
	signature := tokenBytes[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("accesstoken: decoding token payload: %w", err)
	}

	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

// VerifyForAudience combines Verify with an audience check. This is
// the standard verification path for request handlers: verify
// signature, check expiry, and confirm the token is scoped to this
// surface.
func VerifyForAudience(publicKey ed25519.PublicKey, tokenBytes []byte, expectedAudience string) (*Token, error) {
	return VerifyForAudienceAt(publicKey, tokenBytes, expectedAudience, time.Now())
}

// VerifyForAudienceAt is like VerifyForAudience but accepts an
// explicit time.
func VerifyForAudienceAt(publicKey ed25519.PublicKey, tokenBytes []byte, expectedAudience string, now time.Time) (*Token, error) {
	token, err := VerifyAt(publicKey, tokenBytes, now)
	if err != nil {
		return nil, err
	}

	if token.Audience != expectedAudience {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrAudienceMismatch, token.Audience, expectedAudience)
	}

	return token, nil
}

// ScopesAllow reports whether any of the token's scope patterns
// matches the named operation. Patterns use path.Match glob syntax
// with "." as a literal, so "ticket.*" covers "ticket.mint" and
// "ticket.refund" but not "event.publish".
func ScopesAllow(scopes []string, operation string) bool {
	for _, pattern := range scopes {
		if matched, err := path.Match(pattern, operation); err == nil && matched {
			return true
		}
	}
	return false
}
