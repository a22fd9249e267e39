// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package accesstoken implements the signed bearer tokens the
// Turnstile service hands to wallets and door-scan devices. A token
// is a CBOR payload (subject address, audience, scopes, expiry)
// followed by a 64-byte Ed25519 signature from the service signing
// key. Verification is stateless: any holder of the public key can
// check a token without a ledger round trip.
package accesstoken
