// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements the capability registry: the owned
// ledger objects whose possession authorizes privileged operations,
// and the verification functions every other engine calls before
// acting.
//
// Capabilities are unforgeable because they are owned objects — only
// a transaction authorized by the holder can present one, and only
// this module's engines can mint them (issuance functions take an
// enginegate.Key or require a higher capability). Verification never
// caches: validator expiry is re-checked against the transaction
// timestamp on every single use.
//
// One deliberate oddity is preserved from the source system:
// CreateLimitedCap derives a capability with an arbitrary permission
// subset and does not check that the subset is contained in the
// original's permissions. Holding any organizer capability for an
// event is treated as sufficient to delegate any permission on that
// event. Do not "fix" this without a spec-level decision; callers
// that care must inspect the issued permissions.
//
// Abort codes: 100-199.
package capability
