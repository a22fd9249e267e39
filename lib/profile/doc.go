// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package profile implements user identity, reputation, and
// achievement badges.
//
// Each address has at most one UserProfile, an owned object. The
// one-per-address rule is enforced through the ProfileRegistry, a
// shared singleton mapping address to profile ID; profile creation
// declares the registry and aborts on a duplicate entry.
//
// Reputation is a saturating counter in [0, MaxReputation]. Deltas
// larger than the current score floor at zero rather than wrapping.
// Rating averages use incremental integer arithmetic:
// new = (old*count + rating) / (count+1), truncating toward zero.
// The precision loss at high counts is accepted; inputs are bounded
// to [0, MaxRating].
//
// Badges are minted when a stat counter lands exactly on a milestone.
// Counters only ever increment by one, so the equality check fires
// exactly once per milestone with no mint-tracking bookkeeping.
//
// Abort codes: 200-299.
package profile
