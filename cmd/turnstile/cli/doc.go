// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree, flag handling, and output
// helpers for the turnstile command line tool. Commands talk to a
// running turnstile-service over its Unix socket; the cli package
// itself holds no ledger state.
package cli
