// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the Unix-socket protocol the Turnstile
// service speaks to wallets, organizer tooling, and door-scan
// devices. Requests and responses are single CBOR values; each
// connection carries exactly one request-response cycle.
//
// The server side (SocketServer) routes requests by their "action"
// field to registered handlers. Handlers that mutate the ledger are
// wrapped with Authenticated, which verifies the request's access
// token and resolves the sender address before the handler runs.
//
// The client side (ServiceClient) is used by the turnstile CLI and by
// integration tests.
package service
