// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package enginegate provides the key type that marks an engine
// function as callable only from inside this module.
//
// Several operations must exist for engines to call each other but
// must never be reachable by external callers: registering an
// attendee (ticket engine → event engine), crediting revenue (ticket
// engine → treasury), issuing the organizer capability at event
// creation, incrementing profile stats. These functions take a Key
// parameter. Because this package lives under internal/, no code
// outside the module can import it, so no external caller can ever
// produce a Key — the Go import boundary does the work a runtime
// visibility modifier would do elsewhere.
package enginegate

// Key proves the caller is another engine in this module. The zero
// value from New is the only value; the type exists purely for the
// compile-time reachability argument above.
type Key struct {
	_ struct{}
}

// New returns an engine key.
func New() Key { return Key{} }
