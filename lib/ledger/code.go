// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"errors"
	"fmt"
)

// Code is a numeric abort reason. Every rejected transaction surfaces
// exactly one Code to the submitting layer.
//
// Ranges are non-overlapping per engine:
//
//	  1- 99  ledger infrastructure (this package)
//	100-199  capability registry
//	200-299  profile and reputation
//	300-399  treasury and payments
//	400-499  event lifecycle
//	500-599  ticket engine
//	600-699  attendance proofs
type Code uint32

// Ledger infrastructure codes.
const (
	// CodeUnknownObject: the referenced object ID does not exist (or
	// was destroyed by an earlier committed transaction).
	CodeUnknownObject Code = 1

	// CodeUndeclaredShared: a shared object was accessed without
	// being declared in the transaction's input set. Locking is
	// two-phase; late acquisition would reintroduce deadlock.
	CodeUndeclaredShared Code = 2

	// CodeNotOwner: an owned object was presented by a sender who is
	// not its current owner.
	CodeNotOwner Code = 3

	// CodeKindMismatch: the object exists but is not of the kind the
	// caller asked for.
	CodeKindMismatch Code = 4

	// CodeSoulbound: a transfer was attempted on a non-transferable
	// object.
	CodeSoulbound Code = 5

	// CodeConflict: a taken owned object was modified by a
	// concurrently committed transaction. Resubmit against current
	// state.
	CodeConflict Code = 6

	// CodeNotTaken: Destroy or Transfer on an object the transaction
	// never took. Taking is how a transaction proves the holder
	// authorized the mutation.
	CodeNotTaken Code = 7
)

// Abort is the error type carried by every rejected transaction. The
// enclosing Store.Execute call returns it unchanged after rolling
// back all staged effects.
type Abort struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (a *Abort) Error() string {
	return fmt.Sprintf("abort(%d): %s", a.Code, a.Message)
}

// Abortf constructs an Abort with a formatted message.
func Abortf(code Code, format string, args ...any) error {
	return &Abort{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the abort Code from an error chain. The second
// return is false if the error is not an Abort (infrastructure
// failures such as a full disk are ordinary errors, not aborts).
func CodeOf(err error) (Code, bool) {
	var abort *Abort
	if errors.As(err, &abort) {
		return abort.Code, true
	}
	return 0, false
}
