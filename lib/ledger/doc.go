// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger implements the shared object store and the
// all-or-nothing transaction model that every engine runs inside.
//
// # Objects
//
// Every entity — events, tickets, treasuries, capabilities, profiles,
// attendance proofs — is an object: an envelope (ID, kind, ownership
// mode, owner, version) around a CBOR-encoded content value. Owned
// objects can be mutated only by a transaction whose sender is the
// current owner. Shared objects can be referenced by any transaction,
// but the store serializes conflicting writers per object, so each
// shared object observes a single linear history.
//
// # Transactions
//
// Store.Execute runs a function against a transaction. All reads see
// committed state; all writes are staged on deep copies and become
// visible only if the function returns nil. Any error aborts the
// whole transaction: no staged write, created object, destruction,
// transfer, or log record survives. There is no partial effect and no
// compensation — retry is the caller's job.
//
// Shared objects a transaction intends to touch are declared up
// front; the store locks them in sorted ID order for the duration of
// the transaction, which serializes conflicting writers without
// deadlock. Owned objects need no locks by construction (a single
// holder authorizes access); the store still verifies at commit that
// no taken owned object changed underneath, and aborts on conflict.
//
// # Failure codes
//
// Aborts carry a numeric Code. Each engine owns a non-overlapping
// range; the store's own codes occupy 1-99. Callers match codes with
// CodeOf rather than string comparison.
//
// # Log
//
// Every state-changing operation emits one or more Records. Records
// are append-only, strictly sequenced, and chained with a BLAKE3 hash
// so external indexers can verify they missed nothing. The log is the
// only channel by which off-ledger consumers (the read service, the
// attendee indexer) learn of state changes.
//
// # Persistence
//
// Committed state is durable in a single SQLite database: one table
// of object snapshots, one table of log records. A commit writes both
// in one IMMEDIATE transaction, then applies the same changes to the
// in-memory authoritative maps. Tests run against a database in a
// temporary directory.
package ledger
