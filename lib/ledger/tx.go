// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"time"

	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Tx is one all-or-nothing unit of work. A Tx is handed to the
// function passed to Store.Execute and must not escape it. It is not
// safe for concurrent use; a transaction is a single logical thread
// of execution by design.
//
// All mutating accessors stage their effects on deep copies. Nothing
// the Tx does is visible to other transactions, or durable, until the
// executed function returns nil and the commit succeeds.
type Tx struct {
	store  *Store
	sender ref.Address
	now    time.Time

	// authorized holds the sender plus any co-signers. Owned objects
	// belonging to any of these addresses may be taken.
	authorized map[ref.Address]struct{}

	// declared is the set of shared objects locked for this
	// transaction. Access to a shared object outside this set
	// aborts: the lock order was fixed at Execute time.
	declared map[ref.ObjectID]struct{}

	// taken maps object ID to the staged mutable copy. Commit
	// re-encodes each value and writes it back as a new version.
	taken map[ref.ObjectID]*staged

	// created holds objects minted by this transaction, in creation
	// order (creation order is observable through the log).
	created []*staged

	// destroyed marks taken objects for deletion at commit.
	destroyed map[ref.ObjectID]struct{}

	// transferred maps taken owned objects to their new owner.
	transferred map[ref.ObjectID]ref.Address

	// records are the staged log entries, in emission order.
	records []Record

	done bool
}

// staged is a mutable working copy of one object.
type staged struct {
	info Info
	// value is the caller's decoded content struct. Commit
	// re-encodes it, so mutations made through the caller's pointer
	// are captured without an explicit write-back call.
	value any
	// baseVersion is the committed version this copy was taken
	// from. Zero for created objects. Commit verifies owned objects
	// still carry this version and aborts on conflict.
	baseVersion uint64
}

// Sender returns the address that authorized this transaction.
func (tx *Tx) Sender() ref.Address { return tx.sender }

// Now returns the transaction timestamp. It is captured once when the
// transaction starts; every temporal rule inside one transaction sees
// the same instant.
func (tx *Tx) Now() time.Time { return tx.now }

// Take stages a mutable copy of an object. The content is decoded
// into value, which must be a pointer; mutations made through that
// pointer are committed as the object's next version when the
// transaction commits.
//
// Owned objects may be taken only when their owner authorized the
// transaction (as sender or co-signer). Shared objects must have been
// declared in the Execute input set.
func (tx *Tx) Take(id ref.ObjectID, kind string, value any) error {
	obj, err := tx.resolve(id, kind)
	if err != nil {
		return err
	}

	if obj.info.Mode == ModeOwned {
		if _, ok := tx.authorized[obj.info.Owner]; !ok {
			return Abortf(CodeNotOwner, "object %s is owned by %s, which did not authorize this transaction", id, obj.info.Owner)
		}
	}

	if err := codec.Unmarshal(obj.content, value); err != nil {
		return fmt.Errorf("ledger: decoding %s object %s: %w", kind, id, err)
	}

	tx.taken[id] = &staged{
		info:        obj.info,
		value:       value,
		baseVersion: obj.info.Version,
	}
	return nil
}

// Read decodes an object's content into value without staging a
// write-back. Read does not require ownership: read-only access
// neither consumes nor contends for an object. Engines that must not
// mutate what they inspect (attendance proofs reading tickets) use
// Read so a version bump can never leak from them.
func (tx *Tx) Read(id ref.ObjectID, kind string, value any) error {
	obj, err := tx.resolve(id, kind)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(obj.content, value); err != nil {
		return fmt.Errorf("ledger: decoding %s object %s: %w", kind, id, err)
	}
	return nil
}

// Info returns the envelope of an object visible to this transaction,
// including objects created earlier in the same transaction.
func (tx *Tx) Info(id ref.ObjectID) (Info, error) {
	obj, err := tx.resolve(id, "")
	if err != nil {
		return Info{}, err
	}
	return obj.info, nil
}

// resolve finds an object by ID, looking first at this transaction's
// staged creations and takes, then at committed store state. An empty
// kind skips the kind check. Destroyed objects are gone even within
// the destroying transaction.
func (tx *Tx) resolve(id ref.ObjectID, kind string) (*object, error) {
	if _, gone := tx.destroyed[id]; gone {
		return nil, Abortf(CodeUnknownObject, "object %s was destroyed in this transaction", id)
	}

	if st, ok := tx.taken[id]; ok {
		return tx.stagedAsObject(st, kind)
	}
	for _, st := range tx.created {
		if st.info.ID == id {
			return tx.stagedAsObject(st, kind)
		}
	}

	obj, ok := tx.store.lookup(id)
	if !ok {
		return nil, Abortf(CodeUnknownObject, "object %s does not exist", id)
	}
	if obj.info.Mode == ModeShared {
		if _, ok := tx.declared[id]; !ok {
			return nil, Abortf(CodeUndeclaredShared, "shared object %s was not declared as a transaction input", id)
		}
	}
	if kind != "" && obj.info.Kind != kind {
		return nil, Abortf(CodeKindMismatch, "object %s is %q, not %q", id, obj.info.Kind, kind)
	}
	return obj, nil
}

// stagedAsObject re-encodes a staged value so repeated accesses within
// one transaction observe earlier staged mutations.
func (tx *Tx) stagedAsObject(st *staged, kind string) (*object, error) {
	if kind != "" && st.info.Kind != kind {
		return nil, Abortf(CodeKindMismatch, "object %s is %q, not %q", st.info.ID, st.info.Kind, kind)
	}
	content, err := codec.Marshal(st.value)
	if err != nil {
		return nil, fmt.Errorf("ledger: re-encoding staged object %s: %w", st.info.ID, err)
	}
	return &object{info: st.info, content: content}, nil
}

// Create stages a new owned or shared object and returns its ID. For
// shared objects the owner must be the zero Address. The object is
// visible to subsequent accesses within this transaction.
func (tx *Tx) Create(kind string, mode Mode, owner ref.Address, value any) (ref.ObjectID, error) {
	return tx.create(kind, mode, owner, false, value)
}

// CreateSoulbound stages a new owned object that can never be
// transferred. Used for attendance proofs; the restriction is
// enforced by the ledger for the object's entire life.
func (tx *Tx) CreateSoulbound(kind string, owner ref.Address, value any) (ref.ObjectID, error) {
	return tx.create(kind, ModeOwned, owner, true, value)
}

func (tx *Tx) create(kind string, mode Mode, owner ref.Address, soulbound bool, value any) (ref.ObjectID, error) {
	switch mode {
	case ModeOwned:
		if owner.IsZero() {
			return ref.ObjectID{}, fmt.Errorf("ledger: owned %s object needs an owner", kind)
		}
	case ModeShared:
		if !owner.IsZero() {
			return ref.ObjectID{}, fmt.Errorf("ledger: shared %s object cannot have an owner", kind)
		}
	default:
		return ref.ObjectID{}, fmt.Errorf("ledger: invalid mode %d for %s object", mode, kind)
	}

	id := ref.NewObjectID()
	tx.created = append(tx.created, &staged{
		info: Info{
			ID:        id,
			Kind:      kind,
			Mode:      mode,
			Owner:     owner,
			Soulbound: soulbound,
			Version:   1,
		},
		value: value,
	})
	return id, nil
}

// Transfer moves a taken owned object to a new owner. The object must
// have been taken earlier in this transaction (taking proves the
// current holder authorized it). Soulbound objects never transfer.
func (tx *Tx) Transfer(id ref.ObjectID, newOwner ref.Address) error {
	st, err := tx.mutableStaged(id)
	if err != nil {
		return err
	}
	if st.info.Mode != ModeOwned {
		return Abortf(CodeNotOwner, "shared object %s cannot be transferred", id)
	}
	if st.info.Soulbound {
		return Abortf(CodeSoulbound, "object %s is soulbound and can never be transferred", id)
	}
	if newOwner.IsZero() {
		return fmt.Errorf("ledger: transfer of %s needs a recipient", id)
	}
	tx.transferred[id] = newOwner
	return nil
}

// Destroy removes a taken owned object from the ledger at commit.
// Destruction is terminal: the ID is never reused and later accesses
// abort with CodeUnknownObject. Engines sequence Destroy last so any
// earlier abort leaves the asset intact.
func (tx *Tx) Destroy(id ref.ObjectID) error {
	st, err := tx.mutableStaged(id)
	if err != nil {
		return err
	}
	if st.info.Mode != ModeOwned {
		return Abortf(CodeNotOwner, "shared object %s cannot be destroyed", id)
	}
	tx.destroyed[id] = struct{}{}
	return nil
}

// mutableStaged returns the staged entry for an object this
// transaction has taken or created.
func (tx *Tx) mutableStaged(id ref.ObjectID) (*staged, error) {
	if st, ok := tx.taken[id]; ok {
		return st, nil
	}
	for _, st := range tx.created {
		if st.info.ID == id {
			return st, nil
		}
	}
	return nil, Abortf(CodeNotTaken, "object %s was not taken by this transaction", id)
}

// Emit stages a log record. The store assigns Seq, Timestamp, and
// Chain at commit; whatever the engine put in those fields is
// overwritten.
func (tx *Tx) Emit(record Record) {
	tx.records = append(tx.records, record)
}
