// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/turnstile-foundation/turnstile/lib/clock"
	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the filesystem path of the SQLite database backing the
	// ledger. The file is created if it does not exist. Required.
	Path string

	// Clock is the transaction time source. Defaults to the real
	// clock; tests inject a fake.
	Clock clock.Clock

	// Logger receives operational messages (open, close, commit
	// failures). Engines never log — the append-only record log is
	// the core's only output channel. If nil, logging is discarded.
	Logger *slog.Logger
}

// Store is the authoritative object store plus append-only log. All
// mutation goes through Execute; the read accessors (Get, InfoOf,
// List, Records) are safe for concurrent use and hold no capability —
// they are the surface the external read service consumes.
type Store struct {
	clock  clock.Clock
	logger *slog.Logger
	pool   *sqlitex.Pool

	// mu guards objects, seq, and chain. Held briefly during
	// lookups and for the whole of commit, which serializes commit
	// ordering globally; per-object serialization of shared writers
	// is handled by the lock table below, which is held for whole
	// transactions.
	mu      sync.Mutex
	objects map[ref.ObjectID]*object
	seq     uint64
	chain   [32]byte

	// lockMu guards the shared-object lock table.
	lockMu sync.Mutex
	locks  map[ref.ObjectID]*sync.Mutex
}

// Open opens (creating if necessary) the ledger database at
// cfg.Path, loads all object snapshots and the log head into memory,
// and returns a ready Store. The caller must Close it.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("ledger: Path is required")
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := openPool(cfg.Path)
	if err != nil {
		return nil, err
	}

	store := &Store{
		clock:   clk,
		logger:  logger,
		pool:    pool,
		objects: make(map[ref.ObjectID]*object),
		locks:   make(map[ref.ObjectID]*sync.Mutex),
	}

	if err := store.load(); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("ledger opened",
		"path", cfg.Path,
		"objects", len(store.objects),
		"log_seq", store.seq,
	)
	return store, nil
}

// Close closes the underlying database pool. In-flight transactions
// must have completed; Close does not wait for them.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Execute runs fn inside a new transaction for the given sender.
// sharedInputs declares every shared object the transaction may
// touch; the store locks them in sorted ID order before fn runs and
// releases them after commit or abort, so two transactions writing
// the same shared object always serialize and can never deadlock.
//
// If fn returns an error, nothing the transaction staged survives and
// Execute returns that error unchanged. If fn returns nil, the commit
// makes all staged effects durable and visible atomically.
func (s *Store) Execute(sender ref.Address, sharedInputs []ref.ObjectID, fn func(*Tx) error) error {
	return s.ExecuteMultiAgent(sender, nil, sharedInputs, fn)
}

// ExecuteMultiAgent is Execute for transactions authorized by more
// than one address. Owned objects held by the sender or by any
// co-signer may be taken. Ticket validation is the one flow that
// needs this: the validator sends the transaction presenting their
// capability while the attendee co-signs to authorize mutation of
// their ticket. The submitting layer is responsible for having
// actually collected every listed authorization.
func (s *Store) ExecuteMultiAgent(sender ref.Address, coSigners []ref.Address, sharedInputs []ref.ObjectID, fn func(*Tx) error) error {
	if sender.IsZero() {
		return fmt.Errorf("ledger: transaction needs a sender address")
	}

	inputs := dedupeSorted(sharedInputs)
	for _, id := range inputs {
		s.sharedLock(id).Lock()
	}
	defer func() {
		for i := len(inputs) - 1; i >= 0; i-- {
			s.sharedLock(inputs[i]).Unlock()
		}
	}()

	tx := &Tx{
		store:       s,
		sender:      sender,
		now:         s.clock.Now(),
		authorized:  map[ref.Address]struct{}{sender: {}},
		declared:    make(map[ref.ObjectID]struct{}, len(inputs)),
		taken:       make(map[ref.ObjectID]*staged),
		destroyed:   make(map[ref.ObjectID]struct{}),
		transferred: make(map[ref.ObjectID]ref.Address),
	}
	for _, coSigner := range coSigners {
		if !coSigner.IsZero() {
			tx.authorized[coSigner] = struct{}{}
		}
	}
	for _, id := range inputs {
		tx.declared[id] = struct{}{}
	}

	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

// sharedLock returns the lock for one shared object ID, creating it
// on first use. Lock entries are never removed; the set of shared
// objects (events, treasuries, pools, registries) grows slowly and
// a stale entry is a few dozen bytes.
func (s *Store) sharedLock(id ref.ObjectID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// lookup returns the committed entry for an object.
func (s *Store) lookup(id ref.ObjectID) (*object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	return obj, ok
}

// commit validates and applies a transaction's staged effects. It
// writes the SQLite transaction first; only after durable success
// does it touch the in-memory maps, so a storage failure aborts with
// no effect.
func (s *Store) commit(tx *Tx) error {
	if tx.done {
		return fmt.Errorf("ledger: transaction already committed")
	}
	tx.done = true

	s.mu.Lock()
	defer s.mu.Unlock()

	// Owned objects are not locked for the duration of the
	// transaction, so verify nothing moved underneath. Shared
	// objects were locked the whole time; their check cannot fail
	// but costs nothing.
	for id, st := range tx.taken {
		current, ok := s.objects[id]
		if !ok {
			return Abortf(CodeConflict, "object %s was destroyed by a concurrent transaction", id)
		}
		if current.info.Version != st.baseVersion {
			return Abortf(CodeConflict, "object %s moved from version %d to %d during the transaction", id, st.baseVersion, current.info.Version)
		}
	}

	changes, err := s.buildChanges(tx)
	if err != nil {
		return err
	}

	records, newChain, err := s.sequenceRecords(tx)
	if err != nil {
		return err
	}

	if err := s.persist(changes, records); err != nil {
		return fmt.Errorf("ledger: persisting transaction: %w", err)
	}

	for _, id := range changes.deleted {
		delete(s.objects, id)
	}
	for _, obj := range changes.upserted {
		s.objects[obj.info.ID] = obj
	}
	s.seq += uint64(len(records))
	s.chain = newChain

	return nil
}

// changeSet is the materialized output of one transaction: full
// object rows to insert-or-replace, and IDs to delete.
type changeSet struct {
	upserted []*object
	deleted  []ref.ObjectID
}

// buildChanges re-encodes every staged value into its committed form.
func (s *Store) buildChanges(tx *Tx) (*changeSet, error) {
	changes := &changeSet{}

	appendUpsert := func(st *staged, versionBump uint64) error {
		info := st.info
		info.Version = st.baseVersion + versionBump
		if newOwner, ok := tx.transferred[info.ID]; ok {
			info.Owner = newOwner
		}
		content, err := codec.Marshal(st.value)
		if err != nil {
			return fmt.Errorf("ledger: encoding %s object %s: %w", info.Kind, info.ID, err)
		}
		changes.upserted = append(changes.upserted, &object{info: info, content: content})
		return nil
	}

	for id, st := range tx.taken {
		if _, gone := tx.destroyed[id]; gone {
			changes.deleted = append(changes.deleted, id)
			continue
		}
		if err := appendUpsert(st, 1); err != nil {
			return nil, err
		}
	}
	for _, st := range tx.created {
		if _, gone := tx.destroyed[st.info.ID]; gone {
			// Created and destroyed in the same transaction:
			// the object never existed outside it.
			continue
		}
		if err := appendUpsert(st, 1); err != nil {
			return nil, err
		}
	}

	// Deterministic order for the SQLite writes.
	sort.Slice(changes.upserted, func(i, j int) bool {
		return changes.upserted[i].info.ID.Less(changes.upserted[j].info.ID)
	})
	sort.Slice(changes.deleted, func(i, j int) bool {
		return changes.deleted[i].Less(changes.deleted[j])
	})
	return changes, nil
}

// sequenceRecords assigns sequence numbers, timestamps, and chain
// hashes to the transaction's staged records.
func (s *Store) sequenceRecords(tx *Tx) ([]Record, [32]byte, error) {
	records := make([]Record, len(tx.records))
	chain := s.chain
	for i, record := range tx.records {
		record.Seq = s.seq + uint64(i) + 1
		record.Timestamp = tx.now.Unix()

		next, err := chainHash(chain, record)
		if err != nil {
			return nil, [32]byte{}, err
		}
		record.Chain = hex.EncodeToString(next[:])
		chain = next
		records[i] = record
	}
	return records, chain, nil
}

// dedupeSorted returns the input IDs sorted and with duplicates
// removed. Sorting fixes the global lock acquisition order.
func dedupeSorted(ids []ref.ObjectID) []ref.ObjectID {
	out := make([]ref.ObjectID, 0, len(ids))
	seen := make(map[ref.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Get decodes the committed content of an object into value. It is a
// read-only accessor for query surfaces; it requires no capability
// and stages nothing.
func (s *Store) Get(id ref.ObjectID, kind string, value any) error {
	obj, ok := s.lookup(id)
	if !ok {
		return Abortf(CodeUnknownObject, "object %s does not exist", id)
	}
	if kind != "" && obj.info.Kind != kind {
		return Abortf(CodeKindMismatch, "object %s is %q, not %q", id, obj.info.Kind, kind)
	}
	return codec.Unmarshal(obj.content, value)
}

// InfoOf returns the committed envelope of an object.
func (s *Store) InfoOf(id ref.ObjectID) (Info, error) {
	obj, ok := s.lookup(id)
	if !ok {
		return Info{}, Abortf(CodeUnknownObject, "object %s does not exist", id)
	}
	return obj.info, nil
}

// List returns the envelopes of all committed objects of one kind,
// sorted by ID for deterministic output.
func (s *Store) List(kind string) []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	var infos []Info
	for _, obj := range s.objects {
		if obj.info.Kind == kind {
			infos = append(infos, obj.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID.Less(infos[j].ID) })
	return infos
}

// LogSeq returns the sequence number of the most recent committed
// record, zero if the log is empty.
func (s *Store) LogSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
