// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/turnstile-foundation/turnstile/lib/codec"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Record is one entry in the append-only log. Engines fill Kind,
// Objects, Addresses, and Amounts when they emit; the store assigns
// Seq, Timestamp, and Chain at commit. A record carries every field
// an external indexer needs to reconstruct attendee lists and
// financial history without reading live object state.
type Record struct {
	// Seq is the global, strictly increasing sequence number.
	// Assigned at commit; records within one transaction receive
	// consecutive numbers.
	Seq uint64 `cbor:"seq"`

	// Kind names the operation, dotted by engine: "event.created",
	// "ticket.minted", "treasury.withdrawal", ...
	Kind string `cbor:"kind"`

	// Timestamp is the transaction time in Unix seconds.
	Timestamp int64 `cbor:"timestamp"`

	// Objects lists the IDs of every object the operation touched or
	// created, most significant first.
	Objects []ref.ObjectID `cbor:"objects,omitempty"`

	// Addresses lists the relevant actor addresses (sender,
	// recipient, validator, ...), most significant first.
	Addresses []ref.Address `cbor:"addresses,omitempty"`

	// Amounts carries the operation's monetary fields by name
	// ("price", "fee", "organizer_amount", "refund", ...). Integer
	// currency units, matching the treasury's arithmetic exactly.
	Amounts map[string]uint64 `cbor:"amounts,omitempty"`

	// Chain is the hex BLAKE3 hash of the previous record's chain
	// hash concatenated with this record's canonical encoding
	// (computed with Chain empty). An indexer that replays the log
	// and arrives at a different chain value knows it has a gap or a
	// forgery.
	Chain string `cbor:"chain"`
}

// chainHash computes the chain value for a record given the previous
// chain hash. The record's own Chain field is excluded from the
// hashed encoding.
func chainHash(prev [32]byte, record Record) ([32]byte, error) {
	record.Chain = ""
	payload, err := codec.Marshal(record)
	if err != nil {
		return [32]byte{}, fmt.Errorf("ledger: encoding record for chaining: %w", err)
	}

	hasher := blake3.New()
	hasher.Write(prev[:])
	hasher.Write(payload)

	var sum [32]byte
	copy(sum[:], hasher.Sum(nil))
	return sum, nil
}

// VerifyChain replays the chain computation over a contiguous slice
// of records, starting from the chain value preceding the first
// record (all zeros at genesis). It returns an error at the first
// record whose sequence or chain hash does not line up.
func VerifyChain(prev [32]byte, records []Record) error {
	for i, record := range records {
		if i > 0 && record.Seq != records[i-1].Seq+1 {
			return fmt.Errorf("ledger: sequence gap: record %d follows %d", record.Seq, records[i-1].Seq)
		}
		want, err := chainHash(prev, record)
		if err != nil {
			return err
		}
		if record.Chain != hex.EncodeToString(want[:]) {
			return fmt.Errorf("ledger: chain mismatch at seq %d", record.Seq)
		}
		prev = want
	}
	return nil
}

// encodeRecord serializes a record for the log table and for
// exported segments.
func encodeRecord(record Record) ([]byte, error) {
	encoded, err := codec.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("ledger: encoding record %d: %w", record.Seq, err)
	}
	return encoded, nil
}

// decodeRecord is the inverse of encodeRecord.
func decodeRecord(data []byte) (Record, error) {
	var record Record
	if err := codec.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("ledger: decoding record: %w", err)
	}
	return record, nil
}

// decodeChain parses the hex chain string of a record back into the
// 32-byte form used as the next link's predecessor.
func decodeChain(chain string) ([32]byte, error) {
	var out [32]byte
	decoded, err := hex.DecodeString(chain)
	if err != nil {
		return out, fmt.Errorf("ledger: parsing chain hash: %w", err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("ledger: chain hash is %d bytes, want %d", len(decoded), len(out))
	}
	copy(out[:], decoded)
	return out, nil
}
