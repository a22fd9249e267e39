// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"slices"

	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// MultiSigGroup collects approvals from a fixed organizer set toward
// a threshold. The group is a shared object so that each organizer
// can record an approval from their own transaction.
type MultiSigGroup struct {
	EventID    ref.ObjectID  `cbor:"event_id"`
	Organizers []ref.Address `cbor:"organizers"`
	Threshold  int           `cbor:"threshold"`
	Approvals  []ref.Address `cbor:"approvals,omitempty"`
}

// CreateMultiSigGroup creates an approval group for an event. The
// sender must present an organizer capability with the approve
// permission. The threshold must be in (0, len(organizers)].
func CreateMultiSigGroup(tx *ledger.Tx, orgCapID, eventID ref.ObjectID, organizers []ref.Address, threshold int) (ref.ObjectID, error) {
	if _, err := VerifyOrganizer(tx, orgCapID, eventID, PermApprove); err != nil {
		return ref.ObjectID{}, err
	}
	members := slices.Clone(organizers)
	slices.SortFunc(members, func(a, b ref.Address) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	members = slices.Compact(members)

	// Validate against the deduplicated set; a duplicate-padded list
	// must not admit a threshold the real membership can never meet.
	if threshold <= 0 || threshold > len(members) {
		return ref.ObjectID{}, ledger.Abortf(CodeBadThreshold, "threshold %d outside (0, %d]", threshold, len(members))
	}

	id, err := tx.Create(KindMultiSig, ledger.ModeShared, ref.Address{}, &MultiSigGroup{
		EventID:    eventID,
		Organizers: members,
		Threshold:  threshold,
	})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.multisig_created",
		Objects:   []ref.ObjectID{id, eventID},
		Addresses: members,
	})
	return id, nil
}

// AddApproval records the sender's approval on the group. The group
// must be declared as a shared input of the transaction. Approving
// twice is a no-op, not an error.
func AddApproval(tx *ledger.Tx, groupID ref.ObjectID) error {
	var group MultiSigGroup
	if err := tx.Take(groupID, KindMultiSig, &group); err != nil {
		return err
	}
	sender := tx.Sender()
	if !slices.Contains(group.Organizers, sender) {
		return ledger.Abortf(CodeNotGroupMember, "%s is not an organizer of group %s", sender, groupID)
	}
	if slices.Contains(group.Approvals, sender) {
		return nil
	}
	group.Approvals = append(group.Approvals, sender)
	tx.Emit(ledger.Record{
		Kind:      "capability.approval_added",
		Objects:   []ref.ObjectID{groupID},
		Addresses: []ref.Address{sender},
		Amounts:   map[string]uint64{"approvals": uint64(len(group.Approvals))},
	})
	return nil
}

// HasSufficientApprovals reports whether the group has met its
// threshold. Pure predicate over the group's current state.
func (g *MultiSigGroup) HasSufficientApprovals() bool {
	return len(g.Approvals) >= g.Threshold
}
