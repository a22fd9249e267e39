// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Object kinds owned by this engine.
const (
	KindAdminCap     = "cap.admin"
	KindOrganizerCap = "cap.organizer"
	KindValidatorCap = "cap.validator"
	KindMultiSig     = "multisig"
)

// Abort codes 100-199.
const (
	// CodeNotSuperAdmin: minting an admin capability requires the
	// super tier; sub-tier admins cannot mint peers.
	CodeNotSuperAdmin ledger.Code = 100

	// CodeWrongEvent: the presented capability is scoped to a
	// different event.
	CodeWrongEvent ledger.Code = 101

	// CodePermissionDenied: the organizer capability lacks the
	// permission the operation requires.
	CodePermissionDenied ledger.Code = 102

	// CodeValidatorExpired: the validator capability's expiry is at
	// or before the transaction time.
	CodeValidatorExpired ledger.Code = 103

	// CodeBadThreshold: a multi-signature threshold outside
	// (0, organizer count].
	CodeBadThreshold ledger.Code = 104

	// CodeNotGroupMember: an approval from an address outside the
	// group's organizer set.
	CodeNotGroupMember ledger.Code = 105
)

// AdminLevel is the tier of an admin capability.
type AdminLevel uint8

const (
	// AdminSuper is the genesis tier. Only super admins mint new
	// admin capabilities.
	AdminSuper AdminLevel = iota + 1

	// AdminStandard is the working tier for platform operations.
	AdminStandard
)

// AdminCap authorizes platform-level operations.
type AdminCap struct {
	Level AdminLevel `cbor:"level"`
}

// Permissions is the per-event permission set carried by an organizer
// capability. The set is immutable once issued; delegation derives a
// new capability rather than mutating an existing one.
type Permissions struct {
	CanUpdate          bool `cbor:"can_update"`
	CanCancel          bool `cbor:"can_cancel"`
	CanApprove         bool `cbor:"can_approve"`
	CanWithdraw        bool `cbor:"can_withdraw"`
	CanGrantValidators bool `cbor:"can_grant_validators"`
}

// FullPermissions is the set issued to the creating organizer.
func FullPermissions() Permissions {
	return Permissions{
		CanUpdate:          true,
		CanCancel:          true,
		CanApprove:         true,
		CanWithdraw:        true,
		CanGrantValidators: true,
	}
}

// Permission names one entry of the permission set, for verification
// call sites and error messages.
type Permission uint8

const (
	PermUpdate Permission = iota + 1
	PermCancel
	PermApprove
	PermWithdraw
	PermGrantValidators
)

// String returns the permission's wire name.
func (p Permission) String() string {
	switch p {
	case PermUpdate:
		return "update"
	case PermCancel:
		return "cancel"
	case PermApprove:
		return "approve"
	case PermWithdraw:
		return "withdraw"
	case PermGrantValidators:
		return "grant-validators"
	default:
		return "invalid"
	}
}

// Has reports whether the set includes the permission.
func (ps Permissions) Has(p Permission) bool {
	switch p {
	case PermUpdate:
		return ps.CanUpdate
	case PermCancel:
		return ps.CanCancel
	case PermApprove:
		return ps.CanApprove
	case PermWithdraw:
		return ps.CanWithdraw
	case PermGrantValidators:
		return ps.CanGrantValidators
	default:
		return false
	}
}

// OrganizerCap authorizes organizer operations on one event.
type OrganizerCap struct {
	EventID     ref.ObjectID `cbor:"event_id"`
	Permissions Permissions  `cbor:"permissions"`
}

// ValidatorCap authorizes ticket validation and attendance proof
// minting for one event. ExpiresAt is Unix seconds; zero means no
// expiry.
type ValidatorCap struct {
	EventID   ref.ObjectID `cbor:"event_id"`
	Validator ref.Address  `cbor:"validator"`
	IssuedBy  ref.Address  `cbor:"issued_by"`
	ExpiresAt int64        `cbor:"expires_at,omitempty"`
}

// IssueGenesisAdmin creates the first, super-tier admin capability.
// Engine-internal: only the genesis bootstrap calls it.
func IssueGenesisAdmin(tx *ledger.Tx, _ enginegate.Key, owner ref.Address) (ref.ObjectID, error) {
	id, err := tx.Create(KindAdminCap, ledger.ModeOwned, owner, &AdminCap{Level: AdminSuper})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.admin_issued",
		Objects:   []ref.ObjectID{id},
		Addresses: []ref.Address{owner},
	})
	return id, nil
}

// IssueAdminCap mints a new admin capability. The presented
// capability must be super-tier; standard admins cannot mint peers.
func IssueAdminCap(tx *ledger.Tx, presentedCapID ref.ObjectID, recipient ref.Address, level AdminLevel) (ref.ObjectID, error) {
	var presented AdminCap
	if err := takePresented(tx, presentedCapID, KindAdminCap, &presented); err != nil {
		return ref.ObjectID{}, err
	}
	if presented.Level != AdminSuper {
		return ref.ObjectID{}, ledger.Abortf(CodeNotSuperAdmin, "admin capability %s is not super-tier", presentedCapID)
	}

	id, err := tx.Create(KindAdminCap, ledger.ModeOwned, recipient, &AdminCap{Level: level})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.admin_issued",
		Objects:   []ref.ObjectID{id, presentedCapID},
		Addresses: []ref.Address{recipient, tx.Sender()},
	})
	return id, nil
}

// VerifyAdmin checks that the sender presents a live admin capability.
func VerifyAdmin(tx *ledger.Tx, capID ref.ObjectID) (AdminCap, error) {
	var c AdminCap
	if err := takePresented(tx, capID, KindAdminCap, &c); err != nil {
		return AdminCap{}, err
	}
	return c, nil
}

// IssueOrganizerCap creates the full-permission organizer capability
// for a freshly created event. Engine-internal: the event lifecycle
// engine is the only caller; end users never mint organizer
// capabilities directly.
func IssueOrganizerCap(tx *ledger.Tx, _ enginegate.Key, eventID ref.ObjectID, owner ref.Address) (ref.ObjectID, error) {
	id, err := tx.Create(KindOrganizerCap, ledger.ModeOwned, owner, &OrganizerCap{
		EventID:     eventID,
		Permissions: FullPermissions(),
	})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.organizer_issued",
		Objects:   []ref.ObjectID{id, eventID},
		Addresses: []ref.Address{owner},
	})
	return id, nil
}

// CreateLimitedCap derives a new organizer capability for the same
// event with the given permission set, owned by recipient. The subset
// is NOT checked against the original's permissions — see the package
// comment; this mirrors the source system exactly.
func CreateLimitedCap(tx *ledger.Tx, originalCapID ref.ObjectID, perms Permissions, recipient ref.Address) (ref.ObjectID, error) {
	var original OrganizerCap
	if err := takePresented(tx, originalCapID, KindOrganizerCap, &original); err != nil {
		return ref.ObjectID{}, err
	}

	id, err := tx.Create(KindOrganizerCap, ledger.ModeOwned, recipient, &OrganizerCap{
		EventID:     original.EventID,
		Permissions: perms,
	})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.organizer_delegated",
		Objects:   []ref.ObjectID{id, originalCapID, original.EventID},
		Addresses: []ref.Address{recipient, tx.Sender()},
	})
	return id, nil
}

// VerifyOrganizer checks that the sender presents an organizer
// capability scoped to eventID carrying the needed permission, and
// returns it. Any mismatch aborts the transaction.
func VerifyOrganizer(tx *ledger.Tx, capID, eventID ref.ObjectID, need Permission) (OrganizerCap, error) {
	var c OrganizerCap
	if err := takePresented(tx, capID, KindOrganizerCap, &c); err != nil {
		return OrganizerCap{}, err
	}
	if c.EventID != eventID {
		return OrganizerCap{}, ledger.Abortf(CodeWrongEvent, "organizer capability %s is for event %s, not %s", capID, c.EventID, eventID)
	}
	if !c.Permissions.Has(need) {
		return OrganizerCap{}, ledger.Abortf(CodePermissionDenied, "organizer capability %s lacks %s permission", capID, need)
	}
	return c, nil
}

// GrantValidatorCap issues a validator capability for an event. The
// sender must present an organizer capability with the
// grant-validators permission. expiresAt is Unix seconds, zero for no
// expiry; an expiry at or before the transaction time is rejected
// outright rather than minting a born-dead capability.
func GrantValidatorCap(tx *ledger.Tx, orgCapID, eventID ref.ObjectID, validator ref.Address, expiresAt int64) (ref.ObjectID, error) {
	if _, err := VerifyOrganizer(tx, orgCapID, eventID, PermGrantValidators); err != nil {
		return ref.ObjectID{}, err
	}
	if expiresAt != 0 && expiresAt <= tx.Now().Unix() {
		return ref.ObjectID{}, ledger.Abortf(CodeValidatorExpired, "validator capability expiry %d is not in the future", expiresAt)
	}

	id, err := tx.Create(KindValidatorCap, ledger.ModeOwned, validator, &ValidatorCap{
		EventID:   eventID,
		Validator: validator,
		IssuedBy:  tx.Sender(),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return ref.ObjectID{}, err
	}
	tx.Emit(ledger.Record{
		Kind:      "capability.validator_granted",
		Objects:   []ref.ObjectID{id, eventID},
		Addresses: []ref.Address{validator, tx.Sender()},
	})
	return id, nil
}

// VerifyValidator checks that the sender presents a validator
// capability scoped to eventID that has not expired at the
// transaction time. Expiry is evaluated on every call, never cached.
func VerifyValidator(tx *ledger.Tx, capID, eventID ref.ObjectID) (ValidatorCap, error) {
	var c ValidatorCap
	if err := takePresented(tx, capID, KindValidatorCap, &c); err != nil {
		return ValidatorCap{}, err
	}
	if c.EventID != eventID {
		return ValidatorCap{}, ledger.Abortf(CodeWrongEvent, "validator capability %s is for event %s, not %s", capID, c.EventID, eventID)
	}
	if c.ExpiresAt != 0 && tx.Now().Unix() >= c.ExpiresAt {
		return ValidatorCap{}, ledger.Abortf(CodeValidatorExpired, "validator capability %s expired at %d", capID, c.ExpiresAt)
	}
	return c, nil
}

// takePresented asserts the capability object is held by an address
// that authorized this transaction and decodes it. Presentation is
// read-only: verifying a capability does not bump its version.
func takePresented(tx *ledger.Tx, id ref.ObjectID, kind string, value any) error {
	info, err := tx.Info(id)
	if err != nil {
		return err
	}
	if info.Kind != kind {
		return ledger.Abortf(ledger.CodeKindMismatch, "object %s is %q, not %q", id, info.Kind, kind)
	}
	if info.Owner != tx.Sender() {
		return ledger.Abortf(ledger.CodeNotOwner, "capability %s is not held by the sender", id)
	}
	return tx.Read(id, kind, value)
}
