// Copyright 2026 The Turnstile Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"github.com/turnstile-foundation/turnstile/internal/enginegate"
	"github.com/turnstile-foundation/turnstile/lib/ledger"
	"github.com/turnstile-foundation/turnstile/lib/ref"
)

// Object kinds owned by this engine.
const (
	KindProfile  = "profile"
	KindRegistry = "profile.registry"
	KindBadge    = "badge"
)

// Abort codes 200-299.
const (
	// CodeProfileExists: the address already has a profile.
	CodeProfileExists ledger.Code = 200

	// CodeNoProfile: registry lookup found no profile for the address.
	CodeNoProfile ledger.Code = 201

	// CodeRatingRange: a rating outside [0, MaxRating].
	CodeRatingRange ledger.Code = 202
)

// Reputation bounds and per-action awards.
const (
	StartingReputation = 500
	MaxReputation      = 1000
	MaxRating          = 100

	reputationPerAttendance = 10
	reputationPerOrganized  = 25
)

// Verified-organizer thresholds. The flag flips true once both are
// met and never flips back.
const (
	verifiedMinRating = 80
	verifiedMinCount  = 5
)

// Identity is the profile's identity block. SubjectID is an opaque
// external-identity reference; the engine stores it verbatim and
// never dereferences it.
type Identity struct {
	DisplayName string `cbor:"display_name"`
	AvatarRef   string `cbor:"avatar_ref,omitempty"`
	SubjectID   string `cbor:"subject_id,omitempty"`
}

// Preferences holds user-controlled settings. Opaque to every other
// engine.
type Preferences struct {
	Notifications bool     `cbor:"notifications"`
	Categories    []string `cbor:"categories,omitempty"`
}

// Stats are the monotonically increasing activity counters. Badge
// minting depends on these never decreasing.
type Stats struct {
	EventsAttended   uint64 `cbor:"events_attended"`
	EventsOrganized  uint64 `cbor:"events_organized"`
	TicketsPurchased uint64 `cbor:"tickets_purchased"`
	TotalSpent       uint64 `cbor:"total_spent"`
}

// Reputation is the profile's reputation block.
type Reputation struct {
	Score uint64 `cbor:"score"`

	OrganizerRating      uint64 `cbor:"organizer_rating"`
	OrganizerRatingCount uint64 `cbor:"organizer_rating_count"`
	AttendeeRating       uint64 `cbor:"attendee_rating"`
	AttendeeRatingCount  uint64 `cbor:"attendee_rating_count"`

	VerifiedOrganizer bool `cbor:"verified_organizer"`
}

// Profile is a user's on-ledger identity. Owned by the address it
// describes; never deleted.
type Profile struct {
	Address     ref.Address `cbor:"address"`
	Identity    Identity    `cbor:"identity"`
	Reputation  Reputation  `cbor:"reputation"`
	Stats       Stats       `cbor:"stats"`
	Preferences Preferences `cbor:"preferences"`
	CreatedAt   int64       `cbor:"created_at"`
}

// Registry is the shared singleton enforcing one profile per address.
type Registry struct {
	Total     uint64                  `cbor:"total"`
	ByAddress map[string]ref.ObjectID `cbor:"by_address"`
}

// CreateRegistry creates the profile registry singleton.
// Engine-internal: only the genesis bootstrap calls it.
func CreateRegistry(tx *ledger.Tx, _ enginegate.Key) (ref.ObjectID, error) {
	return tx.Create(KindRegistry, ledger.ModeShared, ref.Address{}, &Registry{
		ByAddress: map[string]ref.ObjectID{},
	})
}

// CreateProfile creates the sender's profile with mid-scale starting
// reputation and zeroed stats. The registry must be declared as a
// shared input; a second profile for the same address aborts.
func CreateProfile(tx *ledger.Tx, registryID ref.ObjectID, identity Identity, prefs Preferences) (ref.ObjectID, error) {
	var reg Registry
	if err := tx.Take(registryID, KindRegistry, &reg); err != nil {
		return ref.ObjectID{}, err
	}
	sender := tx.Sender()
	if _, exists := reg.ByAddress[sender.String()]; exists {
		return ref.ObjectID{}, ledger.Abortf(CodeProfileExists, "address %s already has a profile", sender)
	}

	id, err := tx.Create(KindProfile, ledger.ModeOwned, sender, &Profile{
		Address:  sender,
		Identity: identity,
		Reputation: Reputation{
			Score: StartingReputation,
		},
		Preferences: prefs,
		CreatedAt:   tx.Now().Unix(),
	})
	if err != nil {
		return ref.ObjectID{}, err
	}

	reg.ByAddress[sender.String()] = id
	reg.Total++

	tx.Emit(ledger.Record{
		Kind:      "profile.created",
		Objects:   []ref.ObjectID{id, registryID},
		Addresses: []ref.Address{sender},
	})
	return id, nil
}

// Lookup resolves an address to its profile ID through the registry.
// The registry must be declared as a shared input.
func Lookup(tx *ledger.Tx, registryID ref.ObjectID, addr ref.Address) (ref.ObjectID, error) {
	var reg Registry
	if err := tx.Read(registryID, KindRegistry, &reg); err != nil {
		return ref.ObjectID{}, err
	}
	id, ok := reg.ByAddress[addr.String()]
	if !ok {
		return ref.ObjectID{}, ledger.Abortf(CodeNoProfile, "address %s has no profile", addr)
	}
	return id, nil
}

// UpdateIdentity replaces the sender's identity block.
func UpdateIdentity(tx *ledger.Tx, profileID ref.ObjectID, identity Identity) error {
	var p Profile
	if err := tx.Take(profileID, KindProfile, &p); err != nil {
		return err
	}
	p.Identity = identity
	tx.Emit(ledger.Record{
		Kind:      "profile.identity_updated",
		Objects:   []ref.ObjectID{profileID},
		Addresses: []ref.Address{p.Address},
	})
	return nil
}

// UpdatePreferences replaces the sender's preferences.
func UpdatePreferences(tx *ledger.Tx, profileID ref.ObjectID, prefs Preferences) error {
	var p Profile
	if err := tx.Take(profileID, KindProfile, &p); err != nil {
		return err
	}
	p.Preferences = prefs
	tx.Emit(ledger.Record{
		Kind:      "profile.preferences_updated",
		Objects:   []ref.ObjectID{profileID},
		Addresses: []ref.Address{p.Address},
	})
	return nil
}

// AddReputation raises the score by delta, capped at MaxReputation.
// Engine-internal.
func AddReputation(_ enginegate.Key, p *Profile, delta uint64) {
	score := p.Reputation.Score + delta
	if score > MaxReputation || score < p.Reputation.Score {
		score = MaxReputation
	}
	p.Reputation.Score = score
}

// DeductReputation lowers the score by delta, floored at zero.
// Engine-internal.
func DeductReputation(_ enginegate.Key, p *Profile, delta uint64) {
	if delta > p.Reputation.Score {
		p.Reputation.Score = 0
		return
	}
	p.Reputation.Score -= delta
}

// RateOrganizer folds a rating into the profile's organizer average.
// The profile holder must have authorized the transaction (as
// co-signer; the rater is the sender). Flips verified-organizer true
// once the average and count cross their thresholds; never flips it
// back.
func RateOrganizer(tx *ledger.Tx, profileID ref.ObjectID, rating uint64) error {
	if rating > MaxRating {
		return ledger.Abortf(CodeRatingRange, "rating %d outside [0, %d]", rating, MaxRating)
	}
	var p Profile
	if err := tx.Take(profileID, KindProfile, &p); err != nil {
		return err
	}

	r := &p.Reputation
	r.OrganizerRating = (r.OrganizerRating*r.OrganizerRatingCount + rating) / (r.OrganizerRatingCount + 1)
	r.OrganizerRatingCount++
	if r.OrganizerRating >= verifiedMinRating && r.OrganizerRatingCount >= verifiedMinCount {
		r.VerifiedOrganizer = true
	}

	tx.Emit(ledger.Record{
		Kind:      "profile.organizer_rated",
		Objects:   []ref.ObjectID{profileID},
		Addresses: []ref.Address{p.Address, tx.Sender()},
		Amounts:   map[string]uint64{"rating": rating, "average": r.OrganizerRating},
	})
	return nil
}

// RateAttendee folds a rating into the profile's attendee average.
// Same authorization shape as RateOrganizer.
func RateAttendee(tx *ledger.Tx, profileID ref.ObjectID, rating uint64) error {
	if rating > MaxRating {
		return ledger.Abortf(CodeRatingRange, "rating %d outside [0, %d]", rating, MaxRating)
	}
	var p Profile
	if err := tx.Take(profileID, KindProfile, &p); err != nil {
		return err
	}

	r := &p.Reputation
	r.AttendeeRating = (r.AttendeeRating*r.AttendeeRatingCount + rating) / (r.AttendeeRatingCount + 1)
	r.AttendeeRatingCount++

	tx.Emit(ledger.Record{
		Kind:      "profile.attendee_rated",
		Objects:   []ref.ObjectID{profileID},
		Addresses: []ref.Address{p.Address, tx.Sender()},
		Amounts:   map[string]uint64{"rating": rating, "average": r.AttendeeRating},
	})
	return nil
}

// RecordAttendance increments the attended counter, awards attendance
// reputation, and mints any milestone badge the new count lands on.
// Engine-internal: the ticket engine calls it at validation time on a
// profile it has already taken.
func RecordAttendance(tx *ledger.Tx, key enginegate.Key, p *Profile) error {
	p.Stats.EventsAttended++
	AddReputation(key, p, reputationPerAttendance)
	return mintMilestoneBadge(tx, p, attendedMilestones, p.Stats.EventsAttended)
}

// RecordOrganized increments the organized counter, awards organizer
// reputation, and mints any milestone badge the new count lands on.
// Engine-internal: the event engine calls it at completion time.
func RecordOrganized(tx *ledger.Tx, key enginegate.Key, p *Profile) error {
	p.Stats.EventsOrganized++
	AddReputation(key, p, reputationPerOrganized)
	return mintMilestoneBadge(tx, p, organizedMilestones, p.Stats.EventsOrganized)
}

// RecordPurchase folds a ticket purchase into the profile's stats.
// Engine-internal: the ticket engine calls it at mint time.
func RecordPurchase(_ enginegate.Key, p *Profile, amount uint64) {
	p.Stats.TicketsPurchased++
	p.Stats.TotalSpent += amount
}
