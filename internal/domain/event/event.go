// Package event defines the Event aggregate and its voting rules.
package event

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Status is the closed set of lifecycle states an event can be in.
//
// The source system's persistence layer spells the pre-active state
// UPCOMING while its admin UI spells it SCHEDULED; this package picks one
// closed set and uses SCHEDULED only. UPCOMING is not accepted or stored
// anywhere.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// IsNonTerminal reports whether an event in this status counts for the
// per-venue overlap check (DRAFT, SCHEDULED, ACTIVE).
func (s Status) IsNonTerminal() bool {
	return !s.IsTerminal()
}

// VotingRules configures C1 admission for one event. When an event is
// created over HTTP without a votingRules object, its fields are filled
// from the `default` struct tags below (via creasty/defaults); a supplied
// VotingRules is used as given, authoritative over those defaults.
type VotingRules struct {
	VotesPerHour              int `json:"votesPerHour" default:"3" validate:"gt=0"`
	CooldownSeconds           int `json:"cooldownSeconds" default:"30" validate:"gte=0"`
	SameTrackCooldownSeconds  int `json:"sameTrackCooldownSeconds" default:"7200" validate:"gte=0"`
	IPHourlyMultiplier        int `json:"ipHourlyMultiplier" default:"2" validate:"gt=0"`
	MaxQueueSize              int `json:"maxQueueSize" default:"200" validate:"gt=0"`
}

// IPHourlyCap is the derived hourly vote cap applied per IP address.
func (r VotingRules) IPHourlyCap() int {
	return r.VotesPerHour * r.IPHourlyMultiplier
}

// Event is a scheduled window during which guests may vote at a venue.
type Event struct {
	ID                    string
	VenueID               string
	Name                  string
	Description           string
	Status                Status
	ScheduledStart        time.Time
	ScheduledEnd          time.Time
	ActualStart           *time.Time
	ActualEnd             *time.Time
	PlaylistSource        string
	PlaylistConfig        map[string]string
	VotingRules           VotingRules
	CurrentTrackID        *string
	CurrentTrackStartedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Overlaps reports whether two events for the same venue, both in a
// non-terminal status, would overlap in their scheduled window, per
// spec's overlap predicate: s1 < e2 ∧ s2 < e1.
func (e Event) Overlaps(other Event) bool {
	return e.ScheduledStart.Before(other.ScheduledEnd) && other.ScheduledStart.Before(e.ScheduledEnd)
}

// Validate checks the invariants this package owns: scheduledEnd strictly
// after scheduledStart. Venue-uniqueness-of-ACTIVE and overlap checks span
// multiple events and live in core/lifecycle, which has the repository.
func (e Event) Validate() error {
	if !e.ScheduledEnd.After(e.ScheduledStart) {
		return errScheduledEndNotAfterStart
	}
	return nil
}

var errScheduledEndNotAfterStart = errors.New("scheduledEnd must be after scheduledStart")
