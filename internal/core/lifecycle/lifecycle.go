// Package lifecycle implements C5: event status transitions, the
// per-venue overlap guard, and the guard that rejects mutations against
// terminal events.
//
// Grounded on internal/app/session/state/manager.go's Phase enum +
// RWMutex-guarded Manager, generalized from one global session phase to
// many per-event rows backed by the repository port.
package lifecycle

import (
	"context"
	"time"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/core/repository"
	"github.com/beatline/beatline/internal/domain/event"
)

// StopHook is invoked when an event transitions to ENDED, so the
// coordinator can tear down that event's playback.Machine (C4.stop) and
// admission ledger without lifecycle importing either package directly.
type StopHook func(ctx context.Context, eventID string)

// Manager owns event status transitions for every venue through the
// repository port. Like queue.Manager, a single instance is shared
// process-wide; per-event serialization is the coordinator's job.
type Manager struct {
	repo    repository.Repository
	onEnded StopHook
}

// NewManager creates a lifecycle manager backed by repo. onEnded may be
// nil; if set, it runs synchronously inside End after the status update
// is persisted.
func NewManager(repo repository.Repository, onEnded StopHook) *Manager {
	return &Manager{repo: repo, onEnded: onEnded}
}

// Create validates e and inserts it as DRAFT (or whatever status the
// caller set, typically DRAFT), enforcing the overlap guard against every
// non-terminal event already on the venue.
func (m *Manager) Create(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		return coreerr.Validation("%s", err.Error())
	}
	if err := m.checkOverlap(ctx, e, ""); err != nil {
		return err
	}
	if err := m.repo.CreateEvent(ctx, e); err != nil {
		return coreerr.Internal(err, "create event")
	}
	return nil
}

// Update replaces the mutable fields of a DRAFT/SCHEDULED event, per
// spec.md's "update -> same, guard: not overlapping" transition. ACTIVE
// and terminal events reject update.
func (m *Manager) Update(ctx context.Context, e event.Event) error {
	current, err := m.mustFind(ctx, e.ID)
	if err != nil {
		return err
	}
	if current.Status != event.StatusDraft && current.Status != event.StatusScheduled {
		return coreerr.Conflict("event %s is %s, not editable", e.ID, current.Status)
	}
	if err := e.Validate(); err != nil {
		return coreerr.Validation("%s", err.Error())
	}
	if err := m.checkOverlap(ctx, e, e.ID); err != nil {
		return err
	}
	e.Status = current.Status
	e.CreatedAt = current.CreatedAt
	if err := m.repo.UpdateEvent(ctx, e); err != nil {
		return coreerr.Internal(err, "update event")
	}
	return nil
}

// Activate moves a DRAFT/SCHEDULED event to ACTIVE, guarded by "no other
// ACTIVE event for the same venue".
func (m *Manager) Activate(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := m.mustFind(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != event.StatusDraft && e.Status != event.StatusScheduled {
		return nil, coreerr.Conflict("event %s is %s, cannot activate", eventID, e.Status)
	}

	active, err := m.repo.FindVenueActiveEvent(ctx, e.VenueID)
	if err != nil {
		return nil, coreerr.Internal(err, "find venue active event")
	}
	if active != nil && active.ID != eventID {
		return nil, coreerr.Conflict("venue %s already has active event %s", e.VenueID, active.ID)
	}

	if err := m.repo.UpdateEventStatus(ctx, eventID, event.StatusActive, &now, nil); err != nil {
		return nil, coreerr.Internal(err, "activate event")
	}
	e.Status = event.StatusActive
	e.ActualStart = &now
	return e, nil
}

// End moves an ACTIVE event to ENDED unconditionally, then, if a stop
// hook was configured, tears down that event's playback state.
func (m *Manager) End(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := m.mustFind(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, coreerr.Conflict("event %s is already %s", eventID, e.Status)
	}
	if e.Status != event.StatusActive {
		return nil, coreerr.Conflict("event %s is %s, cannot end", eventID, e.Status)
	}

	if err := m.repo.UpdateEventStatus(ctx, eventID, event.StatusEnded, e.ActualStart, &now); err != nil {
		return nil, coreerr.Internal(err, "end event")
	}
	e.Status = event.StatusEnded
	e.ActualEnd = &now

	if m.onEnded != nil {
		m.onEnded(ctx, eventID)
	}
	return e, nil
}

// Cancel moves a non-terminal event to CANCELLED. Unlike End, cancel is
// available from DRAFT and SCHEDULED as well as ACTIVE.
func (m *Manager) Cancel(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := m.mustFind(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, coreerr.Conflict("event %s is already %s", eventID, e.Status)
	}

	wasActive := e.Status == event.StatusActive
	if err := m.repo.UpdateEventStatus(ctx, eventID, event.StatusCancelled, e.ActualStart, &now); err != nil {
		return nil, coreerr.Internal(err, "cancel event")
	}
	e.Status = event.StatusCancelled
	e.ActualEnd = &now

	if wasActive && m.onEnded != nil {
		m.onEnded(ctx, eventID)
	}
	return e, nil
}

// Delete removes a non-ACTIVE event that has no recorded votes. Callers
// must Cancel an ACTIVE or voted-on event instead.
func (m *Manager) Delete(ctx context.Context, eventID string) error {
	e, err := m.mustFind(ctx, eventID)
	if err != nil {
		return err
	}
	if e.Status == event.StatusActive {
		return coreerr.Conflict("event %s is active, cancel it first", eventID)
	}
	votes, err := m.repo.CountVotesForEvent(ctx, eventID)
	if err != nil {
		return coreerr.Internal(err, "count votes for event")
	}
	if votes > 0 {
		return coreerr.Conflict("event %s has recorded votes, cancel it instead of deleting", eventID)
	}
	if err := m.repo.DeleteEvent(ctx, eventID); err != nil {
		return coreerr.Internal(err, "delete event")
	}
	return nil
}

// RequireActive fetches eventID and returns it only if ACTIVE; this is
// the guard C1/C3/C4 entry points call before admitting a vote or
// mutating a queue.
func (m *Manager) RequireActive(ctx context.Context, eventID string) (*event.Event, error) {
	e, err := m.mustFind(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != event.StatusActive {
		return nil, coreerr.EventNotActive(eventID)
	}
	return e, nil
}

func (m *Manager) mustFind(ctx context.Context, eventID string) (*event.Event, error) {
	e, err := m.repo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, coreerr.Internal(err, "find event")
	}
	if e == nil {
		return nil, coreerr.NotFound("event %s not found", eventID)
	}
	return e, nil
}

// checkOverlap rejects e if its scheduled window overlaps any other
// non-terminal event of the same venue. excludeID skips e's own row on
// update.
func (m *Manager) checkOverlap(ctx context.Context, e event.Event, excludeID string) error {
	others, err := m.repo.ListNonTerminalEventsForVenue(ctx, e.VenueID)
	if err != nil {
		return coreerr.Internal(err, "list non-terminal events for venue")
	}
	for _, other := range others {
		if other.ID == excludeID {
			continue
		}
		if e.Overlaps(other) {
			return coreerr.Conflict("event overlaps existing event %s for venue %s", other.ID, e.VenueID)
		}
	}
	return nil
}
