// Package coordinator wires C1 (admission), C3 (queue), C4 (playback),
// C5 (lifecycle), and C6 (hub) into the per-event actors spec.md §2/§5
// describes: one admission ledger and one playback machine per ACTIVE
// event, a single critical section per event serializing every mutation
// against it, and a registry keyed by event ID.
//
// Grounded on internal/app/session/manager.go's Manager: a single god
// object owning state/registry/playback/filter/notification for one
// global session, generalized here to N event-keyed actors each
// structured the same way internally.
package coordinator

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/core/admission"
	"github.com/beatline/beatline/internal/core/hub"
	"github.com/beatline/beatline/internal/core/lifecycle"
	"github.com/beatline/beatline/internal/core/playback"
	"github.com/beatline/beatline/internal/core/provider"
	"github.com/beatline/beatline/internal/core/queue"
	"github.com/beatline/beatline/internal/core/repository"
	"github.com/beatline/beatline/internal/domain/event"
	"github.com/beatline/beatline/internal/domain/queueitem"
	"github.com/beatline/beatline/internal/metrics"
)

// actor is the per-event unit of serialization: every mutating operation
// against one event's admission/queue/playback state takes actor.mu for
// its duration, per spec.md §5.
type actor struct {
	mu      sync.Mutex
	eventID string
	ledger  *admission.Ledger
	machine *playback.Machine
}

// Coordinator is the process-wide wiring point. queue.Manager and
// lifecycle.Manager are stateless over the repository and shared by every
// actor; admission.Ledger and playback.Machine are the only per-event
// state, held in actors.
type Coordinator struct {
	repo      repository.Repository
	queue     *queue.Manager
	lifecycle *lifecycle.Manager
	hub       *hub.Hub
	provider  provider.Provider

	mu     sync.Mutex
	actors map[string]*actor
}

// New creates a coordinator. provider may be nil for venues that have no
// playback capability wired yet; Initialize will fail until one exists.
func New(repo repository.Repository, p provider.Provider) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		queue:    queue.NewManager(repo),
		hub:      hub.New(),
		provider: p,
		actors:   make(map[string]*actor),
	}
	c.lifecycle = lifecycle.NewManager(repo, c.onEventEnded)
	return c
}

// Hub exposes the fan-out hub so the transport layer can subscribe
// connections to event rooms.
func (c *Coordinator) Hub() *hub.Hub { return c.hub }

// Lifecycle exposes C5 directly; status transitions broadcast
// eventStatusChange through the coordinator's Activate/End/Cancel
// wrappers below, not from inside lifecycle itself.
func (c *Coordinator) Lifecycle() *lifecycle.Manager { return c.lifecycle }

// Queue exposes C3 for read-only status endpoints; vote submission must
// go through Vote so admission and per-event serialization apply.
func (c *Coordinator) Queue() *queue.Manager { return c.queue }

// FindEvent is a read-only passthrough to the repository for transport's
// single-event lookups.
func (c *Coordinator) FindEvent(ctx context.Context, eventID string) (*event.Event, error) {
	e, err := c.repo.FindEvent(ctx, eventID)
	if err != nil {
		return nil, coreerr.Internal(err, "find event")
	}
	if e == nil {
		return nil, coreerr.NotFound("event %s not found", eventID)
	}
	return e, nil
}

// ListVenueEvents is a read-only passthrough to the repository for
// transport's venue listing endpoint.
func (c *Coordinator) ListVenueEvents(ctx context.Context, venueID string) ([]event.Event, error) {
	events, err := c.repo.ListNonTerminalEventsForVenue(ctx, venueID)
	if err != nil {
		return nil, coreerr.Internal(err, "list venue events")
	}
	return events, nil
}

func (c *Coordinator) getOrCreateActor(eventID string) *actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actors[eventID]
	if !ok {
		a = &actor{eventID: eventID}
		c.actors[eventID] = a
		metrics.SetActiveEvents(len(c.actors))
	}
	return a
}

func (c *Coordinator) getActor(eventID string) (*actor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actors[eventID]
	return a, ok
}

// Activate moves an event to ACTIVE and ensures its actor (ledger) exists.
// Playback must still be initialized separately via InitializePlayback
// once a device is chosen.
func (c *Coordinator) Activate(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := c.lifecycle.Activate(ctx, eventID, now)
	if err != nil {
		return nil, err
	}

	a := c.getOrCreateActor(eventID)
	a.mu.Lock()
	if a.ledger == nil {
		a.ledger = admission.NewLedger(e.VotingRules)
	}
	a.mu.Unlock()

	c.hub.Broadcast(hub.Message{Topic: hub.TopicEventStatusChange, EventID: eventID, Payload: e})
	return e, nil
}

// InitializePlayback initializes C4 for an ACTIVE event's actor.
func (c *Coordinator) InitializePlayback(ctx context.Context, eventID, venueID, deviceID string) error {
	if c.provider == nil {
		return coreerr.Internal(nil, "no playback provider configured")
	}
	if _, err := c.lifecycle.RequireActive(ctx, eventID); err != nil {
		return err
	}

	a := c.getOrCreateActor(eventID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.machine == nil {
		a.machine = playback.NewMachine(eventID, venueID, c.provider, c.queue)
		go c.pumpPlaybackEvents(a.machine)
	}
	return a.machine.Initialize(ctx, deviceID)
}

// Vote admits and records a vote under the event's single critical
// section, per spec.md §5: admission check and queue mutation happen as
// one atomic step from the caller's point of view.
func (c *Coordinator) Vote(ctx context.Context, eventID, sessionID, ip string, dto queueitem.AddVote, now time.Time) (*queueitem.QueueItem, error) {
	if _, err := c.lifecycle.RequireActive(ctx, eventID); err != nil {
		return nil, err
	}

	a, ok := c.getActor(eventID)
	if !ok || a.ledger == nil {
		return nil, coreerr.Internal(nil, "event %s has no admission ledger; was it activated?", eventID)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	dto.SessionID = sessionID
	dto.IPAddress = ip
	if err := a.ledger.Admit(sessionID, ip, dto.TrackID, now); err != nil {
		if ce, ok := coreerr.As(err); ok {
			metrics.RecordVoteDenied(ce.Reason)
		} else {
			metrics.RecordVoteDenied("unknown")
		}
		return nil, err
	}
	metrics.RecordVoteAdmitted()

	item, err := c.queue.AddVote(ctx, eventID, dto, now)
	if err != nil {
		return nil, err
	}

	queueRows, err := c.queue.GetQueue(ctx, eventID)
	if err == nil {
		metrics.SetQueueSize(eventID, len(queueRows))
		c.hub.Broadcast(hub.Message{Topic: hub.TopicQueueUpdate, EventID: eventID, Payload: queueRows})
	}
	c.hub.Broadcast(hub.Message{Topic: hub.TopicVoteUpdate, EventID: eventID, Payload: item})

	if a.machine != nil && a.machine.Status().State == playback.StateIdle {
		go func() {
			if err := a.machine.PlayNext(context.Background()); err != nil {
				zlog.Debug().Err(err).Str("event_id", eventID).Msg("coordinator: play-on-vote failed")
			}
		}()
	}

	return item, nil
}

// Ban marks sessionID as banned from eventID's admission ledger; every
// further vote from it is denied until Unban is called.
func (c *Coordinator) Ban(eventID, sessionID string) error {
	a, ok := c.getActor(eventID)
	if !ok || a.ledger == nil {
		return coreerr.Conflict("event %s has no admission ledger; was it activated?", eventID)
	}
	a.ledger.Ban(sessionID)
	return nil
}

// Unban lifts a ban previously set by Ban.
func (c *Coordinator) Unban(eventID, sessionID string) error {
	a, ok := c.getActor(eventID)
	if !ok || a.ledger == nil {
		return coreerr.Conflict("event %s has no admission ledger; was it activated?", eventID)
	}
	a.ledger.Unban(sessionID)
	return nil
}

// Skip, Pause, Resume, PlayNext, Stop forward to the event's playback
// machine.
func (c *Coordinator) Skip(ctx context.Context, eventID string) error {
	return c.withMachine(eventID, func(m *playback.Machine) error { return m.Skip(ctx) })
}

func (c *Coordinator) Pause(ctx context.Context, eventID string) error {
	return c.withMachine(eventID, func(m *playback.Machine) error { return m.Pause(ctx) })
}

func (c *Coordinator) Resume(ctx context.Context, eventID string) error {
	return c.withMachine(eventID, func(m *playback.Machine) error { return m.Resume(ctx) })
}

// PlayNext forwards to the event's playback machine for the explicit
// playback.playNext command, distinct from the automatic advance-on-vote
// and advance-on-timer call sites already inside this package.
func (c *Coordinator) PlayNext(ctx context.Context, eventID string) error {
	return c.withMachine(eventID, func(m *playback.Machine) error { return m.PlayNext(ctx) })
}

// StopPlayback forwards to the event's playback machine for the explicit
// playback.stop command; onEventEnded still calls machine.Stop directly
// on event end regardless of this being invoked.
func (c *Coordinator) StopPlayback(ctx context.Context, eventID string) error {
	return c.withMachine(eventID, func(m *playback.Machine) error { return m.Stop(ctx) })
}

// SetAutoPlay toggles the event's auto-advance-on-track-end behavior.
func (c *Coordinator) SetAutoPlay(eventID string, enabled bool) error {
	a, ok := c.getActor(eventID)
	if !ok || a.machine == nil {
		return coreerr.Conflict("event %s has no playback state", eventID)
	}
	a.machine.SetAutoPlay(enabled)
	return nil
}

// RemoveFromQueue, ClearQueue, MarkQueueItemPlayed, and SkipQueueItem
// mutate an event's queue under its single critical section and
// rebroadcast the resulting queue, per spec.md §5.
func (c *Coordinator) RemoveFromQueue(ctx context.Context, eventID, trackID string) error {
	return c.withQueueMutation(ctx, eventID, func(ctx context.Context) error {
		return c.queue.Remove(ctx, eventID, trackID)
	})
}

func (c *Coordinator) ClearQueue(ctx context.Context, eventID string) error {
	return c.withQueueMutation(ctx, eventID, func(ctx context.Context) error {
		return c.queue.Clear(ctx, eventID)
	})
}

func (c *Coordinator) MarkQueueItemPlayed(ctx context.Context, eventID, trackID string, now time.Time) error {
	return c.withQueueMutation(ctx, eventID, func(ctx context.Context) error {
		return c.queue.MarkPlayed(ctx, eventID, trackID, now)
	})
}

func (c *Coordinator) SkipQueueItem(ctx context.Context, eventID, trackID, reason string, now time.Time) error {
	return c.withQueueMutation(ctx, eventID, func(ctx context.Context) error {
		return c.queue.Skip(ctx, eventID, trackID, reason, now)
	})
}

// NextTrack peeks the queue head without playing it, for the read-only
// queue.nextTrack command.
func (c *Coordinator) NextTrack(ctx context.Context, eventID string) (*queueitem.QueueItem, error) {
	return c.queue.NextTrack(ctx, eventID)
}

// QueueStats returns the unplayed queue size and aggregate vote count for
// eventID.
func (c *Coordinator) QueueStats(ctx context.Context, eventID string) (size int, totalVotes int, err error) {
	return c.queue.Stats(ctx, eventID)
}

// withQueueMutation runs fn under eventID's actor lock, requiring the
// event be ACTIVE, and rebroadcasts the queue once fn succeeds.
func (c *Coordinator) withQueueMutation(ctx context.Context, eventID string, fn func(context.Context) error) error {
	if _, err := c.lifecycle.RequireActive(ctx, eventID); err != nil {
		return err
	}
	a, ok := c.getActor(eventID)
	if !ok {
		return coreerr.Internal(nil, "event %s has no actor; was it activated?", eventID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := fn(ctx); err != nil {
		return err
	}

	rows, err := c.queue.GetQueue(ctx, eventID)
	if err == nil {
		metrics.SetQueueSize(eventID, len(rows))
		c.hub.Broadcast(hub.Message{Topic: hub.TopicQueueUpdate, EventID: eventID, Payload: rows})
	}
	return nil
}

func (c *Coordinator) PlaybackStatus(eventID string) (playback.Status, error) {
	a, ok := c.getActor(eventID)
	if !ok || a.machine == nil {
		return playback.Status{}, coreerr.NotFound("event %s has no playback state", eventID)
	}
	return a.machine.Status(), nil
}

func (c *Coordinator) withMachine(eventID string, fn func(*playback.Machine) error) error {
	a, ok := c.getActor(eventID)
	if !ok || a.machine == nil {
		return coreerr.Conflict("event %s has no playback state", eventID)
	}
	return fn(a.machine)
}

// End ends eventID; onEventEnded tears down its actor once lifecycle
// confirms the transition.
func (c *Coordinator) End(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := c.lifecycle.End(ctx, eventID, now)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast(hub.Message{Topic: hub.TopicEventStatusChange, EventID: eventID, Payload: e})
	return e, nil
}

// Cancel cancels eventID; onEventEnded tears down its actor if it was
// ACTIVE.
func (c *Coordinator) Cancel(ctx context.Context, eventID string, now time.Time) (*event.Event, error) {
	e, err := c.lifecycle.Cancel(ctx, eventID, now)
	if err != nil {
		return nil, err
	}
	c.hub.Broadcast(hub.Message{Topic: hub.TopicEventStatusChange, EventID: eventID, Payload: e})
	return e, nil
}

// onEventEnded is lifecycle's StopHook: per spec.md §4.5/§4.4's "on event
// end, if a playback state exists, stop is invoked", it stops the
// machine, closes its event loop, and drops the actor from the registry.
func (c *Coordinator) onEventEnded(ctx context.Context, eventID string) {
	c.mu.Lock()
	a, ok := c.actors[eventID]
	delete(c.actors, eventID)
	metrics.SetActiveEvents(len(c.actors))
	c.mu.Unlock()

	metrics.DeleteQueueSize(eventID)

	if !ok {
		return
	}
	if a.machine != nil {
		if err := a.machine.Stop(ctx); err != nil {
			zlog.Warn().Err(err).Str("event_id", eventID).Msg("coordinator: stop on event end failed")
		}
		a.machine.Close()
	}
	c.hub.CloseRoom(eventID)
}

// Shutdown stops every actor's playback machine concurrently and waits
// for all of them to drain, so process exit doesn't abandon an event's
// ticker goroutine mid-track. Every actor's stop runs under the same
// ctx deadline; one actor's stop failing doesn't block the others from
// draining.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	actors := make([]*actor, 0, len(c.actors))
	for _, a := range c.actors {
		actors = append(actors, a)
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range actors {
		a := a
		g.Go(func() error {
			if a.machine == nil {
				return nil
			}
			if err := a.machine.Stop(gctx); err != nil {
				zlog.Warn().Err(err).Str("event_id", a.eventID).Msg("coordinator: shutdown stop failed")
			}
			a.machine.Close()
			return nil
		})
	}
	return g.Wait()
}

// pumpPlaybackEvents forwards a machine's event channel to the hub until
// the machine is closed. One goroutine per actor, started the first time
// playback is initialized for that event.
func (c *Coordinator) pumpPlaybackEvents(m *playback.Machine) {
	for ev := range m.Events() {
		var topic hub.Topic
		switch ev.Type {
		case playback.EventNowPlayingUpdate:
			topic = hub.TopicNowPlayingUpdate
		case playback.EventStateChanged:
			topic = hub.TopicEventStatusChange
			metrics.RecordPlaybackTransition(string(ev.State))
		case playback.EventQueueEmpty:
			topic = hub.TopicEventStatusChange
		default:
			topic = hub.TopicNowPlayingUpdate
		}
		c.hub.Broadcast(hub.Message{Topic: topic, EventID: ev.EventID, Payload: ev})
	}
}
