// Package playback implements C4: the per-event playback state machine and
// its track-end timer. It drives the external provider through the
// provider.Provider port and the queue through core/queue, emitting events
// for C6 to broadcast.
//
// The timer machinery (startWallClockTimer/toWallTime) is carried over
// almost verbatim from internal/app/playback/controller.go: a ticker
// polling a wall-clock end-time rather than a bare time.Timer, to dodge
// monotonic/wall clock divergence across long-running processes. The one
// departure from the teacher is the lock-release-around-provider-call
// discipline spec.md §5 requires, which the teacher's controller never
// needed because it had no external provider in its own Play/Skip path.
package playback

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/core/provider"
	"github.com/beatline/beatline/internal/core/queue"
	"github.com/beatline/beatline/internal/domain/queueitem"
)

// State is the playback state machine's current node.
type State string

const (
	StateAbsent  State = "absent"
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// EventType distinguishes the events the machine publishes for C6.
type EventType int

const (
	EventNowPlayingUpdate EventType = iota
	EventStateChanged
	EventQueueEmpty
)

// Event is one state change the machine publishes on its event channel.
// Track is nil for a "now playing is null" update.
type Event struct {
	Type    EventType
	EventID string
	Track   *queueitem.QueueItem
	State   State
}

// trackEndBuffer is the dead-air buffer spec.md §4.4 describes: the
// transition timer fires this much before the track's nominal end so the
// next playTrack overlaps the tail instead of exposing silence.
const trackEndBuffer = 500 * time.Millisecond

// providerCallTimeout bounds a single provider.PlayTrack/PausePlayback
// call; on timeout the caller retries once before giving up (spec.md §5).
const providerCallTimeout = 5 * time.Second

// Machine is the playback coordinator for a single event. One Machine
// exists per ACTIVE event with playback initialized; the coordinator owns
// its lifetime.
type Machine struct {
	mu sync.Mutex

	eventID  string
	venueID  string
	deviceID string

	provider provider.Provider
	queue    *queue.Manager

	state           State
	currentTrack    *queueitem.QueueItem
	startedAt       time.Time
	autoPlayEnabled bool

	// generation increments on every state-resetting transition (skip,
	// stop, a fresh playNext); a provider call started under an older
	// generation is stale and must not be allowed to commit when it
	// returns, per spec.md §5's suspension-point rule.
	generation uint64

	timerCancel func()

	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewMachine creates an absent (uninitialized) playback machine for one
// event.
func NewMachine(eventID, venueID string, p provider.Provider, q *queue.Manager) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		eventID:  eventID,
		venueID:  venueID,
		provider: p,
		queue:    q,
		state:    StateAbsent,
		eventCh:  make(chan Event, 16),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Events returns the channel the coordinator forwards to C6.
func (m *Machine) Events() <-chan Event {
	return m.eventCh
}

// Initialize requires the event be ACTIVE (enforced by the caller via C5
// before this is invoked), verifies deviceID is known to the provider, and
// moves the machine to idle with autoplay on.
func (m *Machine) Initialize(ctx context.Context, deviceID string) error {
	devices, err := m.provider.ListDevices(ctx, m.venueID)
	if err != nil {
		return coreerr.Provider(err, "list devices")
	}

	found := false
	for _, d := range devices {
		if d.ID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return coreerr.Validation("device %s not found for venue %s", deviceID, m.venueID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceID = deviceID
	m.state = StateIdle
	m.autoPlayEnabled = true
	m.currentTrack = nil
	return nil
}

// SetAutoPlay toggles whether a track ending automatically advances the
// queue.
func (m *Machine) SetAutoPlay(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoPlayEnabled = enabled
}

// Status is a point-in-time snapshot for the playback.status command.
type Status struct {
	State        State
	CurrentTrack *queueitem.QueueItem
	StartedAt    time.Time
	Remaining    time.Duration
}

func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:        m.state,
		CurrentTrack: m.currentTrack,
		StartedAt:    m.startedAt,
		Remaining:    m.remainingLocked(),
	}
}

func (m *Machine) remainingLocked() time.Duration {
	if m.currentTrack == nil || m.startedAt.IsZero() {
		return 0
	}
	elapsed := toWallTime(time.Now()).Sub(m.startedAt)
	remaining := m.currentTrack.Duration - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PlayNext implements spec.md §4.4's playNext algorithm: read the queue
// head under lock, release before any provider call, then reacquire to
// commit state and schedule the next transition.
func (m *Machine) PlayNext(ctx context.Context) error {
	m.mu.Lock()
	m.cancelTimerLocked()
	gen := m.generation
	wasPlaying := m.state == StatePlaying
	deviceID := m.deviceID
	m.mu.Unlock()

	item, err := m.queue.NextTrack(ctx, m.eventID)
	if err != nil {
		return err
	}

	if item == nil {
		if wasPlaying {
			if perr := m.callProviderWithRetry(ctx, func(c context.Context) error {
				return m.provider.PausePlayback(c, m.venueID, deviceID)
			}); perr != nil {
				zlog.Warn().Err(perr).Str("event_id", m.eventID).Msg("playback: pause on empty queue failed")
			}
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.generation != gen {
			return nil // superseded by a concurrent transition
		}
		m.state = StateIdle
		m.currentTrack = nil
		m.startedAt = time.Time{}
		m.sendEventLocked(Event{Type: EventQueueEmpty, EventID: m.eventID, State: m.state})
		m.sendEventLocked(Event{Type: EventNowPlayingUpdate, EventID: m.eventID, Track: nil, State: m.state})
		return coreerr.NotFound("queue empty for event %s", m.eventID)
	}

	if err := m.callProviderWithRetry(ctx, func(c context.Context) error {
		return m.provider.PlayTrack(c, m.venueID, item.TrackURI, deviceID)
	}); err != nil {
		// Fail-safe: do not consume the queue head on provider failure.
		// Once callProviderWithRetry gives up (a non-timeout error, or a
		// second timeout), the machine goes idle and broadcasts a null
		// now-playing update, rather than leaving it stuck referencing
		// the track that never started.
		m.mu.Lock()
		if m.generation == gen {
			m.state = StateIdle
			m.currentTrack = nil
			m.startedAt = time.Time{}
			m.sendEventLocked(Event{Type: EventNowPlayingUpdate, EventID: m.eventID, Track: nil, State: m.state})
		}
		m.mu.Unlock()
		return coreerr.Provider(err, "play track %s", item.TrackID)
	}

	now := toWallTime(time.Now())
	if err := m.queue.MarkPlayed(ctx, m.eventID, item.TrackID, now); err != nil {
		return err
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	m.state = StatePlaying
	m.currentTrack = item
	m.startedAt = now
	m.scheduleTransitionLocked()
	m.sendEventLocked(Event{Type: EventNowPlayingUpdate, EventID: m.eventID, Track: item, State: m.state})
	m.mu.Unlock()

	return nil
}

// scheduleTransitionLocked arms the one-shot track-end timer. Must be
// called with m.mu held.
func (m *Machine) scheduleTransitionLocked() {
	m.cancelTimerLocked()

	if !m.autoPlayEnabled || m.currentTrack == nil {
		return
	}

	remaining := m.remainingLocked()
	if remaining <= trackEndBuffer {
		// Track already effectively over; advance on the next tick
		// rather than recursing under lock.
		go func() { _ = m.PlayNext(context.Background()) }()
		return
	}

	fireIn := remaining - trackEndBuffer
	gen := m.generation
	m.timerCancel = m.startWallClockTimer(fireIn, func() {
		m.onTimerFired(gen)
	})
}

func (m *Machine) onTimerFired(gen uint64) {
	m.mu.Lock()
	stale := gen != m.generation
	autoplay := m.autoPlayEnabled
	m.mu.Unlock()

	if stale {
		return
	}

	if !autoplay {
		m.mu.Lock()
		m.state = StateIdle
		m.currentTrack = nil
		m.sendEventLocked(Event{Type: EventNowPlayingUpdate, EventID: m.eventID, Track: nil, State: m.state})
		m.mu.Unlock()
		return
	}

	if err := m.PlayNext(context.Background()); err != nil {
		zlog.Error().Err(err).Str("event_id", m.eventID).Msg("playback: auto-advance failed")
	}
}

// Pause pauses the provider and cancels the transition timer.
func (m *Machine) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StatePlaying {
		m.mu.Unlock()
		return coreerr.Conflict("event %s is not playing", m.eventID)
	}
	m.cancelTimerLocked()
	deviceID := m.deviceID
	m.mu.Unlock()

	if err := m.callProviderWithRetry(ctx, func(c context.Context) error {
		return m.provider.PausePlayback(c, m.venueID, deviceID)
	}); err != nil {
		return coreerr.Provider(err, "pause playback")
	}

	m.mu.Lock()
	m.state = StatePaused
	m.sendEventLocked(Event{Type: EventStateChanged, EventID: m.eventID, Track: m.currentTrack, State: m.state})
	m.mu.Unlock()
	return nil
}

// Resume resumes a paused track, or is equivalent to PlayNext if nothing
// was playing.
func (m *Machine) Resume(ctx context.Context) error {
	m.mu.Lock()
	if m.currentTrack == nil {
		m.mu.Unlock()
		return m.PlayNext(ctx)
	}
	if m.state != StatePaused {
		m.mu.Unlock()
		return coreerr.Conflict("event %s is not paused", m.eventID)
	}
	deviceID := m.deviceID
	item := m.currentTrack
	gen := m.generation
	m.mu.Unlock()

	if err := m.callProviderWithRetry(ctx, func(c context.Context) error {
		return m.provider.PlayTrack(c, m.venueID, item.TrackURI, deviceID)
	}); err != nil {
		return coreerr.Provider(err, "resume playback")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil
	}
	m.state = StatePlaying
	m.scheduleTransitionLocked()
	m.sendEventLocked(Event{Type: EventStateChanged, EventID: m.eventID, Track: m.currentTrack, State: m.state})
	return nil
}

// Skip cancels the timer and immediately advances to the next track.
func (m *Machine) Skip(ctx context.Context) error {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.generation++
	skipped := m.currentTrack
	m.mu.Unlock()

	if skipped != nil {
		if err := m.queue.Skip(ctx, m.eventID, skipped.TrackID, "skipped", toWallTime(time.Now())); err != nil {
			zlog.Warn().Err(err).Str("event_id", m.eventID).Msg("playback: mark skipped failed")
		}
	}

	return m.PlayNext(ctx)
}

// Stop does a best-effort pause, cancels the timer, and tears down
// playback state entirely.
func (m *Machine) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.generation++
	deviceID := m.deviceID
	wasActive := m.state != StateAbsent
	m.mu.Unlock()

	if wasActive && deviceID != "" {
		if err := m.callProviderWithRetry(ctx, func(c context.Context) error {
			return m.provider.PausePlayback(c, m.venueID, deviceID)
		}); err != nil {
			zlog.Warn().Err(err).Str("event_id", m.eventID).Msg("playback: best-effort pause on stop failed")
		}
	}

	m.mu.Lock()
	m.state = StateAbsent
	m.currentTrack = nil
	m.startedAt = time.Time{}
	m.sendEventLocked(Event{Type: EventNowPlayingUpdate, EventID: m.eventID, Track: nil, State: m.state})
	m.mu.Unlock()
	return nil
}

// Close cancels every timer deterministically and releases resources.
// Safe to call once, on process/event shutdown.
func (m *Machine) Close() {
	m.mu.Lock()
	m.cancelTimerLocked()
	m.cancel()
	m.mu.Unlock()
	close(m.eventCh)
}

func (m *Machine) cancelTimerLocked() {
	if m.timerCancel != nil {
		m.timerCancel()
		m.timerCancel = nil
	}
}

// sendEventLocked sends without blocking; a full channel (a stalled
// consumer) drops the event rather than stalling the state machine. Must
// be called with m.mu held.
func (m *Machine) sendEventLocked(e Event) {
	select {
	case m.eventCh <- e:
	case <-m.ctx.Done():
	default:
	}
}

// callProviderWithRetry bounds a provider call with providerCallTimeout
// and retries exactly once on timeout before surfacing the failure, per
// spec.md §5.
func (m *Machine) callProviderWithRetry(ctx context.Context, fn func(context.Context) error) error {
	call := func() error {
		callCtx, cancel := context.WithTimeout(ctx, providerCallTimeout)
		defer cancel()
		return fn(callCtx)
	}

	err := call()
	if err == nil {
		return nil
	}
	if err != context.DeadlineExceeded {
		return err
	}

	zlog.Warn().Str("event_id", m.eventID).Msg("playback: provider call timed out, retrying once")
	return call()
}

// startWallClockTimer fires callback once duration has elapsed, measured
// against a wall-clock end-time re-checked every 100ms rather than a bare
// time.Timer, avoiding drift between monotonic and wall clocks on
// long-running processes. Returns a cancel function.
func (m *Machine) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if toWallTime(time.Now()).After(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic reading from t so durations computed
// from it reflect wall-clock time only.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
