// Package admission implements C1: per-session and per-network vote rate
// limiting, cooldowns and same-track suppression. It is pure in-memory and
// never performs I/O, matching spec.md §4.1's failure-mode requirement
// that admission never blocks the goroutine on I/O.
//
// The ordered, first-failure-wins check structure is grounded on
// internal/app/filter's Chain (Execute returns on the first rejecting
// filter), adapted here from "is this track acceptable" to "is this vote
// admissible", with its own Reason/record types rather than reusing the
// filter package's Track/Session-specific ones.
package admission

import (
	"sync"
	"time"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/domain/event"
)

// Reason is the denial reason returned in a VOTE_DENIED error.
const (
	ReasonBanned     = "banned"
	ReasonCooldown   = "cooldown"
	ReasonHourlyCap  = "hourly-cap"
	ReasonSameTrack  = "same-track"
	ReasonNetworkCap = "network-cap"
)

type vote struct {
	trackID string
	ip      string
	at      time.Time
}

type sessionState struct {
	votes  []vote // oldest first, pruned by Sweep
	banned bool
}

// Ledger is the ephemeral, per-event vote ledger C1 owns. One Ledger
// exists per active event, created and destroyed alongside the event's
// coordinator actor.
type Ledger struct {
	mu       sync.Mutex
	rules    event.VotingRules
	sessions map[string]*sessionState
	ipVotes  map[string][]time.Time // ip -> timestamps, oldest first
}

// NewLedger creates an empty ledger governed by the given voting rules.
func NewLedger(rules event.VotingRules) *Ledger {
	return &Ledger{
		rules:    rules,
		sessions: make(map[string]*sessionState),
		ipVotes:  make(map[string][]time.Time),
	}
}

// Ban marks a session as banned; all further votes from it are denied
// with ReasonBanned until Unban is called. Adapted from the teacher's
// KickedFilter, giving venue staff a manual anti-abuse lever.
func (l *Ledger) Ban(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stateFor(sessionID).banned = true
}

// Unban clears a session's ban.
func (l *Ledger) Unban(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sessions[sessionID]; ok {
		s.banned = false
	}
}

func (l *Ledger) stateFor(sessionID string) *sessionState {
	s, ok := l.sessions[sessionID]
	if !ok {
		s = &sessionState{}
		l.sessions[sessionID] = s
	}
	return s
}

// Admit runs the ordered admission checks and, on success, atomically
// records the vote in the same critical section. Returns a
// *coreerr.CoreError with Code VOTE_DENIED on rejection.
func (l *Ledger) Admit(sessionID, ip, trackID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.stateFor(sessionID)

	if s.banned {
		return coreerr.Denied(ReasonBanned, 0)
	}

	cooldown := time.Duration(l.rules.CooldownSeconds) * time.Second
	if last := lastVoteAt(s.votes); !last.IsZero() {
		if elapsed := now.Sub(last); elapsed < cooldown {
			return coreerr.Denied(ReasonCooldown, cooldown-elapsed)
		}
	}

	hourAgo := now.Add(-time.Hour)
	if countSince(s.votes, hourAgo) >= l.rules.VotesPerHour {
		return coreerr.Denied(ReasonHourlyCap, oldestExpiry(s.votes, hourAgo, now))
	}

	sameTrackWindow := time.Duration(l.rules.SameTrackCooldownSeconds) * time.Second
	if sinceTrack, ok := lastVoteForTrack(s.votes, trackID); ok {
		if elapsed := now.Sub(sinceTrack); elapsed < sameTrackWindow {
			return coreerr.Denied(ReasonSameTrack, sameTrackWindow-elapsed)
		}
	}

	ipCap := l.rules.IPHourlyCap()
	ipHistory := l.ipVotes[ip]
	if countTimesSince(ipHistory, hourAgo) >= ipCap {
		return coreerr.Denied(ReasonNetworkCap, oldestTimeExpiry(ipHistory, hourAgo, now))
	}

	// Record: admission and recording are one atomic step under l.mu.
	s.votes = append(s.votes, vote{trackID: trackID, ip: ip, at: now})
	l.ipVotes[ip] = append(l.ipVotes[ip], now)

	return nil
}

// Sweep drops ledger entries older than the widest window
// (sameTrackCooldownSeconds, typically the largest configured window).
// Should be called periodically (spec.md §4.1: at least every 5 minutes).
func (l *Ledger) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	window := time.Duration(l.rules.SameTrackCooldownSeconds) * time.Second
	if window < time.Hour {
		window = time.Hour
	}
	cutoff := now.Add(-window)

	for id, s := range l.sessions {
		s.votes = pruneVotes(s.votes, cutoff)
		if len(s.votes) == 0 && !s.banned {
			delete(l.sessions, id)
		}
	}
	for ip, times := range l.ipVotes {
		pruned := pruneTimes(times, cutoff)
		if len(pruned) == 0 {
			delete(l.ipVotes, ip)
		} else {
			l.ipVotes[ip] = pruned
		}
	}
}

func lastVoteAt(votes []vote) time.Time {
	if len(votes) == 0 {
		return time.Time{}
	}
	return votes[len(votes)-1].at
}

func lastVoteForTrack(votes []vote, trackID string) (time.Time, bool) {
	for i := len(votes) - 1; i >= 0; i-- {
		if votes[i].trackID == trackID {
			return votes[i].at, true
		}
	}
	return time.Time{}, false
}

func countSince(votes []vote, since time.Time) int {
	n := 0
	for _, v := range votes {
		if v.at.After(since) {
			n++
		}
	}
	return n
}

func countTimesSince(times []time.Time, since time.Time) int {
	n := 0
	for _, t := range times {
		if t.After(since) {
			n++
		}
	}
	return n
}

// oldestExpiry estimates retryAfter as the time until the oldest vote in
// the current window rolls out of it.
func oldestExpiry(votes []vote, since, now time.Time) time.Duration {
	for _, v := range votes {
		if v.at.After(since) {
			return v.at.Add(time.Hour).Sub(now)
		}
	}
	return time.Hour
}

func oldestTimeExpiry(times []time.Time, since, now time.Time) time.Duration {
	for _, t := range times {
		if t.After(since) {
			return t.Add(time.Hour).Sub(now)
		}
	}
	return time.Hour
}

func pruneVotes(votes []vote, cutoff time.Time) []vote {
	kept := votes[:0:0]
	for _, v := range votes {
		if v.at.After(cutoff) {
			kept = append(kept, v)
		}
	}
	return kept
}

func pruneTimes(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
