package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatline/beatline/internal/coreerr"
	"github.com/beatline/beatline/internal/domain/event"
)

func testRules() event.VotingRules {
	return event.VotingRules{
		VotesPerHour:             3,
		CooldownSeconds:          30,
		SameTrackCooldownSeconds: 7200,
		IPHourlyMultiplier:       2,
		MaxQueueSize:             200,
	}
}

func TestLedger_Admit_FirstVoteAlwaysAdmitted(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	err := l.Admit("s1", "1.2.3.4", "t1", now)
	assert.NoError(t, err)
}

func TestLedger_Admit_SessionCooldown(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	require.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))

	err := l.Admit("s1", "1.2.3.4", "t2", now.Add(5*time.Second))
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, coreerr.CodeVoteDenied, ce.Code)
	assert.Equal(t, ReasonCooldown, ce.Reason)
	assert.InDelta(t, 25*time.Second, ce.RetryAfter, float64(time.Second))
}

func TestLedger_Admit_SessionHourlyCap(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	require.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))
	require.NoError(t, l.Admit("s1", "1.2.3.4", "t2", now.Add(31*time.Second)))
	require.NoError(t, l.Admit("s1", "1.2.3.4", "t3", now.Add(62*time.Second)))

	err := l.Admit("s1", "1.2.3.4", "t4", now.Add(93*time.Second))
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ReasonHourlyCap, ce.Reason)
}

func TestLedger_Admit_SameTrackSuppression(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	require.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))

	// 40s later is past cooldown (30s) but within same-track window (7200s).
	err := l.Admit("s1", "1.2.3.4", "t1", now.Add(40*time.Second))
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ReasonSameTrack, ce.Reason)

	// A different session voting for the same track is unaffected.
	assert.NoError(t, l.Admit("s2", "5.6.7.8", "t1", now.Add(40*time.Second)))
}

func TestLedger_Admit_NetworkCapAcrossSessions(t *testing.T) {
	rules := testRules()
	l := NewLedger(rules)
	now := time.Now()
	ip := "9.9.9.9"

	// ipHourlyCap = votesPerHour(3) * multiplier(2) = 6, spread across distinct
	// sessions so no single-session check trips first.
	sessions := []string{"a", "b", "c", "d", "e", "f"}
	for i, sid := range sessions {
		require.NoError(t, l.Admit(sid, ip, "t1", now.Add(time.Duration(i)*time.Second)))
	}

	err := l.Admit("g", ip, "t1", now.Add(10*time.Second))
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNetworkCap, ce.Reason)
}

func TestLedger_BanAndUnban(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	l.Ban("s1")
	err := l.Admit("s1", "1.2.3.4", "t1", now)
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ReasonBanned, ce.Reason)

	l.Unban("s1")
	assert.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))
}

func TestLedger_Sweep_DropsExpiredEntries(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	require.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))
	l.Sweep(now.Add(3 * time.Hour))

	l.mu.Lock()
	_, exists := l.sessions["s1"]
	l.mu.Unlock()
	assert.False(t, exists)
}

func TestLedger_CheckOrder_BannedWinsOverCooldown(t *testing.T) {
	l := NewLedger(testRules())
	now := time.Now()

	require.NoError(t, l.Admit("s1", "1.2.3.4", "t1", now))
	l.Ban("s1")

	err := l.Admit("s1", "1.2.3.4", "t2", now.Add(time.Second))
	ce, ok := coreerr.As(err)
	require.True(t, ok)
	assert.Equal(t, ReasonBanned, ce.Reason, "banned check must win even though cooldown would also deny")
}
