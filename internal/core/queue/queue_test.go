package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatline/beatline/internal/domain/event"
	"github.com/beatline/beatline/internal/domain/queueitem"
)

// fakeRepo is a minimal in-memory repository.Repository for exercising
// the queue manager without a database.
type fakeRepo struct {
	mu    sync.Mutex
	items map[string]queueitem.QueueItem
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]queueitem.QueueItem)}
}

func (r *fakeRepo) FindEvent(ctx context.Context, id string) (*event.Event, error) { return nil, nil }
func (r *fakeRepo) FindVenueActiveEvent(ctx context.Context, venueID string) (*event.Event, error) {
	return nil, nil
}
func (r *fakeRepo) ListNonTerminalEventsForVenue(ctx context.Context, venueID string) ([]event.Event, error) {
	return nil, nil
}
func (r *fakeRepo) CreateEvent(ctx context.Context, e event.Event) error { return nil }
func (r *fakeRepo) UpdateEvent(ctx context.Context, e event.Event) error { return nil }
func (r *fakeRepo) UpdateEventStatus(ctx context.Context, id string, status event.Status, actualStart, actualEnd *time.Time) error {
	return nil
}
func (r *fakeRepo) UpdateEventStats(ctx context.Context, id string, totalTracks int) error {
	return nil
}
func (r *fakeRepo) DeleteEvent(ctx context.Context, id string) error { return nil }

func (r *fakeRepo) FindQueueItem(ctx context.Context, eventID, trackID string, unplayedOnly bool) (*queueitem.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range r.items {
		if it.EventID == eventID && it.TrackID == trackID {
			if unplayedOnly && it.IsPlayed {
				continue
			}
			cp := it
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListQueueItems(ctx context.Context, eventID string, unplayedOnly bool) ([]queueitem.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []queueitem.QueueItem
	for _, it := range r.items {
		if it.EventID != eventID {
			continue
		}
		if unplayedOnly && it.IsPlayed {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *fakeRepo) UpsertQueueItem(ctx context.Context, row queueitem.QueueItem) (*queueitem.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[row.ID] = row
	cp := row
	return &cp, nil
}

func (r *fakeRepo) UpdateQueueScoreAndVote(ctx context.Context, id string, voteCount int, lastVotedAt time.Time, scoreVal int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil
	}
	it.VoteCount = voteCount
	it.LastVotedAt = lastVotedAt
	it.Score = scoreVal
	r.items[id] = it
	return nil
}

func (r *fakeRepo) UpdatePositionsBatch(ctx context.Context, positions map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pos := range positions {
		it, ok := r.items[id]
		if !ok {
			continue
		}
		it.Position = pos
		r.items[id] = it
	}
	return nil
}

func (r *fakeRepo) MarkQueueItem(ctx context.Context, id string, isPlayed bool, playedAt *time.Time, skipped bool, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil
	}
	it.IsPlayed = isPlayed
	it.PlayedAt = playedAt
	it.Skipped = skipped
	it.SkippedReason = reason
	r.items[id] = it
	return nil
}

func (r *fakeRepo) DeleteQueueItem(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) DeleteUnplayedForEvent(ctx context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.EventID == eventID && !it.IsPlayed {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *fakeRepo) CountVotesForEvent(ctx context.Context, eventID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, it := range r.items {
		if it.EventID == eventID {
			total += it.VoteCount
		}
	}
	return total, nil
}

func (r *fakeRepo) ListRecentlyPlayed(ctx context.Context, eventID string, limit int, since time.Duration) ([]queueitem.RecentPlay, error) {
	return nil, nil
}

func TestManager_AddVote_NewTrackGetsPositionOne(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()

	item, err := m.AddVote(context.Background(), "e1", queueitem.AddVote{
		SessionID: "s1", TrackID: "t1", ArtistName: "A",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, item.VoteCount)
	assert.Equal(t, 1, item.Position)
	assert.Equal(t, 45, item.Score) // base(10) + recency(30) + diversity(5)
}

func TestManager_AddVote_SecondVoteMerges(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()

	_, err := m.AddVote(context.Background(), "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)

	item, err := m.AddVote(context.Background(), "e1", queueitem.AddVote{SessionID: "s2", TrackID: "t1", ArtistName: "A"}, now.Add(30*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 2, item.VoteCount)
	assert.Equal(t, 1, item.Position)

	rows, err := m.GetQueue(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestManager_GetQueue_OrdersByScoreThenAddedAt(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()

	_, err := m.AddVote(context.Background(), "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)
	_, err = m.AddVote(context.Background(), "e1", queueitem.AddVote{SessionID: "s2", TrackID: "t2", ArtistName: "B"}, now.Add(time.Second))
	require.NoError(t, err)

	rows, err := m.GetQueue(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Equal score (both first vote, empty history) -> tie break addedAt asc.
	assert.Equal(t, "t1", rows[0].TrackID)
	assert.Equal(t, "t2", rows[1].TrackID)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, 2, rows[1].Position)
}

func TestManager_Remove_ReordersRemaining(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()
	ctx := context.Background()

	_, err := m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)
	_, err = m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s2", TrackID: "t2", ArtistName: "B"}, now.Add(time.Second))
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, "e1", "t1"))

	rows, err := m.GetQueue(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "t2", rows[0].TrackID)
	assert.Equal(t, 1, rows[0].Position)
}

func TestManager_Remove_NotFound(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	err := m.Remove(context.Background(), "e1", "missing")
	assert.Error(t, err)
}

func TestManager_MarkPlayed_RemovesFromUnplayedOrdering(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()
	ctx := context.Background()

	_, err := m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)

	require.NoError(t, m.MarkPlayed(ctx, "e1", "t1", now.Add(time.Minute)))

	rows, err := m.GetQueue(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, rows, 0)
}

func TestManager_Skip_SetsSkippedFlag(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()
	ctx := context.Background()

	_, err := m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)

	require.NoError(t, m.Skip(ctx, "e1", "t1", "requested-by-admin", now.Add(time.Minute)))

	repo.mu.Lock()
	var found queueitem.QueueItem
	for _, it := range repo.items {
		found = it
	}
	repo.mu.Unlock()

	assert.True(t, found.Skipped)
	assert.Equal(t, "requested-by-admin", found.SkippedReason)
	assert.True(t, found.IsPlayed)
}

func TestManager_NextTrack_EmptyQueueReturnsNil(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	item, err := m.NextTrack(context.Background(), "e1")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestManager_Clear_RemovesAllUnplayed(t *testing.T) {
	repo := newFakeRepo()
	m := NewManager(repo)
	now := time.Now()
	ctx := context.Background()

	_, err := m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s1", TrackID: "t1", ArtistName: "A"}, now)
	require.NoError(t, err)
	_, err = m.AddVote(ctx, "e1", queueitem.AddVote{SessionID: "s2", TrackID: "t2", ArtistName: "B"}, now)
	require.NoError(t, err)

	require.NoError(t, m.Clear(ctx, "e1"))

	rows, err := m.GetQueue(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, rows, 0)
}
