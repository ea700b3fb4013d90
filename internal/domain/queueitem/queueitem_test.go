package queueitem

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestByQueueOrder_SortsByScoreDescThenAddedAtAsc(t *testing.T) {
	now := time.Now()
	items := []QueueItem{
		{TrackID: "low-early", Score: 1, AddedAt: now},
		{TrackID: "high", Score: 5, AddedAt: now.Add(time.Minute)},
		{TrackID: "low-late", Score: 1, AddedAt: now.Add(time.Second)},
	}

	sort.Sort(ByQueueOrder(items))

	assert.Equal(t, []string{"high", "low-early", "low-late"}, trackIDs(items))
}

func trackIDs(items []QueueItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.TrackID
	}
	return out
}
