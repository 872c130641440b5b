package matchmaking

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tablewire/rummy/internal/store"
)

func newTestQueue() *Queue {
	return New(store.NewMemory(store.DefaultTTLs(), nil), log.New(io.Discard))
}

func entry(playerID string, size int) store.QueueEntry {
	return store.QueueEntry{PlayerID: playerID, PlayerName: playerID, GameSize: size}
}

func TestJoinRejectsBadSize(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	for _, size := range []int{0, 1, 7, -3} {
		_, _, err := q.Join(ctx, entry("p1", size))
		assert.ErrorIs(t, err, ErrBadGameSize, "size %d", size)
	}
}

func TestJoinFormsMatchAtCapacity(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	match, count, err := q.Join(ctx, entry("p1", 2))
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, 1, count)

	match, count, err = q.Join(ctx, entry("p2", 2))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, match.Size)
	require.Len(t, match.Entries, 2)
	assert.Equal(t, "p1", match.Entries[0].PlayerID, "arrival order")
	assert.Equal(t, "p2", match.Entries[1].PlayerID)
}

func TestJoinDifferentSizesDoNotMix(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	match, _, err := q.Join(ctx, entry("p1", 2))
	require.NoError(t, err)
	assert.Nil(t, match)

	match, _, err = q.Join(ctx, entry("p2", 3))
	require.NoError(t, err)
	assert.Nil(t, match, "one size-2 and one size-3 waiter never match")
}

func TestCancel(t *testing.T) {
	q := newTestQueue()
	ctx := context.Background()

	_, _, err := q.Join(ctx, entry("p1", 2))
	require.NoError(t, err)

	require.NoError(t, q.Cancel(ctx, "p1"))
	require.NoError(t, q.Cancel(ctx, "p1"), "double cancel is a no-op")
	require.NoError(t, q.Cancel(ctx, "never-queued"))

	// The bucket is empty again; the next joiner waits alone
	match, count, err := q.Join(ctx, entry("p2", 2))
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, 1, count)
}

// Concurrent joins that together supply exactly two full games must
// yield exactly two matches, with every player in exactly one of them.
func TestConcurrentJoinsFormDisjointMatches(t *testing.T) {
	const gameSize = 4
	const players = 2 * gameSize

	q := newTestQueue()
	ctx := context.Background()

	var mu sync.Mutex
	var matches []*Match

	var g errgroup.Group
	for i := 0; i < players; i++ {
		id := fmt.Sprintf("p%d", i)
		g.Go(func() error {
			match, _, err := q.Join(ctx, entry(id, gameSize))
			if err != nil {
				return err
			}
			if match != nil {
				mu.Lock()
				matches = append(matches, match)
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, matches, 2, "exactly two full games")

	seen := make(map[string]bool)
	for _, m := range matches {
		require.Len(t, m.Entries, gameSize)
		for _, e := range m.Entries {
			assert.False(t, seen[e.PlayerID], "player %s matched twice", e.PlayerID)
			seen[e.PlayerID] = true
		}
	}
	assert.Len(t, seen, players, "no player left behind")

	// Matched players must not linger in the bucket
	match, count, err := q.Join(ctx, entry("late", gameSize))
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, 1, count)
}
