// Package matchmaking holds the size-bucketed waiting lists. Players
// queue for a game of a given size; the moment a bucket holds enough of
// them, the oldest batch is released as one atomic unit for session
// creation.
package matchmaking

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/tablewire/rummy/internal/store"
)

const (
	// MinGameSize and MaxGameSize bound the queue buckets. Six is the
	// most a two-deck-plus-jokers pool can deal 13-card hands to.
	MinGameSize = 2
	MaxGameSize = 6
)

// ErrBadGameSize rejects a queue join outside the supported bucket range
var ErrBadGameSize = errors.New("unsupported game size")

// Match is a released batch of waiting players, in arrival order
type Match struct {
	Size    int
	Entries []store.QueueEntry
}

// Queue fronts the store's FIFO buckets with the matchmaking policy.
// All real state lives in the store, so any server process can form a
// match; atomicity comes from the store's batch pop, not from this
// process.
type Queue struct {
	store  store.Store
	logger *log.Logger
}

// New creates a matchmaking queue over the given store
func New(s store.Store, logger *log.Logger) *Queue {
	return &Queue{
		store:  s,
		logger: logger.WithPrefix("matchmaking"),
	}
}

// Join appends a player to their size bucket. If that brings the bucket
// to the requested size, the oldest gameSize entries (the joiner
// included) are popped atomically and returned as a Match; otherwise
// the current queue length is returned for the join acknowledgement.
func (q *Queue) Join(ctx context.Context, entry store.QueueEntry) (*Match, int, error) {
	size := entry.GameSize
	if size < MinGameSize || size > MaxGameSize {
		return nil, 0, fmt.Errorf("%w: %d", ErrBadGameSize, size)
	}

	count, err := q.store.QueuePush(ctx, size, entry)
	if err != nil {
		return nil, 0, err
	}
	if err := q.store.SetQueueRef(ctx, entry.PlayerID, store.QueueRef{
		GameSize: size,
		Entry:    entry,
	}); err != nil {
		return nil, 0, err
	}

	q.logger.Info("Player queued", "player", entry.PlayerID, "size", size, "waiting", count)

	if count < size {
		return nil, count, nil
	}

	// Pop exactly one batch; a concurrent joiner may have claimed it
	// first, in which case this player simply waits for the next one.
	batch, err := q.store.QueuePopN(ctx, size, size)
	if err != nil {
		return nil, count, err
	}
	if len(batch) == 0 {
		return nil, count, nil
	}

	for _, e := range batch {
		if err := q.store.ClearQueueRef(ctx, e.PlayerID); err != nil {
			q.logger.Warn("Failed to clear queue ref", "player", e.PlayerID, "error", err)
		}
	}

	q.logger.Info("Match formed", "size", size, "players", len(batch))
	return &Match{Size: size, Entries: batch}, count, nil
}

// Cancel removes a player from whatever bucket they are waiting in.
// No-op when the player is not queued (or their ref already expired).
func (q *Queue) Cancel(ctx context.Context, playerID string) error {
	ref, err := q.store.GetQueueRef(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := q.store.QueueRemove(ctx, ref.GameSize, playerID); err != nil {
		return err
	}
	if err := q.store.ClearQueueRef(ctx, playerID); err != nil {
		return err
	}

	q.logger.Info("Queue entry cancelled", "player", playerID, "size", ref.GameSize)
	return nil
}
