// Package store is the persistence boundary: a keyed, expiring external
// store holding serialized sessions plus the auxiliary indices (channel
// to room, matchmaking queue buckets). Any server process holding the
// same store can serve a session.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tablewire/rummy/internal/game"
)

var (
	// ErrNotFound means the key is absent or its record has expired.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict means a compare-and-swap write lost to a concurrent
	// writer; the caller must reload and retry.
	ErrConflict = errors.New("store: version conflict")

	// ErrCorrupt means the stored payload fails to decode. The read
	// fails with a diagnosable error rather than yielding a
	// half-initialized session.
	ErrCorrupt = errors.New("store: corrupt record")
)

// Version is a compare-and-swap token for session writes. Zero means
// "create": the write fails with ErrConflict if the record exists.
type Version uint64

// QueueEntry is one player waiting in a matchmaking bucket
type QueueEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	GameSize   int    `json:"gameSize"`
}

// QueueRef is the reverse index from a player to their queue membership,
// kept for O(1) cancellation on disconnect.
type QueueRef struct {
	GameSize int        `json:"gameSize"`
	Entry    QueueEntry `json:"entry"`
}

// TTLs are the expiry windows for the stored record families. Abandoned
// sessions and queue refs self-expire even without a disconnect signal.
type TTLs struct {
	Session  time.Duration
	Index    time.Duration
	QueueRef time.Duration
}

// DefaultTTLs returns the standard expiry windows
func DefaultTTLs() TTLs {
	return TTLs{
		Session:  24 * time.Hour,
		Index:    24 * time.Hour,
		QueueRef: time.Hour,
	}
}

// Store is the external persistence interface. Session writes carry a
// CAS version so interleaved read-modify-write cycles from different
// processes cannot silently lose updates; queue pops are atomic
// batches so two match formations can never claim the same player.
type Store interface {
	// Sessions, keyed by room id.
	GetSession(ctx context.Context, roomID string) (*game.SessionRecord, Version, error)
	PutSession(ctx context.Context, rec *game.SessionRecord, v Version) (Version, error)
	DeleteSession(ctx context.Context, roomID string) error

	// Channel-to-room index, keyed by socket id.
	SetRoomFor(ctx context.Context, socketID, roomID string) error
	RoomFor(ctx context.Context, socketID string) (string, error)
	ClearRoomFor(ctx context.Context, socketID string) error

	// Per-size matchmaking FIFOs. QueuePopN removes and returns the
	// oldest n entries as one atomic operation, or nothing at all when
	// fewer than n are waiting; there is no partial pop.
	QueuePush(ctx context.Context, size int, e QueueEntry) (int, error)
	QueuePopN(ctx context.Context, size, n int) ([]QueueEntry, error)
	QueueRemove(ctx context.Context, size int, playerID string) error

	// Queue reverse index, keyed by player id.
	SetQueueRef(ctx context.Context, playerID string, ref QueueRef) error
	GetQueueRef(ctx context.Context, playerID string) (QueueRef, error)
	ClearQueueRef(ctx context.Context, playerID string) error

	Close() error
}
