package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/tablewire/rummy/internal/game"
)

const (
	bucketSessions = "rummy_sessions"
	bucketRooms    = "rummy_sockets"
	bucketQueues   = "rummy_queues"
	bucketRefs     = "rummy_queue_refs"

	// casAttempts bounds the retry loop for queue read-modify-write
	// cycles. Contention on a single queue key is short-lived; running
	// out means the cluster is badly overloaded.
	casAttempts = 16
)

// NATS is the distributed Store over JetStream KeyValue buckets. One
// bucket per record family so each can carry its own TTL; session
// writes map the CAS version straight onto KV revisions, and queue
// buckets hold each FIFO as a single revision-guarded list value so
// pops are atomic batches.
type NATS struct {
	nc       *nats.Conn
	sessions nats.KeyValue
	rooms    nats.KeyValue
	queues   nats.KeyValue
	refs     nats.KeyValue
	logger   *log.Logger
}

// OpenNATS connects to a NATS server and ensures the buckets exist
func OpenNATS(url string, ttl TTLs, logger *log.Logger) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("rummyd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	s := &NATS{nc: nc, logger: logger.WithPrefix("store")}
	for _, b := range []struct {
		name string
		ttl  time.Duration
		dst  *nats.KeyValue
	}{
		{bucketSessions, ttl.Session, &s.sessions},
		{bucketRooms, ttl.Index, &s.rooms},
		{bucketQueues, 0, &s.queues},
		{bucketRefs, ttl.QueueRef, &s.refs},
	} {
		kv, err := ensureBucket(js, b.name, b.ttl)
		if err != nil {
			nc.Close()
			return nil, err
		}
		*b.dst = kv
	}

	s.logger.Info("Connected to NATS store", "url", url)
	return s, nil
}

func ensureBucket(js nats.JetStreamContext, name string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := js.KeyValue(name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("open bucket %s: %w", name, err)
	}

	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket: name,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return kv, nil
}

// GetSession implements Store
func (s *NATS) GetSession(_ context.Context, roomID string) (*game.SessionRecord, Version, error) {
	e, err := s.sessions.Get(roomID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get session %s: %w", roomID, err)
	}

	var rec game.SessionRecord
	if err := json.Unmarshal(e.Value(), &rec); err != nil {
		return nil, 0, fmt.Errorf("%w: session %s: %v", ErrCorrupt, roomID, err)
	}
	return &rec, Version(e.Revision()), nil
}

// PutSession implements Store
func (s *NATS) PutSession(_ context.Context, rec *game.SessionRecord, v Version) (Version, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	var rev uint64
	if v == 0 {
		rev, err = s.sessions.Create(rec.RoomID, data)
		if errors.Is(err, nats.ErrKeyExists) {
			return 0, ErrConflict
		}
	} else {
		rev, err = s.sessions.Update(rec.RoomID, data, uint64(v))
		if err != nil {
			// Update only fails on a lost revision race (or a dead
			// connection, which the reconnect handler owns)
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("put session %s: %w", rec.RoomID, err)
	}
	return Version(rev), nil
}

// DeleteSession implements Store
func (s *NATS) DeleteSession(_ context.Context, roomID string) error {
	err := s.sessions.Delete(roomID)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("delete session %s: %w", roomID, err)
	}
	return nil
}

// SetRoomFor implements Store
func (s *NATS) SetRoomFor(_ context.Context, socketID, roomID string) error {
	if _, err := s.rooms.Put(socketID, []byte(roomID)); err != nil {
		return fmt.Errorf("set room index: %w", err)
	}
	return nil
}

// RoomFor implements Store
func (s *NATS) RoomFor(_ context.Context, socketID string) (string, error) {
	e, err := s.rooms.Get(socketID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get room index: %w", err)
	}
	return string(e.Value()), nil
}

// ClearRoomFor implements Store
func (s *NATS) ClearRoomFor(_ context.Context, socketID string) error {
	err := s.rooms.Delete(socketID)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("clear room index: %w", err)
	}
	return nil
}

func queueKey(size int) string {
	return fmt.Sprintf("size-%d", size)
}

// mutateQueue runs a CAS loop over one queue bucket's list value
func (s *NATS) mutateQueue(size int, fn func(q []QueueEntry) ([]QueueEntry, bool)) ([]QueueEntry, error) {
	key := queueKey(size)
	for attempt := 0; attempt < casAttempts; attempt++ {
		var cur []QueueEntry
		var rev uint64

		e, err := s.queues.Get(key)
		switch {
		case err == nil:
			rev = e.Revision()
			if len(e.Value()) > 0 {
				if err := json.Unmarshal(e.Value(), &cur); err != nil {
					return nil, fmt.Errorf("%w: queue %s: %v", ErrCorrupt, key, err)
				}
			}
		case errors.Is(err, nats.ErrKeyNotFound):
		default:
			return nil, fmt.Errorf("get queue %s: %w", key, err)
		}

		next, changed := fn(cur)
		if !changed {
			return next, nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return nil, err
		}

		if rev == 0 {
			_, err = s.queues.Create(key, data)
			if errors.Is(err, nats.ErrKeyExists) {
				continue
			}
		} else {
			_, err = s.queues.Update(key, data, rev)
			if err != nil {
				s.logger.Debug("Queue CAS retry", "key", key, "attempt", attempt)
				continue
			}
		}
		if err != nil {
			return nil, fmt.Errorf("write queue %s: %w", key, err)
		}
		return next, nil
	}
	return nil, fmt.Errorf("queue %s: %w after %d attempts", key, ErrConflict, casAttempts)
}

// QueuePush implements Store
func (s *NATS) QueuePush(_ context.Context, size int, entry QueueEntry) (int, error) {
	q, err := s.mutateQueue(size, func(q []QueueEntry) ([]QueueEntry, bool) {
		return append(q, entry), true
	})
	if err != nil {
		return 0, err
	}
	return len(q), nil
}

// QueuePopN implements Store. The pop is all-or-nothing: the batch is
// claimed in the same CAS write that checked the length, so concurrent
// match formations can never split or double-claim it.
func (s *NATS) QueuePopN(_ context.Context, size, n int) ([]QueueEntry, error) {
	var batch []QueueEntry
	_, err := s.mutateQueue(size, func(q []QueueEntry) ([]QueueEntry, bool) {
		batch = nil
		if n <= 0 || len(q) < n {
			return q, false
		}
		batch = append([]QueueEntry(nil), q[:n]...)
		return q[n:], true
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// QueueRemove implements Store
func (s *NATS) QueueRemove(_ context.Context, size int, playerID string) error {
	_, err := s.mutateQueue(size, func(q []QueueEntry) ([]QueueEntry, bool) {
		for i, e := range q {
			if e.PlayerID == playerID {
				return append(q[:i:i], q[i+1:]...), true
			}
		}
		return q, false
	})
	return err
}

// SetQueueRef implements Store
func (s *NATS) SetQueueRef(_ context.Context, playerID string, ref QueueRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return err
	}
	if _, err := s.refs.Put(playerID, data); err != nil {
		return fmt.Errorf("set queue ref: %w", err)
	}
	return nil
}

// GetQueueRef implements Store
func (s *NATS) GetQueueRef(_ context.Context, playerID string) (QueueRef, error) {
	e, err := s.refs.Get(playerID)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return QueueRef{}, ErrNotFound
		}
		return QueueRef{}, fmt.Errorf("get queue ref: %w", err)
	}

	var ref QueueRef
	if err := json.Unmarshal(e.Value(), &ref); err != nil {
		return QueueRef{}, fmt.Errorf("%w: queue ref %s: %v", ErrCorrupt, playerID, err)
	}
	return ref, nil
}

// ClearQueueRef implements Store
func (s *NATS) ClearQueueRef(_ context.Context, playerID string) error {
	err := s.refs.Delete(playerID)
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("clear queue ref: %w", err)
	}
	return nil
}

// Close implements Store
func (s *NATS) Close() error {
	s.nc.Close()
	return nil
}
