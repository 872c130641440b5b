package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/tablewire/rummy/internal/game"
)

// Memory is the in-process Store: mutex-guarded maps with per-key
// deadlines. Single-node deployments and tests run on this backend; the
// quartz clock is injectable so expiry is testable without sleeping.
// Records are kept serialized so the round-trip matches an external
// store byte for byte.
type Memory struct {
	mu    sync.Mutex
	clock quartz.Clock
	ttl   TTLs

	sessions map[string]entry
	rooms    map[string]entry
	queues   map[int][]QueueEntry
	refs     map[string]entry
}

type entry struct {
	data    []byte
	version Version
	expires time.Time
}

// NewMemory creates an in-memory store. clock may be nil for real time.
func NewMemory(ttl TTLs, clock quartz.Clock) *Memory {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Memory{
		clock:    clock,
		ttl:      ttl,
		sessions: make(map[string]entry),
		rooms:    make(map[string]entry),
		queues:   make(map[int][]QueueEntry),
		refs:     make(map[string]entry),
	}
}

func (m *Memory) live(mp map[string]entry, key string) (entry, bool) {
	e, ok := mp[key]
	if !ok || m.clock.Now().After(e.expires) {
		return entry{}, false
	}
	return e, true
}

// GetSession implements Store
func (m *Memory) GetSession(_ context.Context, roomID string) (*game.SessionRecord, Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(m.sessions, roomID)
	if !ok {
		return nil, 0, ErrNotFound
	}

	var rec game.SessionRecord
	if err := json.Unmarshal(e.data, &rec); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, e.version, nil
}

// PutSession implements Store
func (m *Memory) PutSession(_ context.Context, rec *game.SessionRecord, v Version) (Version, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.live(m.sessions, rec.RoomID)
	if v == 0 && ok {
		return 0, ErrConflict
	}
	if v != 0 && (!ok || cur.version != v) {
		return 0, ErrConflict
	}

	next := v + 1
	m.sessions[rec.RoomID] = entry{
		data:    data,
		version: next,
		expires: m.clock.Now().Add(m.ttl.Session),
	}
	return next, nil
}

// DeleteSession implements Store
func (m *Memory) DeleteSession(_ context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, roomID)
	return nil
}

// SetRoomFor implements Store
func (m *Memory) SetRoomFor(_ context.Context, socketID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[socketID] = entry{
		data:    []byte(roomID),
		expires: m.clock.Now().Add(m.ttl.Index),
	}
	return nil
}

// RoomFor implements Store
func (m *Memory) RoomFor(_ context.Context, socketID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(m.rooms, socketID)
	if !ok {
		return "", ErrNotFound
	}
	return string(e.data), nil
}

// ClearRoomFor implements Store
func (m *Memory) ClearRoomFor(_ context.Context, socketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, socketID)
	return nil
}

// QueuePush implements Store
func (m *Memory) QueuePush(_ context.Context, size int, e QueueEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[size] = append(m.queues[size], e)
	return len(m.queues[size]), nil
}

// QueuePopN implements Store. The length check and the pop happen under
// one lock hold: concurrent callers racing for the same batch see
// either the full batch or nothing.
func (m *Memory) QueuePopN(_ context.Context, size, n int) ([]QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[size]
	if len(q) < n || n <= 0 {
		return nil, nil
	}

	batch := make([]QueueEntry, n)
	copy(batch, q[:n])
	m.queues[size] = q[n:]
	return batch, nil
}

// QueueRemove implements Store
func (m *Memory) QueueRemove(_ context.Context, size int, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.queues[size]
	for i, e := range q {
		if e.PlayerID == playerID {
			m.queues[size] = append(q[:i:i], q[i+1:]...)
			return nil
		}
	}
	return nil
}

// SetQueueRef implements Store
func (m *Memory) SetQueueRef(_ context.Context, playerID string, ref QueueRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[playerID] = entry{
		data:    data,
		expires: m.clock.Now().Add(m.ttl.QueueRef),
	}
	return nil
}

// GetQueueRef implements Store
func (m *Memory) GetQueueRef(_ context.Context, playerID string) (QueueRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(m.refs, playerID)
	if !ok {
		return QueueRef{}, ErrNotFound
	}

	var ref QueueRef
	if err := json.Unmarshal(e.data, &ref); err != nil {
		return QueueRef{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return ref, nil
}

// ClearQueueRef implements Store
func (m *Memory) ClearQueueRef(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refs, playerID)
	return nil
}

// Close implements Store
func (m *Memory) Close() error {
	return nil
}
