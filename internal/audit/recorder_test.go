package audit

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcrm.dev/internal/obs"
)

type memStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (s *memStore) Append(ctx context.Context, e Entry) error {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func (s *memStore) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func TestRecorderEnrichesFromContext(t *testing.T) {
	store := &memStore{}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rec, err := NewRecorder(store, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	ctx := WithRequestMeta(context.Background(), RequestMeta{RequestID: "req-1", IPAddress: "192.0.2.1", UserAgent: "test"})
	rec.Record(ctx, Entry{TenantID: "t1", ActorID: "u1", Action: ActionCreate, ResourceType: "accounts", ResourceID: "a1"})
	require.NoError(t, rec.Close(context.Background()))

	entries := store.all()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "192.0.2.1", e.IPAddress)
	assert.Equal(t, "test", e.UserAgent)
	assert.Equal(t, fixed, e.OccurredAt)
	assert.Equal(t, ActionCreate, e.Action)
}

func TestRecorderSurvivesCancelledRequestContext(t *testing.T) {
	store := &memStore{}
	rec, err := NewRecorder(store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rec.Record(ctx, Entry{Action: ActionDelete, ResourceType: "leads"})
	cancel()
	require.NoError(t, rec.Close(context.Background()))
	assert.Len(t, store.all(), 1)
}

func TestRecorderStoreFailureIsLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.CaptureForTests(&buf)
	defer restore()

	store := &memStore{err: errors.New("db down")}
	rec, err := NewRecorder(store)
	require.NoError(t, err)

	before := obs.AuditOutcomeCount(OutcomeFailed)
	rec.Record(context.Background(), Entry{Action: ActionUpdate, ResourceType: "contacts", ResourceID: "c1"})
	require.NoError(t, rec.Close(context.Background()))

	assert.Equal(t, before+1, obs.AuditOutcomeCount(OutcomeFailed))
	assert.Contains(t, buf.String(), "audit write failed")
	assert.Contains(t, buf.String(), "db down")
}

func TestRecorderDropsWhenQueueFull(t *testing.T) {
	var buf bytes.Buffer
	restore := obs.CaptureForTests(&buf)
	defer restore()

	store := &memStore{started: make(chan struct{}, 1), gate: make(chan struct{})}
	rec, err := NewRecorder(store, WithQueueSize(1))
	require.NoError(t, err)

	before := obs.AuditOutcomeCount(OutcomeDropped)
	rec.Record(context.Background(), Entry{Action: ActionCreate, ResourceID: "1"})
	<-store.started
	rec.Record(context.Background(), Entry{Action: ActionCreate, ResourceID: "2"})
	rec.Record(context.Background(), Entry{Action: ActionCreate, ResourceID: "3"})

	assert.Equal(t, before+1, obs.AuditOutcomeCount(OutcomeDropped))
	close(store.gate)
	require.NoError(t, rec.Close(context.Background()))

	entries := store.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ResourceID)
	assert.Equal(t, "2", entries[1].ResourceID)
	assert.Contains(t, buf.String(), "queue full")
}

func TestRecorderRecordAfterCloseDrops(t *testing.T) {
	store := &memStore{}
	rec, err := NewRecorder(store)
	require.NoError(t, err)
	require.NoError(t, rec.Close(context.Background()))

	before := obs.AuditOutcomeCount(OutcomeDropped)
	rec.Record(context.Background(), Entry{Action: ActionCreate})
	assert.Equal(t, before+1, obs.AuditOutcomeCount(OutcomeDropped))
	assert.Empty(t, store.all())
	assert.NoError(t, rec.Close(context.Background()))
}

func TestNewRecorderRequiresStore(t *testing.T) {
	_, err := NewRecorder(nil)
	require.Error(t, err)
}
