package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"tenantcrm.dev/internal/ids"
	"tenantcrm.dev/internal/obs"
)

const (
	DefaultQueueSize    = 1024
	defaultWriteTimeout = 5 * time.Second
)

// Outcomes reported on crm_audit_entries_total.
const (
	OutcomeWritten = "written"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// Recorder writes audit entries on a background worker so that neither a
// slow nor a failing store can affect the request that produced them.
type Recorder struct {
	store        Store
	queue        chan Entry
	writeTimeout time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ Sink = (*Recorder)(nil)

// Option configures a Recorder.
type Option func(*Recorder)

// WithQueueSize bounds the number of entries waiting to be written.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Entry, n)
		}
	}
}

// WithWriteTimeout bounds each store append.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder starts the background writer. Call Close to drain it.
func NewRecorder(store Store, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	r := &Recorder{
		store:        store,
		queue:        make(chan Entry, DefaultQueueSize),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.run()
	return r, nil
}

// Record enqueues entry. It never blocks: when the queue is full or the
// recorder is closed the entry is dropped, logged and counted.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	meta := RequestMetaFromContext(ctx)
	if entry.RequestID == "" {
		entry.RequestID = meta.RequestID
	}
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(entry, "recorder closed")
		return
	}
	select {
	case r.queue <- entry:
	default:
		r.drop(entry, "queue full")
	}
}

func (r *Recorder) drop(entry Entry, why string) {
	obs.AuditOutcome(OutcomeDropped)
	obs.Logger().Warn().
		Str("audit_action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("tenant_id", entry.TenantID).
		Str("request_id", entry.RequestID).
		Msg("audit entry dropped: " + why)
}

func (r *Recorder) run() {
	defer close(r.done)
	for entry := range r.queue {
		r.write(entry)
	}
}

func (r *Recorder) write(entry Entry) {
	// Detached from the originating request so client cancellation cannot
	// abort the write.
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := r.store.Append(ctx, entry); err != nil {
		obs.AuditOutcome(OutcomeFailed)
		obs.Logger().Error().Err(err).
			Str("audit_id", entry.ID).
			Str("audit_action", string(entry.Action)).
			Str("resource_type", entry.ResourceType).
			Str("resource_id", entry.ResourceID).
			Str("tenant_id", entry.TenantID).
			Str("request_id", entry.RequestID).
			Msg("audit write failed")
		return
	}
	obs.AuditOutcome(OutcomeWritten)
}

// Close stops accepting entries and waits for queued ones to be written or
// for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Discard is a Sink that drops everything; used where auditing is disabled.
type Discard struct{}

func (Discard) Record(context.Context, Entry) {}
