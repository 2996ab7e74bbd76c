// Package audit implements the append-only audit sink. Records are
// queued in-process and flushed by a background worker; persistence
// failures are retried without reordering. When the queue overflows or
// the store stays down, the sink reports itself unhealthy and the auth
// facade refuses write actions until it recovers. That refusal is the
// system's safety valve against unaudited privilege use.
package audit

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
)

// Publisher mirrors flushed records to an external transport (message
// broker). Publish errors are logged and ignored; the database row is
// the record of truth.
type Publisher interface {
	Publish(ctx context.Context, rec model.AuditRecord)
}

// Sink buffers audit records and writes them in order.
type Sink struct {
	store     repository.AuditStore
	publisher Publisher
	queue     chan model.AuditRecord
	retry     time.Duration
	degraded  atomic.Bool

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a Sink.
type Option func(*Sink)

// WithPublisher attaches a broker fan-out for flushed records.
func WithPublisher(p Publisher) Option {
	return func(s *Sink) { s.publisher = p }
}

// WithRetryInterval overrides the delay between failed flush attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(s *Sink) { s.retry = d }
}

// NewSink builds a sink with the given queue capacity and starts its
// flusher. Call Close to drain and stop.
func NewSink(store repository.AuditStore, capacity int, opts ...Option) *Sink {
	if capacity < 1 {
		capacity = 1
	}
	s := &Sink{
		store: store,
		queue: make(chan model.AuditRecord, capacity),
		retry: 500 * time.Millisecond,
		stop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

// Healthy reports whether the sink can currently guarantee that new
// records will be persisted. The facade refuses write actions while
// this is false.
func (s *Sink) Healthy() bool { return !s.degraded.Load() }

// Record enqueues one audit record. It never blocks and never surfaces
// transport errors; a full queue flips the sink into degraded mode and
// the record is reported as not accepted.
func (s *Sink) Record(rec model.AuditRecord) bool {
	select {
	case s.queue <- rec:
		return true
	default:
		if s.degraded.CompareAndSwap(false, true) {
			log.Printf("audit-sink: queue full, entering degraded mode")
		}
		return false
	}
}

// flushLoop drains the queue in order. A record that fails to persist
// is retried until it succeeds, so later records never overtake it.
func (s *Sink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.queue:
			s.persist(rec)
		case <-s.stop:
			// Drain whatever is left before exiting.
			for {
				select {
				case rec := <-s.queue:
					s.persist(rec)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) persist(rec model.AuditRecord) {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.store.Append(ctx, &rec)
		cancel()
		if err == nil {
			if s.publisher != nil {
				pctx, pcancel := context.WithTimeout(context.Background(), 2*time.Second)
				s.publisher.Publish(pctx, rec)
				pcancel()
			}
			// The store accepted a record and the queue has headroom
			// again: recover.
			if len(s.queue) < cap(s.queue) && s.degraded.CompareAndSwap(true, false) {
				log.Printf("audit-sink: store recovered, leaving degraded mode")
			}
			return
		}
		if s.degraded.CompareAndSwap(false, true) {
			log.Printf("audit-sink: append failed, entering degraded mode: %v", err)
		}
		select {
		case <-time.After(s.retry):
		case <-s.stop:
			// One last attempt on shutdown, then give up on this record.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.store.Append(ctx, &rec); err != nil {
				log.Printf("audit-sink: dropping record on shutdown: %v", err)
			}
			cancel()
			return
		}
	}
}

// Close stops the flusher after draining queued records. Safe to call
// more than once.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}
