package incident

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manorfm/recoveryM/internal/domain"
)

// Sink receives incidents from the dispatcher goroutine
type Sink interface {
	Emit(ctx context.Context, incident domain.Incident)
}

// DefaultEmitTimeout bounds a single sink call.
const DefaultEmitTimeout = 5 * time.Second

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithEmitTimeout sets the deadline given to each sink call
func WithEmitTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.emitTimeout = timeout
		}
	}
}

// Dispatcher forwards incidents to a sink without blocking the engine.
// Incidents that do not fit in the buffer, or arrive after Close, are dropped
// and counted.
type Dispatcher struct {
	sink        Sink
	emitTimeout time.Duration
	ch          chan domain.Incident
	done        chan struct{}
	wg          sync.WaitGroup
	dropped     atomic.Uint64

	// mu orders sends on ch against Close, so nothing is queued after the
	// final drain.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewDispatcher starts the dispatcher goroutine
func NewDispatcher(bufferSize int, sink Sink, opts ...Option) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sink == nil {
		sink = NopSink{}
	}

	d := &Dispatcher{
		sink:        sink,
		emitTimeout: DefaultEmitTimeout,
		ch:          make(chan domain.Incident, bufferSize),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case incident := <-d.ch:
			d.emit(incident)
		case <-d.done:
			for {
				select {
				case incident := <-d.ch:
					d.emit(incident)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) emit(incident domain.Incident) {
	ctx, cancel := context.WithTimeout(context.Background(), d.emitTimeout)
	defer cancel()
	d.sink.Emit(ctx, incident)
}

// Log implements domain.IncidentLog
func (d *Dispatcher) Log(ctx context.Context, incident domain.Incident) {
	if d == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.ch <- incident:
	default:
		d.dropped.Add(1)
	}
}

// Close drains the buffer and stops the dispatcher. It is safe to call more
// than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of incidents lost to a full buffer or a closed
// dispatcher
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
