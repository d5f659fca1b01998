// Package notify fans complaint lifecycle events out to the configured
// notification channels.
//
// Delivery is best-effort. A failed delivery is logged and counted; it
// never touches the complaint record.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hostelmon/internal/complaint"
	apperrors "hostelmon/internal/errors"

	"go.uber.org/zap"
)

// queueSize is the job buffer. Publish drops events once it is full.
const queueSize = 100

// Notifier delivers one event over one channel. Notifiers ignore event
// types they do not handle and return nil.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev complaint.Event) error
}

// Stats are the dispatcher's delivery counters.
type Stats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

type job struct {
	notifier Notifier
	event    complaint.Event
}

// Dispatcher is a worker pool delivering events to every notifier.
//
// Architecture:
//   - Publish turns one event into one job per notifier
//   - Workers pull jobs from a shared buffered channel
//   - Each delivery runs under its own timeout
//   - Close stops intake and waits for queued jobs to drain
type Dispatcher struct {
	notifiers []Notifier
	jobs      chan job
	timeout   time.Duration
	log       *zap.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher starts workers goroutines delivering to notifiers.
func NewDispatcher(notifiers []Notifier, workers int, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	d := &Dispatcher{
		notifiers: notifiers,
		jobs:      make(chan job, queueSize),
		timeout:   timeout,
		log:       log,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work(i + 1)
	}

	names := make([]string, len(notifiers))
	for i, n := range notifiers {
		names[i] = n.Name()
	}
	log.Info("Notification dispatcher started",
		zap.Int("workers", workers),
		zap.Strings("channels", names))
	return d
}

// Publish queues ev for every notifier without blocking.
func (d *Dispatcher) Publish(ev complaint.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("Dispatcher closed, dropping event", zap.String("type", string(ev.Type)))
		return
	}

	for _, n := range d.notifiers {
		select {
		case d.jobs <- job{notifier: n, event: ev}:
		default:
			d.dropped.Add(1)
			d.log.Warn("Notification queue full, dropping delivery",
				zap.String("channel", n.Name()),
				zap.String("type", string(ev.Type)),
				zap.String("id", ev.Complaint.ID))
		}
	}
}

// Close stops accepting events and waits for queued deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()

	for j := range d.jobs {
		d.deliver(id, j)
	}
}

func (d *Dispatcher) deliver(worker int, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := j.notifier.Notify(ctx, j.event)
	if err != nil {
		d.failed.Add(1)
		d.log.Error("Notification delivery failed",
			zap.Int("worker", worker),
			zap.String("type", string(j.event.Type)),
			zap.String("id", j.event.Complaint.ID),
			zap.Error(apperrors.NewDeliveryError(j.notifier.Name(), err)))
		return
	}

	d.delivered.Add(1)
	d.log.Debug("Notification delivered",
		zap.Int("worker", worker),
		zap.String("channel", j.notifier.Name()),
		zap.String("type", string(j.event.Type)),
		zap.String("id", j.event.Complaint.ID))
}
