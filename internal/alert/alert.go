package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind identifies the out-of-band signal
type Kind string

const (
	KindLowStock   Kind = "low_stock"
	KindMissedDose Kind = "missed_dose"
)

// Alert is a banner/toast-style signal for the presentation layer
type Alert struct {
	Kind          Kind      `json:"kind"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	MedicationIDs []string  `json:"medication_ids,omitempty"`
	RaisedAt      time.Time `json:"raised_at"`
}

// Signaler accepts alerts without blocking the caller
type Signaler interface {
	Signal(a Alert)
}

// Sink delivers alerts to one destination
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

// ErrDispatcherClosed is returned by Run when the dispatcher was already closed
var ErrDispatcherClosed = errors.New("alert dispatcher closed")

// Dispatcher queues alerts on a bounded buffer and delivers them to every sink
// from a single goroutine. A full buffer drops the alert.
type Dispatcher struct {
	queue       chan Alert
	sinks       []Sink
	sendTimeout time.Duration
	logger      *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher creates a Dispatcher with the given buffer size and sinks
func NewDispatcher(bufferSize int, sendTimeout time.Duration, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Dispatcher{
		queue:       make(chan Alert, bufferSize),
		sinks:       sinks,
		sendTimeout: sendTimeout,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Signal enqueues an alert; it never blocks
func (d *Dispatcher) Signal(a Alert) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("alert dropped after dispatcher close", zap.String("kind", string(a.Kind)))
		return
	}
	select {
	case d.queue <- a:
	default:
		d.logger.Warn("alert queue full, dropping alert",
			zap.String("kind", string(a.Kind)),
			zap.String("user_id", a.UserID),
		)
	}
}

// Run delivers queued alerts until Close is called and the queue is drained
func (d *Dispatcher) Run() {
	defer close(d.done)
	for a := range d.queue {
		d.deliver(a)
	}
}

// Close stops accepting alerts and waits for queued ones to be delivered
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(a Alert) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		if err := sink.Send(ctx, a); err != nil {
			d.logger.Error("failed to deliver alert",
				zap.Error(err),
				zap.String("kind", string(a.Kind)),
				zap.String("user_id", a.UserID),
			)
		}
		cancel()
	}
}

// LogSink writes alerts to the structured logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send logs the alert at warn level
func (s *LogSink) Send(_ context.Context, a Alert) error {
	s.logger.Warn(a.Title,
		zap.String("kind", string(a.Kind)),
		zap.String("user_id", a.UserID),
		zap.String("message", a.Message),
		zap.Strings("medication_ids", a.MedicationIDs),
		zap.Time("raised_at", a.RaisedAt),
	)
	return nil
}

var (
	_ Signaler = (*Dispatcher)(nil)
	_ Sink     = (*LogSink)(nil)
)
