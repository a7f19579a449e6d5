package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// DefaultInterval matches the polling cadence of the mobile client
const DefaultInterval = 10 * time.Second

// Target is the aggregate a sweeper runs against
type Target interface {
	UserID() string
	SweepMissed(now time.Time) []model.Medication
}

// ChangeFunc is called after a sweep changed state, typically to persist it
type ChangeFunc func(ctx context.Context, missed []model.Medication) error

// Options tune a Sweeper
type Options struct {
	Interval    time.Duration
	SaveTimeout time.Duration
}

// Sweeper periodically flags overdue doses of one profile as missed
type Sweeper struct {
	target   Target
	clock    engine.Clock
	signaler alert.Signaler
	onChange ChangeFunc
	logger   *zap.Logger
	opts     Options

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	// closed when the first sweep of the current run has finished
	firstDone chan struct{}
}

// New creates a Sweeper. onChange and signaler may be nil.
func New(target Target, clock engine.Clock, signaler alert.Signaler, onChange ChangeFunc, logger *zap.Logger, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	if clock == nil {
		clock = engine.SystemClock{}
	}
	return &Sweeper{
		target:   target,
		clock:    clock,
		signaler: signaler,
		onChange: onChange,
		logger:   logger.With(zap.String("user_id", target.UserID())),
		opts:     opts,
	}
}

// Start runs one sweep immediately and then schedules one every interval.
// A tick that fires while the previous sweep is still running is skipped.
// The first sweep runs without holding the sweeper lock, so Running and Stop
// stay responsive while it saves.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}

	log := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() { s.SweepOnce() }))

	s.cron = c
	s.running = true
	firstDone := make(chan struct{})
	s.firstDone = firstDone
	s.mu.Unlock()

	defer close(firstDone)
	s.SweepOnce()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Stop may have been called during the first sweep.
	if s.running && s.cron == c {
		c.Start()
		s.logger.Info("missed-dose sweeper started", zap.Duration("interval", s.opts.Interval))
	}
	return nil
}

// Stop unschedules future sweeps and waits for an in-flight sweep to finish
// or for ctx to end, whichever comes first
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	scheduled := s.cron.Stop()
	firstDone := s.firstDone
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-scheduled.Done()
		<-firstDone
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("missed-dose sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for sweep to finish", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// Running reports whether the sweeper is scheduled
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SweepOnce performs a single sweep at the clock's current instant and
// returns the newly missed doses
func (s *Sweeper) SweepOnce() []model.Medication {
	now := s.clock.Now()
	missed := s.target.SweepMissed(now)
	if len(missed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(missed))
	for _, m := range missed {
		ids = append(ids, m.ID)
	}
	s.logger.Info("doses marked missed",
		zap.Int("count", len(missed)),
		zap.Strings("medication_ids", ids),
	)

	if s.signaler != nil {
		s.signaler.Signal(alert.Alert{
			Kind:          alert.KindMissedDose,
			UserID:        s.target.UserID(),
			Title:         "Health Alert",
			Message:       fmt.Sprintf("You missed %d dose(s). Stay consistent!", len(missed)),
			MedicationIDs: ids,
			RaisedAt:      now,
		})
	}

	if s.onChange != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
		defer cancel()
		if err := s.onChange(ctx, missed); err != nil {
			s.logger.Error("failed to persist sweep result", zap.Error(err))
		}
	}
	return missed
}

// cronLogger routes cron's internal logging to zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
