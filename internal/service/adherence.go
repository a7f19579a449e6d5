package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/engine"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/metrics"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/sweeper"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/window"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// ErrSessionLocked is returned for operations on a profile that is not unlocked
var ErrSessionLocked = errors.New("profile session is locked")

// ProfileRepository loads and stores whole profiles
type ProfileRepository interface {
	Load(ctx context.Context, userID string) (*model.UserProfile, error)
	Save(ctx context.Context, profile *model.UserProfile) error
}

// AdherenceOptions tune the sessions created by the service
type AdherenceOptions struct {
	SweepInterval time.Duration
	SaveTimeout   time.Duration
}

// userGate serializes Unlock and Lock of a single user
type userGate struct {
	mu   sync.Mutex
	refs int
}

type session struct {
	engine  *engine.Engine
	sweeper *sweeper.Sweeper
	saveMu  sync.Mutex
}

// AdherenceService owns one engine and one sweeper per unlocked profile and
// persists the profile after every mutation
type AdherenceService struct {
	repo     ProfileRepository
	clock    engine.Clock
	signaler alert.Signaler
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     AdherenceOptions

	mu       sync.Mutex
	sessions map[string]*session
	gates    map[string]*userGate
}

// NewAdherenceService creates a new AdherenceService
func NewAdherenceService(
	repo ProfileRepository,
	clock engine.Clock,
	signaler alert.Signaler,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts AdherenceOptions,
) *AdherenceService {
	if clock == nil {
		clock = engine.SystemClock{}
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	return &AdherenceService{
		repo:     repo,
		clock:    clock,
		signaler: signaler,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		sessions: make(map[string]*session),
		gates:    make(map[string]*userGate),
	}
}

// CreateProfile registers a new user with the default ledger and settings
func (s *AdherenceService) CreateProfile(ctx context.Context, username string, conditions []model.ChronicCondition) (*model.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &engine.ValidationError{Fields: []engine.FieldError{{Field: "username", Message: "is required"}}}
	}
	for _, c := range conditions {
		if !c.Valid() {
			return nil, &engine.ValidationError{Fields: []engine.FieldError{{Field: "conditions", Message: fmt.Sprintf("unknown condition %q", c)}}}
		}
	}

	profile := model.NewUserProfile(uuid.NewString(), username, s.clock.Now())
	if len(conditions) > 0 {
		profile.Conditions = append(profile.Conditions, conditions...)
	}

	if err := s.repo.Save(ctx, profile); err != nil {
		s.metrics.SaveFailed()
		s.logger.Error("failed to create profile", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Info("profile created",
		zap.String("user_id", profile.UserID),
		zap.Int("conditions", len(profile.Conditions)),
	)
	return profile, nil
}

// Unlock loads the profile and starts its missed-dose sweeper. Unlocking an
// already unlocked profile returns its current state.
func (s *AdherenceService) Unlock(ctx context.Context, userID string) (*model.UserProfile, error) {
	release := s.acquire(userID)
	defer release()

	if sess, err := s.session(userID); err == nil {
		return sess.engine.Snapshot(), nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
	profile, err := s.repo.Load(loadCtx, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	sess := &session{}
	sess.engine = engine.New(profile, s.logger,
		engine.WithClock(s.clock),
		engine.WithSignaler(s.signaler),
	)
	sess.sweeper = sweeper.New(sess.engine, s.clock, s.signaler,
		func(ctx context.Context, missed []model.Medication) error {
			s.metrics.DosesMissed(len(missed))
			return s.save(ctx, sess)
		},
		s.logger,
		sweeper.Options{Interval: s.opts.SweepInterval, SaveTimeout: s.opts.SaveTimeout},
	)
	if err := sess.sweeper.Start(); err != nil {
		return nil, fmt.Errorf("failed to start sweeper: %w", err)
	}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()

	s.metrics.SessionOpened()
	s.logger.Info("profile unlocked", zap.String("user_id", userID))
	return sess.engine.Snapshot(), nil
}

// Lock stops the sweeper, waiting for an in-flight sweep, then saves and
// discards the session. Locking a locked profile is a no-op. A concurrent
// Unlock of the same user waits for the final save.
func (s *AdherenceService) Lock(ctx context.Context, userID string) error {
	release := s.acquire(userID)
	defer release()

	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	s.metrics.SessionClosed()

	if err := sess.sweeper.Stop(ctx); err != nil {
		s.logger.Warn("sweeper did not stop cleanly", zap.Error(err), zap.String("user_id", userID))
	}
	if err := s.save(ctx, sess); err != nil {
		return err
	}

	s.logger.Info("profile locked", zap.String("user_id", userID))
	return nil
}

// acquire takes the user's gate. s.mu is only held to look the gate up, so
// a slow load or save never blocks other users.
func (s *AdherenceService) acquire(userID string) (release func()) {
	s.mu.Lock()
	g, ok := s.gates[userID]
	if !ok {
		g = &userGate{}
		s.gates[userID] = g
	}
	g.refs++
	s.mu.Unlock()

	g.mu.Lock()
	return func() {
		g.mu.Unlock()

		s.mu.Lock()
		g.refs--
		if g.refs == 0 {
			delete(s.gates, userID)
		}
		s.mu.Unlock()
	}
}

// Shutdown locks every open session
func (s *AdherenceService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.Lock(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("lock %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Unlocked reports whether a session is open for the user
func (s *AdherenceService) Unlocked(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

// Profile returns a snapshot of the unlocked profile
func (s *AdherenceService) Profile(_ context.Context, userID string) (*model.UserProfile, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.engine.Snapshot(), nil
}

// SetConditions replaces the declared chronic conditions
func (s *AdherenceService) SetConditions(ctx context.Context, userID string, conditions []model.ChronicCondition) (*model.UserProfile, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	if err := sess.engine.SetConditions(conditions); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess.engine.Snapshot(), nil
}

// ReplaceSettings stores the presentation settings
func (s *AdherenceService) ReplaceSettings(ctx context.Context, userID string, settings model.Settings) (model.Settings, error) {
	sess, err := s.session(userID)
	if err != nil {
		return model.Settings{}, err
	}
	stored := sess.engine.ReplaceSettings(settings)
	if err := s.save(ctx, sess); err != nil {
		return model.Settings{}, err
	}
	return stored, nil
}

// MedicationView is a medication together with its visibility window at a
// given instant
type MedicationView struct {
	model.Medication
	Window    window.Status `json:"window"`
	WindowErr string        `json:"window_error,omitempty"`
	Opens     *time.Time    `json:"opens_at,omitempty"`
	Closes    *time.Time    `json:"closes_at,omitempty"`
}

// Medications lists medications with their current window status
func (s *AdherenceService) Medications(_ context.Context, userID string) ([]MedicationView, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	snap := sess.engine.Snapshot()
	views := make([]MedicationView, 0, len(snap.Medications))
	for i := range snap.Medications {
		med := snap.Medications[i]
		view := MedicationView{Medication: med}
		status, err := window.Evaluate(now, &med)
		if err != nil {
			view.Window = window.StatusInactive
			view.WindowErr = err.Error()
		} else {
			view.Window = status
			if opens, closes, err := window.Bounds(now, &med); err == nil {
				view.Opens, view.Closes = &opens, &closes
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// AddMedication validates and adds a medication
func (s *AdherenceService) AddMedication(ctx context.Context, userID string, spec engine.MedicationSpec) (model.Medication, error) {
	sess, err := s.session(userID)
	if err != nil {
		return model.Medication{}, err
	}
	med, err := sess.engine.AddMedication(spec)
	if err != nil {
		return model.Medication{}, err
	}
	if err := s.save(ctx, sess); err != nil {
		return model.Medication{}, err
	}
	return med, nil
}

// DeleteMedication removes a medication; it reports whether one was removed
func (s *AdherenceService) DeleteMedication(ctx context.Context, userID, medicationID string) (bool, error) {
	sess, err := s.session(userID)
	if err != nil {
		return false, err
	}
	if !sess.engine.DeleteMedication(medicationID) {
		return false, nil
	}
	if err := s.save(ctx, sess); err != nil {
		return true, err
	}
	return true, nil
}

// MarkTaken confirms a dose
func (s *AdherenceService) MarkTaken(ctx context.Context, userID, medicationID string) (model.Medication, error) {
	sess, err := s.session(userID)
	if err != nil {
		return model.Medication{}, err
	}
	med, err := sess.engine.MarkTaken(medicationID)
	if err != nil {
		return model.Medication{}, err
	}
	s.metrics.DoseTaken()
	if err := s.save(ctx, sess); err != nil {
		return model.Medication{}, err
	}
	return med, nil
}

// LogVital stores a vital reading
func (s *AdherenceService) LogVital(ctx context.Context, userID string, reading model.VitalReading) (model.VitalReading, error) {
	sess, err := s.session(userID)
	if err != nil {
		return model.VitalReading{}, err
	}
	stored, err := sess.engine.LogVital(reading)
	if err != nil {
		return model.VitalReading{}, err
	}
	s.metrics.VitalLogged()
	if err := s.save(ctx, sess); err != nil {
		return model.VitalReading{}, err
	}
	return stored, nil
}

// Vitals lists vital readings, newest first
func (s *AdherenceService) Vitals(_ context.Context, userID string) ([]model.VitalReading, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.engine.Snapshot().Vitals, nil
}

// History lists audit records, newest first, optionally filtered by category
func (s *AdherenceService) History(_ context.Context, userID string, category model.HistoryCategory) ([]model.HistoryItem, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	history := sess.engine.Snapshot().History
	if category == "" {
		return history, nil
	}
	filtered := make([]model.HistoryItem, 0, len(history))
	for _, h := range history {
		if h.Category == category {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

// Notifications lists notifications, newest first
func (s *AdherenceService) Notifications(_ context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	notifications := sess.engine.Snapshot().Notifications
	if !unreadOnly {
		return notifications, nil
	}
	unread := make([]model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

// AcknowledgeNotification marks a notification as read
func (s *AdherenceService) AcknowledgeNotification(ctx context.Context, userID, notificationID string) error {
	sess, err := s.session(userID)
	if err != nil {
		return err
	}
	if err := sess.engine.AcknowledgeNotification(notificationID); err != nil {
		return err
	}
	return s.save(ctx, sess)
}

// Summary returns the adherence overview at the current instant
func (s *AdherenceService) Summary(_ context.Context, userID string) (engine.Summary, error) {
	sess, err := s.session(userID)
	if err != nil {
		return engine.Summary{}, err
	}
	return sess.engine.Summary(s.clock.Now()), nil
}

// Purchase redeems a catalog reward
func (s *AdherenceService) Purchase(ctx context.Context, userID string, rewardID int) (model.Reward, error) {
	sess, err := s.session(userID)
	if err != nil {
		return model.Reward{}, err
	}
	reward, ok := model.FindReward(rewardID)
	if !ok {
		return model.Reward{}, &engine.NotFoundError{Kind: "reward", ID: fmt.Sprint(rewardID)}
	}

	if err := sess.engine.Purchase(reward.ID, reward.Name, reward.Price); err != nil {
		var funds *engine.InsufficientFundsError
		if errors.As(err, &funds) {
			s.metrics.Purchase("insufficient_funds")
		} else {
			s.metrics.Purchase("error")
		}
		return model.Reward{}, err
	}
	s.metrics.Purchase("success")

	if err := s.save(ctx, sess); err != nil {
		return model.Reward{}, err
	}
	return reward, nil
}

// SweepNow runs one missed-dose sweep immediately
func (s *AdherenceService) SweepNow(_ context.Context, userID string) ([]model.Medication, error) {
	sess, err := s.session(userID)
	if err != nil {
		return nil, err
	}
	return sess.sweeper.SweepOnce(), nil
}

func (s *AdherenceService) session(userID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionLocked
	}
	return sess, nil
}

// save persists the latest snapshot. Saves of one session are serialized so
// the last write always carries the newest state.
func (s *AdherenceService) save(ctx context.Context, sess *session) error {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.opts.SaveTimeout)
	defer cancel()

	snap := sess.engine.Snapshot()
	if err := s.repo.Save(ctx, snap); err != nil {
		s.metrics.SaveFailed()
		s.logger.Error("failed to save profile",
			zap.Error(err),
			zap.String("user_id", snap.UserID),
		)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}
