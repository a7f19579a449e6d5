package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/window"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator creates collision-resistant identifiers for new entities
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random (v4) UUIDs
type UUIDGenerator struct{}

// NewID returns a new UUID string
func (UUIDGenerator) NewID() string { return uuid.NewString() }

type nopSignaler struct{}

func (nopSignaler) Signal(alert.Alert) {}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator overrides the id generator
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithSignaler sets the alert channel for low-stock signals
func WithSignaler(s alert.Signaler) Option {
	return func(e *Engine) { e.alerts = s }
}

// Engine owns one UserProfile aggregate. Every method is serialized on a
// single mutex and completes without I/O.
type Engine struct {
	mu      sync.Mutex
	profile *model.UserProfile

	clock  Clock
	ids    IDGenerator
	alerts alert.Signaler
	logger *zap.Logger
}

// New creates an Engine over a private copy of profile
func New(profile *model.UserProfile, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		profile: profile.Clone(),
		clock:   SystemClock{},
		ids:     UUIDGenerator{},
		alerts:  nopSignaler{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UserID returns the id of the owned profile
func (e *Engine) UserID() string {
	return e.profile.UserID
}

// Snapshot returns a deep copy of the current profile
func (e *Engine) Snapshot() *model.UserProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile.Clone()
}

// MarkTaken confirms intake of a pending dose
func (e *Engine) MarkTaken(medicationID string) (model.Medication, error) {
	e.mu.Lock()

	med := e.findMedication(medicationID)
	if med == nil {
		e.mu.Unlock()
		return model.Medication{}, &NotFoundError{Kind: "medication", ID: medicationID}
	}
	if !med.Pending() {
		e.mu.Unlock()
		return model.Medication{}, &InvalidStateError{MedicationID: medicationID, Status: med.Status()}
	}

	now := e.clock.Now()
	med.Taken = true
	med.TakenTime = &now
	if med.Count > 0 {
		med.Count--
	}
	e.projectTaken(med, now)
	e.touch(now)

	taken := *med
	var lowStock *alert.Alert
	if taken.Count < LowStockThreshold {
		lowStock = &alert.Alert{
			Kind:          alert.KindLowStock,
			UserID:        e.profile.UserID,
			Title:         "Low Stock Alert",
			Message:       fmt.Sprintf("Only %d tablets of %s left.", taken.Count, taken.Name),
			MedicationIDs: []string{taken.ID},
			RaisedAt:      now,
		}
	}
	coins := e.profile.Ledger.Coins
	e.mu.Unlock()

	e.logger.Info("dose taken",
		zap.String("user_id", e.profile.UserID),
		zap.String("medication_id", medicationID),
		zap.Int("stock", taken.Count),
		zap.Float64("coins", coins),
	)
	if lowStock != nil {
		e.alerts.Signal(*lowStock)
	}
	return taken, nil
}

// SweepMissed flags every pending dose whose window closed before now and
// returns the newly missed batch. Doses already flagged are skipped, so
// repeated sweeps with the same instant change nothing.
func (e *Engine) SweepMissed(now time.Time) []model.Medication {
	e.mu.Lock()
	defer e.mu.Unlock()

	var missed []model.Medication
	for i := range e.profile.Medications {
		med := &e.profile.Medications[i]
		if !med.Pending() {
			continue
		}
		status, err := window.Evaluate(now, med)
		if err != nil {
			e.logger.Warn("skipping medication with unreadable schedule",
				zap.Error(err),
				zap.String("user_id", e.profile.UserID),
				zap.String("medication_id", med.ID),
			)
			continue
		}
		if status != window.StatusMissed {
			continue
		}
		med.Missed = true
		missed = append(missed, *med)
	}
	if len(missed) == 0 {
		return nil
	}

	e.projectMissed(missed, now)
	e.touch(now)
	return missed
}

// MedicationSpec is the input for AddMedication
type MedicationSpec struct {
	Name        string
	Dosage      string
	Description string
	Time        string
	Frequency   string
	Count       int
	Chronic     bool
	StartDate   *time.Time
	EndDate     *time.Time
}

// Validate checks the required fields of a new medication
func (s MedicationSpec) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(s.Name) == "" {
		verr.add("name", "is required")
	}
	if strings.TrimSpace(s.Dosage) == "" {
		verr.add("dosage", "is required")
	}
	if strings.TrimSpace(s.Time) == "" {
		verr.add("time", "is required")
	} else if _, _, err := window.ParseTimeOfDay(s.Time); err != nil {
		verr.add("time", "must be HH:MM")
	}
	if s.Count <= 0 {
		verr.add("count", "must be a positive number")
	}
	if !s.Chronic {
		if s.StartDate == nil {
			verr.add("start_date", "is required for non-chronic medication")
		}
		if s.EndDate == nil {
			verr.add("end_date", "is required for non-chronic medication")
		}
		if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
			verr.add("end_date", "must not be before start_date")
		}
	}
	return verr.orNil()
}

// AddMedication validates spec and appends a new pending dose-slot
func (e *Engine) AddMedication(spec MedicationSpec) (model.Medication, error) {
	if err := spec.Validate(); err != nil {
		return model.Medication{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	frequency := strings.TrimSpace(spec.Frequency)
	if frequency == "" {
		frequency = "Daily"
	}
	med := model.Medication{
		ID:          e.ids.NewID(),
		Name:        strings.TrimSpace(spec.Name),
		Dosage:      strings.TrimSpace(spec.Dosage),
		Description: spec.Description,
		Time:        strings.TrimSpace(spec.Time),
		Frequency:   frequency,
		Count:       spec.Count,
		Chronic:     spec.Chronic,
		CreatedAt:   now,
	}
	if !spec.Chronic {
		start, end := *spec.StartDate, *spec.EndDate
		med.StartDate, med.EndDate = &start, &end
	}
	e.profile.Medications = append(e.profile.Medications, med)
	e.touch(now)

	e.logger.Info("medication added",
		zap.String("user_id", e.profile.UserID),
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
	)
	return med, nil
}

// DeleteMedication removes a medication; it reports whether one was removed
func (e *Engine) DeleteMedication(medicationID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.profile.Medications {
		if e.profile.Medications[i].ID == medicationID {
			e.profile.Medications = append(e.profile.Medications[:i], e.profile.Medications[i+1:]...)
			e.touch(e.clock.Now())
			return true
		}
	}
	return false
}

// LogVital validates a reading against the declared conditions and prepends it
func (e *Engine) LogVital(reading model.VitalReading) (model.VitalReading, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validateVital(e.profile, reading); err != nil {
		return model.VitalReading{}, err
	}

	now := e.clock.Now()
	reading.ID = e.ids.NewID()
	if reading.Date.IsZero() {
		y, m, d := now.Date()
		reading.Date = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	reading.CreatedAt = now

	e.profile.Vitals = append([]model.VitalReading{reading}, e.profile.Vitals...)
	e.prependHistory(model.HistoryItem{
		Category:    model.HistoryVital,
		Title:       "Vitals Logged",
		Description: describeVital(reading),
		Timestamp:   now,
	})
	e.touch(now)
	return reading, nil
}

// Purchase redeems a reward if the balance covers its price
func (e *Engine) Purchase(rewardID int, name string, price float64) error {
	if price <= 0 {
		return &ValidationError{Fields: []FieldError{{Field: "price", Message: "must be positive"}}}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.profile.Ledger.Coins < price {
		return &InsufficientFundsError{Balance: e.profile.Ledger.Coins, Price: price}
	}

	now := e.clock.Now()
	e.projectPurchase(name, price, now)
	e.touch(now)

	e.logger.Info("reward purchased",
		zap.String("user_id", e.profile.UserID),
		zap.Int("reward_id", rewardID),
		zap.Float64("price", price),
		zap.Float64("coins", e.profile.Ledger.Coins),
	)
	return nil
}

// Summary is the adherence overview of the current dose-slots
type Summary struct {
	Total         int     `json:"total"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Pending       int     `json:"pending"`
	DueNow        int     `json:"due_now"`
	LowStock      int     `json:"low_stock"`
	AdherenceRate float64 `json:"adherence_rate"`
	Coins         float64 `json:"coins"`
	Streak        int     `json:"streak"`
}

// Summary computes counts and the adherence rate at instant now
func (e *Engine) Summary(now time.Time) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Summary{
		Total:  len(e.profile.Medications),
		Coins:  e.profile.Ledger.Coins,
		Streak: e.profile.Ledger.Streak,
	}
	for i := range e.profile.Medications {
		med := &e.profile.Medications[i]
		switch med.Status() {
		case model.DoseStatusTaken:
			s.Taken++
		case model.DoseStatusMissed:
			s.Missed++
		default:
			s.Pending++
			if status, err := window.Evaluate(now, med); err == nil && status == window.StatusDue {
				s.DueNow++
			}
		}
		if med.Count < LowStockThreshold {
			s.LowStock++
		}
	}
	s.AdherenceRate = 100
	if s.Total > 0 {
		s.AdherenceRate = float64(s.Taken) / float64(s.Total) * 100
	}
	return s
}

// AcknowledgeNotification marks a notification read on behalf of the
// presentation layer
func (e *Engine) AcknowledgeNotification(notificationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.profile.Notifications {
		if e.profile.Notifications[i].ID == notificationID {
			e.profile.Notifications[i].Read = true
			e.touch(e.clock.Now())
			return nil
		}
	}
	return &NotFoundError{Kind: "notification", ID: notificationID}
}

// ReplaceSettings stores presentation-owned settings. Emergency alerts
// cannot be switched off.
func (e *Engine) ReplaceSettings(settings model.Settings) model.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings.NotificationRules.EmergencyAlerts = true
	e.profile.Settings = settings
	e.touch(e.clock.Now())
	return settings
}

// SetConditions replaces the declared chronic conditions
func (e *Engine) SetConditions(conditions []model.ChronicCondition) error {
	verr := &ValidationError{}
	seen := make(map[model.ChronicCondition]bool, len(conditions))
	unique := make([]model.ChronicCondition, 0, len(conditions))
	for _, c := range conditions {
		if !c.Valid() {
			verr.add("conditions", fmt.Sprintf("unknown condition %q", c))
			continue
		}
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile.Conditions = unique
	e.touch(e.clock.Now())
	return nil
}

func (e *Engine) findMedication(id string) *model.Medication {
	for i := range e.profile.Medications {
		if e.profile.Medications[i].ID == id {
			return &e.profile.Medications[i]
		}
	}
	return nil
}

func (e *Engine) touch(now time.Time) {
	e.profile.UpdatedAt = now
}
