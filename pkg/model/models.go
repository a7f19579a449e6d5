package model

import "time"

// ChronicCondition is a condition declared by the user during onboarding
type ChronicCondition string

const (
	ConditionBP       ChronicCondition = "BP"
	ConditionDiabetes ChronicCondition = "Diabetes"
	ConditionThyroid  ChronicCondition = "Thyroid"
	ConditionNone     ChronicCondition = "None"
)

// Valid reports whether c is one of the known conditions
func (c ChronicCondition) Valid() bool {
	switch c {
	case ConditionBP, ConditionDiabetes, ConditionThyroid, ConditionNone:
		return true
	}
	return false
}

// DoseStatus is the lifecycle state of a single dose-slot
type DoseStatus string

const (
	DoseStatusPending DoseStatus = "pending"
	DoseStatusTaken   DoseStatus = "taken"
	DoseStatusMissed  DoseStatus = "missed"
)

// Medication represents one scheduled dose-slot, not a recurring template
type Medication struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Dosage      string     `json:"dosage"`
	Description string     `json:"description,omitempty"`
	Time        string     `json:"time"` // HH:MM, 24h
	Frequency   string     `json:"frequency"`
	Count       int        `json:"count"`
	Chronic     bool       `json:"chronic"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Taken       bool       `json:"taken"`
	Missed      bool       `json:"missed"`
	TakenTime   *time.Time `json:"taken_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Status derives the dose status from the taken/missed flags
func (m *Medication) Status() DoseStatus {
	switch {
	case m.Taken:
		return DoseStatusTaken
	case m.Missed:
		return DoseStatusMissed
	default:
		return DoseStatusPending
	}
}

// Pending reports whether the dose is neither taken nor missed
func (m *Medication) Pending() bool {
	return !m.Taken && !m.Missed
}

// VitalReading is an immutable condition-specific measurement
type VitalReading struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Systolic  *int      `json:"systolic,omitempty"`
	Diastolic *int      `json:"diastolic,omitempty"`
	Glucose   *int      `json:"glucose,omitempty"`
	TSH       *float64  `json:"tsh,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryCategory classifies audit records
type HistoryCategory string

const (
	HistoryMedication HistoryCategory = "medication"
	HistoryPurchase   HistoryCategory = "purchase"
	HistoryVital      HistoryCategory = "vital"
)

// HistoryItem is an append-only audit record
type HistoryItem struct {
	ID          string          `json:"id"`
	Category    HistoryCategory `json:"category"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Value       string          `json:"value,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NotificationCategory classifies in-app notifications
type NotificationCategory string

const (
	NotificationReminder NotificationCategory = "reminder"
	NotificationSystem   NotificationCategory = "system"
	NotificationReward   NotificationCategory = "reward"
	NotificationStock    NotificationCategory = "stock"
)

// Notification is an in-app message; Read is owned by the presentation layer
type Notification struct {
	ID       string               `json:"id"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Time     time.Time            `json:"time"`
	Read     bool                 `json:"read"`
	Category NotificationCategory `json:"category"`
}

// RewardLedger tracks the coin balance and adherence streak
type RewardLedger struct {
	Coins  float64 `json:"coins"`
	Streak int     `json:"streak"`
}

// NotificationRules are per-channel notification preferences
type NotificationRules struct {
	MedicationReminders  bool `json:"medication_reminders"`
	LabReportAlerts      bool `json:"lab_report_alerts"`
	AppointmentReminders bool `json:"appointment_reminders"`
	EmergencyAlerts      bool `json:"emergency_alerts"`
	WellnessNudges       bool `json:"wellness_nudges"`
}

// PrivacySettings are data-processing consents
type PrivacySettings struct {
	AIPersonalization bool `json:"ai_personalization"`
	VoiceProcessing   bool `json:"voice_processing"`
	AnalyticsSharing  bool `json:"analytics_sharing"`
}

// Settings is pass-through configuration owned by the presentation layer
type Settings struct {
	Language          string            `json:"language"`
	Theme             string            `json:"theme"`
	RemindersEnabled  bool              `json:"reminders_enabled"`
	BiometricLock     bool              `json:"biometric_lock"`
	NotificationRules NotificationRules `json:"notification_rules"`
	Privacy           PrivacySettings   `json:"privacy"`
}

// DefaultSettings returns the settings a new profile starts with
func DefaultSettings() Settings {
	return Settings{
		Language:         "English",
		Theme:            "dark",
		RemindersEnabled: true,
		NotificationRules: NotificationRules{
			MedicationReminders:  true,
			LabReportAlerts:      true,
			AppointmentReminders: true,
			EmergencyAlerts:      true,
			WellnessNudges:       true,
		},
		Privacy: PrivacySettings{
			AIPersonalization: true,
			VoiceProcessing:   true,
		},
	}
}

// InitialCoins is the balance of a freshly created profile
const InitialCoins = 100

// UserProfile aggregates everything the adherence engine operates on
type UserProfile struct {
	UserID        string             `json:"user_id"`
	Username      string             `json:"username"`
	Conditions    []ChronicCondition `json:"conditions"`
	Ledger        RewardLedger       `json:"ledger"`
	Medications   []Medication       `json:"medications"`
	Vitals        []VitalReading     `json:"vitals"`
	History       []HistoryItem      `json:"history"`
	Notifications []Notification     `json:"notifications"`
	Settings      Settings           `json:"settings"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewUserProfile creates an empty profile with the default ledger and settings
func NewUserProfile(userID, username string, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:        userID,
		Username:      username,
		Conditions:    []ChronicCondition{},
		Ledger:        RewardLedger{Coins: InitialCoins},
		Medications:   []Medication{},
		Vitals:        []VitalReading{},
		History:       []HistoryItem{},
		Notifications: []Notification{},
		Settings:      DefaultSettings(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// HasCondition reports whether c is among the declared conditions
func (p *UserProfile) HasCondition(c ChronicCondition) bool {
	for _, declared := range p.Conditions {
		if declared == c {
			return true
		}
	}
	return false
}

// ActiveConditions returns the declared conditions excluding ConditionNone
func (p *UserProfile) ActiveConditions() []ChronicCondition {
	active := make([]ChronicCondition, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		if c != ConditionNone {
			active = append(active, c)
		}
	}
	return active
}

// Clone returns a deep copy of the profile
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Conditions = append([]ChronicCondition{}, p.Conditions...)
	c.Medications = make([]Medication, len(p.Medications))
	for i, m := range p.Medications {
		c.Medications[i] = m.clone()
	}
	c.Vitals = make([]VitalReading, len(p.Vitals))
	for i, v := range p.Vitals {
		c.Vitals[i] = v.clone()
	}
	c.History = append([]HistoryItem{}, p.History...)
	c.Notifications = append([]Notification{}, p.Notifications...)
	return &c
}

func (m Medication) clone() Medication {
	m.StartDate = copyTime(m.StartDate)
	m.EndDate = copyTime(m.EndDate)
	m.TakenTime = copyTime(m.TakenTime)
	return m
}

func (v VitalReading) clone() VitalReading {
	if v.Systolic != nil {
		s := *v.Systolic
		v.Systolic = &s
	}
	if v.Diastolic != nil {
		d := *v.Diastolic
		v.Diastolic = &d
	}
	if v.Glucose != nil {
		g := *v.Glucose
		v.Glucose = &g
	}
	if v.TSH != nil {
		t := *v.TSH
		v.TSH = &t
	}
	return v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Reward is an item in the rewards store
type Reward struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Provider string  `json:"provider"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

// RewardCatalog lists the items available in the rewards store
var RewardCatalog = []Reward{
	{ID: 1, Name: "Doctor Connect", Provider: "Health Plus", Category: "Service", Price: 500},
	{ID: 2, Name: "Vitamin C Pack", Provider: "PharmEasy", Category: "Health", Price: 1200},
	{ID: 3, Name: "AI Health Lab", Provider: "Arogya AI", Category: "Digital", Price: 300},
	{ID: 4, Name: "Glucose Kit", Provider: "Apollo", Category: "Medical", Price: 800},
}

// FindReward looks up a catalog item by id
func FindReward(id int) (Reward, bool) {
	for _, r := range RewardCatalog {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
