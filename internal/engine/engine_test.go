package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vcscsvcscs/arogyasahay-backend/internal/alert"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type sequenceIDs struct {
	mu   sync.Mutex
	next int
}

func (s *sequenceIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("id-%d", s.next)
}

type capturedAlerts struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (c *capturedAlerts) Signal(a alert.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

func (c *capturedAlerts) all() []alert.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]alert.Alert{}, c.alerts...)
}

var morning = time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, profile *model.UserProfile) (*Engine, *fixedClock, *capturedAlerts) {
	t.Helper()
	clock := &fixedClock{now: morning}
	alerts := &capturedAlerts{}
	e := New(profile, zap.NewNop(),
		WithClock(clock),
		WithIDGenerator(&sequenceIDs{}),
		WithSignaler(alerts),
	)
	return e, clock, alerts
}

func profileWith(coins float64, meds ...model.Medication) *model.UserProfile {
	p := model.NewUserProfile("user-1", "asha", morning)
	p.Ledger.Coins = coins
	p.Medications = append(p.Medications, meds...)
	return p
}

func chronic(id, name, at string, count int) model.Medication {
	return model.Medication{ID: id, Name: name, Dosage: "500mg", Time: at, Frequency: "Daily", Count: count, Chronic: true}
}

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestMarkTaken_LowStockSignalsAlert(t *testing.T) {
	e, clock, alerts := newTestEngine(t, profileWith(100, chronic("m1", "Metformin", "09:00", 9)))
	clock.Set(morning.Add(55 * time.Minute))

	med, err := e.MarkTaken("m1")
	require.NoError(t, err)

	assert.True(t, med.Taken)
	assert.Equal(t, 8, med.Count)
	require.NotNil(t, med.TakenTime)
	assert.Equal(t, clock.Now(), *med.TakenTime)

	snap := e.Snapshot()
	assert.Equal(t, 110.0, snap.Ledger.Coins)
	assert.Equal(t, 1, snap.Ledger.Streak)
	require.Len(t, snap.History, 1)
	assert.Equal(t, model.HistoryMedication, snap.History[0].Category)
	assert.Equal(t, "+10", snap.History[0].Value)
	assert.Empty(t, snap.Notifications)

	got := alerts.all()
	require.Len(t, got, 1)
	assert.Equal(t, alert.KindLowStock, got[0].Kind)
	assert.Equal(t, []string{"m1"}, got[0].MedicationIDs)
	assert.Equal(t, "user-1", got[0].UserID)
}

func TestMarkTaken_NoAlertWhenStockSufficient(t *testing.T) {
	e, _, alerts := newTestEngine(t, profileWith(0, chronic("m1", "Thyronorm", "07:00", 30)))

	med, err := e.MarkTaken("m1")
	require.NoError(t, err)
	assert.Equal(t, 29, med.Count)
	assert.Empty(t, alerts.all())
}

func TestMarkTaken_StockFloorsAtZero(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(0, chronic("m1", "Amlodipine", "20:00", 0)))

	med, err := e.MarkTaken("m1")
	require.NoError(t, err)
	assert.Equal(t, 0, med.Count)
}

func TestMarkTaken_SecondCallIsRejected(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100, chronic("m1", "Metformin", "09:00", 20)))

	_, err := e.MarkTaken("m1")
	require.NoError(t, err)
	before := e.Snapshot()

	_, err = e.MarkTaken("m1")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.DoseStatusTaken, stateErr.Status)

	after := e.Snapshot()
	assert.Equal(t, before.Ledger, after.Ledger)
	assert.Equal(t, before.Medications, after.Medications)
	assert.Len(t, after.History, len(before.History))
}

func TestMarkTaken_MissedDoseIsRejected(t *testing.T) {
	med := chronic("m1", "Metformin", "09:00", 20)
	med.Missed = true
	e, _, _ := newTestEngine(t, profileWith(100, med))

	_, err := e.MarkTaken("m1")
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.DoseStatusMissed, stateErr.Status)
	assert.Equal(t, 100.0, e.Snapshot().Ledger.Coins)
}

func TestMarkTaken_UnknownMedication(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100))

	_, err := e.MarkTaken("nope")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "medication", notFound.Kind)
}

func TestSweepMissed_TwoMissedWithThreeCoins(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(3,
		chronic("m1", "Metformin", "08:00", 20),
		chronic("m2", "Telmisartan", "08:15", 20),
		chronic("m3", "Thyronorm", "21:00", 20),
	))

	missed := e.SweepMissed(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))
	require.Len(t, missed, 2)
	assert.Equal(t, "m1", missed[0].ID)
	assert.Equal(t, "m2", missed[1].ID)

	snap := e.Snapshot()
	assert.Equal(t, 2.0, snap.Ledger.Coins)
	require.Len(t, snap.History, 2)
	require.Len(t, snap.Notifications, 2)
	for _, h := range snap.History {
		assert.Equal(t, "-0.5", h.Value)
		assert.Equal(t, model.HistoryMedication, h.Category)
	}
	for _, n := range snap.Notifications {
		assert.Equal(t, "Dose Missed!", n.Title)
		assert.Equal(t, model.NotificationReminder, n.Category)
		assert.False(t, n.Read)
	}
	assert.True(t, snap.Medications[0].Missed)
	assert.True(t, snap.Medications[1].Missed)
	assert.True(t, snap.Medications[2].Pending())
}

func TestSweepMissed_FloorsOnceForTheBatch(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(0.5,
		chronic("m1", "A", "06:00", 20),
		chronic("m2", "B", "06:30", 20),
		chronic("m3", "C", "07:00", 20),
	))

	missed := e.SweepMissed(time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC))
	assert.Len(t, missed, 3)
	assert.Equal(t, 0.0, e.Snapshot().Ledger.Coins)
}

func TestSweepMissed_IsIdempotentForSameInstant(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100,
		chronic("m1", "Metformin", "08:00", 20),
		chronic("m2", "Telmisartan", "08:15", 20),
	))
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

	first := e.SweepMissed(now)
	require.Len(t, first, 2)
	afterFirst := e.Snapshot()

	second := e.SweepMissed(now)
	assert.Empty(t, second)
	assert.Equal(t, afterFirst, e.Snapshot())
}

func TestSweepMissed_SkipsMalformedSchedules(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(10,
		chronic("bad", "Broken", "9 o'clock", 20),
		chronic("m1", "Metformin", "08:00", 20),
	))

	missed := e.SweepMissed(time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC))
	require.Len(t, missed, 1)
	assert.Equal(t, "m1", missed[0].ID)
	assert.True(t, e.Snapshot().Medications[0].Pending())
}

func TestSweepMissed_IgnoresDosesOutsideCourse(t *testing.T) {
	med := chronic("m1", "Amoxicillin", "08:00", 20)
	med.Chronic = false
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	med.StartDate, med.EndDate = &start, &end
	e, _, _ := newTestEngine(t, profileWith(10, med))

	assert.Empty(t, e.SweepMissed(time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10.0, e.Snapshot().Ledger.Coins)
}

func TestPurchase_InsufficientFunds(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(300))
	before := e.Snapshot()

	err := e.Purchase(1, "X", 500)
	var funds *InsufficientFundsError
	require.ErrorAs(t, err, &funds)
	assert.Equal(t, 300.0, funds.Balance)
	assert.Equal(t, 500.0, funds.Price)
	assert.Equal(t, before, e.Snapshot())
}

func TestPurchase_DebitsAndRecords(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(1000))

	require.NoError(t, e.Purchase(3, "AI Health Lab", 300))

	snap := e.Snapshot()
	assert.Equal(t, 700.0, snap.Ledger.Coins)
	require.Len(t, snap.History, 1)
	assert.Equal(t, model.HistoryPurchase, snap.History[0].Category)
	assert.Equal(t, "Purchased: AI Health Lab", snap.History[0].Title)
	assert.Equal(t, "-300", snap.History[0].Value)
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, model.NotificationReward, snap.Notifications[0].Category)
}

func TestPurchase_RejectsNonPositivePrice(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(1000))

	var verr *ValidationError
	require.ErrorAs(t, e.Purchase(1, "Free", 0), &verr)
	assert.Equal(t, 1000.0, e.Snapshot().Ledger.Coins)
}

func TestLogVital_BPRequiresBothReadings(t *testing.T) {
	p := profileWith(100)
	p.Conditions = []model.ChronicCondition{model.ConditionBP}
	e, _, _ := newTestEngine(t, p)

	_, err := e.LogVital(model.VitalReading{Systolic: intPtr(130)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "diastolic", verr.Fields[0].Field)
	assert.Empty(t, e.Snapshot().Vitals)
	assert.Empty(t, e.Snapshot().History)
}

func TestLogVital_PerCondition(t *testing.T) {
	tests := []struct {
		name       string
		conditions []model.ChronicCondition
		reading    model.VitalReading
		wantFields []string
	}{
		{"bp complete", []model.ChronicCondition{model.ConditionBP}, model.VitalReading{Systolic: intPtr(120), Diastolic: intPtr(80)}, nil},
		{"diabetes missing glucose", []model.ChronicCondition{model.ConditionDiabetes}, model.VitalReading{Systolic: intPtr(120)}, []string{"glucose"}},
		{"thyroid complete", []model.ChronicCondition{model.ConditionThyroid}, model.VitalReading{TSH: floatPtr(2.5)}, nil},
		{"all conditions", []model.ChronicCondition{model.ConditionBP, model.ConditionDiabetes, model.ConditionThyroid},
			model.VitalReading{Glucose: intPtr(140)}, []string{"systolic", "diastolic", "tsh"}},
		{"no condition empty reading", []model.ChronicCondition{model.ConditionNone}, model.VitalReading{}, []string{"reading"}},
		{"no condition one field", nil, model.VitalReading{Glucose: intPtr(95)}, nil},
		{"systolic out of range", []model.ChronicCondition{model.ConditionBP}, model.VitalReading{Systolic: intPtr(300), Diastolic: intPtr(80)}, []string{"systolic"}},
		{"tsh out of range", nil, model.VitalReading{TSH: floatPtr(0)}, []string{"tsh"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profileWith(100)
			p.Conditions = tt.conditions
			e, _, _ := newTestEngine(t, p)

			stored, err := e.LogVital(tt.reading)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.NotEmpty(t, stored.ID)
				assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), stored.Date)
				snap := e.Snapshot()
				require.Len(t, snap.Vitals, 1)
				require.Len(t, snap.History, 1)
				assert.Equal(t, model.HistoryVital, snap.History[0].Category)
				assert.Equal(t, 100.0, snap.Ledger.Coins)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
			assert.Empty(t, e.Snapshot().Vitals)
		})
	}
}

func TestLogVital_NewestFirst(t *testing.T) {
	e, clock, _ := newTestEngine(t, profileWith(100))

	first, err := e.LogVital(model.VitalReading{Glucose: intPtr(110)})
	require.NoError(t, err)
	clock.Set(morning.Add(24 * time.Hour))
	second, err := e.LogVital(model.VitalReading{Glucose: intPtr(120)})
	require.NoError(t, err)

	vitals := e.Snapshot().Vitals
	require.Len(t, vitals, 2)
	assert.Equal(t, second.ID, vitals[0].ID)
	assert.Equal(t, first.ID, vitals[1].ID)
}

func TestAddMedication(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100))

	med, err := e.AddMedication(MedicationSpec{Name: " Metformin ", Dosage: "500mg", Time: "09:00", Count: 30, Chronic: true})
	require.NoError(t, err)
	assert.Equal(t, "id-1", med.ID)
	assert.Equal(t, "Metformin", med.Name)
	assert.Equal(t, "Daily", med.Frequency)
	assert.True(t, med.Pending())
	assert.Nil(t, med.StartDate)
	assert.Len(t, e.Snapshot().Medications, 1)
}

func TestAddMedication_Validation(t *testing.T) {
	start := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	before := start.AddDate(0, 0, -1)

	tests := []struct {
		name  string
		spec  MedicationSpec
		field string
	}{
		{"missing name", MedicationSpec{Dosage: "5mg", Time: "09:00", Count: 1, Chronic: true}, "name"},
		{"missing dosage", MedicationSpec{Name: "A", Time: "09:00", Count: 1, Chronic: true}, "dosage"},
		{"bad time", MedicationSpec{Name: "A", Dosage: "5mg", Time: "9am", Count: 1, Chronic: true}, "time"},
		{"zero count", MedicationSpec{Name: "A", Dosage: "5mg", Time: "09:00", Chronic: true}, "count"},
		{"course without dates", MedicationSpec{Name: "A", Dosage: "5mg", Time: "09:00", Count: 1}, "start_date"},
		{"end before start", MedicationSpec{Name: "A", Dosage: "5mg", Time: "09:00", Count: 1, StartDate: &start, EndDate: &before}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t, profileWith(100))

			_, err := e.AddMedication(tt.spec)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Empty(t, e.Snapshot().Medications)
		})
	}
}

func TestDeleteMedication(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100, chronic("m1", "A", "09:00", 10), chronic("m2", "B", "10:00", 10)))

	assert.True(t, e.DeleteMedication("m1"))
	assert.False(t, e.DeleteMedication("m1"))

	meds := e.Snapshot().Medications
	require.Len(t, meds, 1)
	assert.Equal(t, "m2", meds[0].ID)
}

func TestSummary(t *testing.T) {
	taken := chronic("m1", "A", "08:00", 20)
	taken.Taken = true
	missed := chronic("m2", "B", "07:00", 5)
	missed.Missed = true
	e, _, _ := newTestEngine(t, profileWith(42, taken, missed, chronic("m3", "C", "09:00", 20), chronic("m4", "D", "21:00", 20)))

	s := e.Summary(time.Date(2026, time.March, 10, 8, 45, 0, 0, time.UTC))
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Taken)
	assert.Equal(t, 1, s.Missed)
	assert.Equal(t, 2, s.Pending)
	assert.Equal(t, 1, s.DueNow)
	assert.Equal(t, 1, s.LowStock)
	assert.Equal(t, 25.0, s.AdherenceRate)
	assert.Equal(t, 42.0, s.Coins)

	empty, _, _ := newTestEngine(t, profileWith(0))
	assert.Equal(t, 100.0, empty.Summary(morning).AdherenceRate)
}

func TestAcknowledgeNotification(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(1000))
	require.NoError(t, e.Purchase(1, "Doctor Connect", 500))
	id := e.Snapshot().Notifications[0].ID

	require.NoError(t, e.AcknowledgeNotification(id))
	assert.True(t, e.Snapshot().Notifications[0].Read)
	assert.Equal(t, 500.0, e.Snapshot().Ledger.Coins)

	var notFound *NotFoundError
	assert.ErrorAs(t, e.AcknowledgeNotification("missing"), &notFound)
}

func TestReplaceSettings_KeepsEmergencyAlerts(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100))

	s := model.DefaultSettings()
	s.Language = "Hindi"
	s.NotificationRules.EmergencyAlerts = false

	stored := e.ReplaceSettings(s)
	assert.True(t, stored.NotificationRules.EmergencyAlerts)
	assert.Equal(t, "Hindi", e.Snapshot().Settings.Language)
}

func TestSetConditions(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100))

	require.NoError(t, e.SetConditions([]model.ChronicCondition{model.ConditionBP, model.ConditionBP, model.ConditionThyroid}))
	assert.Equal(t, []model.ChronicCondition{model.ConditionBP, model.ConditionThyroid}, e.Snapshot().Conditions)

	err := e.SetConditions([]model.ChronicCondition{"Asthma"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, e.Snapshot().Conditions, 2)
}

func TestSnapshot_IsIsolated(t *testing.T) {
	e, _, _ := newTestEngine(t, profileWith(100, chronic("m1", "A", "09:00", 10)))

	snap := e.Snapshot()
	snap.Medications[0].Taken = true
	snap.Ledger.Coins = 0

	again := e.Snapshot()
	assert.True(t, again.Medications[0].Pending())
	assert.Equal(t, 100.0, again.Ledger.Coins)
}

func TestEngine_ConcurrentTakesAndSweeps(t *testing.T) {
	meds := make([]model.Medication, 0, 40)
	for i := 0; i < 40; i++ {
		meds = append(meds, chronic(fmt.Sprintf("m%d", i), "Med", "08:00", 20))
	}
	e, _, _ := newTestEngine(t, profileWith(5, meds...))
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			_, _ = e.MarkTaken(id)
		}(fmt.Sprintf("m%d", i))
		go func() {
			defer wg.Done()
			e.SweepMissed(now)
		}()
	}
	wg.Wait()

	snap := e.Snapshot()
	taken, missed := 0, 0
	for _, m := range snap.Medications {
		assert.False(t, m.Taken && m.Missed)
		if m.Taken {
			taken++
		}
		if m.Missed {
			missed++
		}
	}
	assert.Equal(t, 40, taken+missed)
	assert.Len(t, snap.History, 40)
	assert.Equal(t, missed, len(snap.Notifications))
	assert.GreaterOrEqual(t, snap.Ledger.Coins, 0.0)
	assert.Equal(t, taken, snap.Ledger.Streak)
}

// operation is one step of a generated engine workload.
type operation struct {
	Kind   int
	Target int
	Minute int
	Price  int
}

func genOperation() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.IntRange(0, 4),
		gen.IntRange(0, 24*60-1),
		gen.IntRange(1, 1500),
	).Map(func(v []interface{}) operation {
		return operation{Kind: v[0].(int), Target: v[1].(int), Minute: v[2].(int), Price: v[3].(int)}
	})
}

func TestProperty_LedgerInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("coins stay non-negative, statuses stay exclusive, and every ledger delta has one history item", prop.ForAll(
		func(startCoins int, ops []operation) bool {
			meds := []model.Medication{
				chronic("m0", "A", "06:00", 12),
				chronic("m1", "B", "09:00", 3),
				chronic("m2", "C", "13:30", 40),
				chronic("m3", "D", "18:00", 10),
				chronic("m4", "E", "22:15", 1),
			}
			e := New(profileWith(float64(startCoins), meds...), zap.NewNop(),
				WithClock(&fixedClock{now: morning}), WithIDGenerator(&sequenceIDs{}))

			deltas, notices := 0, 0
			for _, op := range ops {
				switch op.Kind {
				case 0:
					if _, err := e.MarkTaken(fmt.Sprintf("m%d", op.Target)); err == nil {
						deltas++
					}
				case 1:
					n := len(e.SweepMissed(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC).Add(time.Duration(op.Minute) * time.Minute)))
					deltas += n
					notices += n
				case 2:
					if err := e.Purchase(1, "X", float64(op.Price)); err == nil {
						deltas++
						notices++
					}
				}

				snap := e.Snapshot()
				if snap.Ledger.Coins < 0 {
					return false
				}
				for _, m := range snap.Medications {
					if m.Taken && m.Missed {
						return false
					}
				}
				if len(snap.History) != deltas || len(snap.Notifications) != notices {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 2000),
		gen.SliceOfN(25, genOperation()),
	))

	properties.TestingRun(t)
}
