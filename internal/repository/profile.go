package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
	"go.uber.org/zap"
)

// ErrProfileNotFound is returned by Load when no profile exists for the user
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository persists whole UserProfile aggregates
type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Load reads a profile and all of its children
func (r *ProfileRepository) Load(ctx context.Context, userID string) (*model.UserProfile, error) {
	query := `
		SELECT user_id, username, conditions, coins, streak, settings, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	p := &model.UserProfile{}
	var conditions []string
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Username,
		&conditions,
		&p.Ledger.Coins,
		&p.Ledger.Streak,
		&p.Settings,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		r.logger.Error("failed to load profile", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p.Conditions = make([]model.ChronicCondition, 0, len(conditions))
	for _, c := range conditions {
		p.Conditions = append(p.Conditions, model.ChronicCondition(c))
	}

	if p.Medications, err = r.loadMedications(ctx, userID); err != nil {
		return nil, err
	}
	if p.Vitals, err = r.loadVitals(ctx, userID); err != nil {
		return nil, err
	}
	if p.History, err = r.loadHistory(ctx, userID); err != nil {
		return nil, err
	}
	if p.Notifications, err = r.loadNotifications(ctx, userID); err != nil {
		return nil, err
	}

	return p, nil
}

// Save writes the profile and replaces all of its children in one transaction
func (r *ProfileRepository) Save(ctx context.Context, p *model.UserProfile) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	conditions := make([]string, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		conditions = append(conditions, string(c))
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO profiles (user_id, username, conditions, coins, streak, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			conditions = EXCLUDED.conditions,
			coins = EXCLUDED.coins,
			streak = EXCLUDED.streak,
			settings = EXCLUDED.settings,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.Username, conditions, p.Ledger.Coins, p.Ledger.Streak, p.Settings, p.CreatedAt, p.UpdatedAt)

	for _, table := range []string{"medications", "vitals", "history_items", "notifications"} {
		batch.Queue(`DELETE FROM `+table+` WHERE user_id = $1`, p.UserID)
	}

	for i, m := range p.Medications {
		batch.Queue(`
			INSERT INTO medications (
				id, user_id, position, name, dosage, description, dose_time, frequency,
				stock, chronic, start_date, end_date, taken, missed, taken_time, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, m.ID, p.UserID, i, m.Name, m.Dosage, m.Description, m.Time, m.Frequency,
			m.Count, m.Chronic, m.StartDate, m.EndDate, m.Taken, m.Missed, m.TakenTime, m.CreatedAt)
	}
	for i, v := range p.Vitals {
		batch.Queue(`
			INSERT INTO vitals (id, user_id, position, reading_date, systolic, diastolic, glucose, tsh, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, v.ID, p.UserID, i, v.Date, v.Systolic, v.Diastolic, v.Glucose, v.TSH, v.CreatedAt)
	}
	for i, h := range p.History {
		batch.Queue(`
			INSERT INTO history_items (id, user_id, position, category, title, description, value, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, h.ID, p.UserID, i, string(h.Category), h.Title, h.Description, h.Value, h.Timestamp)
	}
	for i, n := range p.Notifications {
		batch.Queue(`
			INSERT INTO notifications (id, user_id, position, title, message, category, read, sent_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, n.ID, p.UserID, i, n.Title, n.Message, string(n.Category), n.Read, n.Time)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		r.logger.Error("failed to save profile",
			zap.Error(err),
			zap.String("user_id", p.UserID),
		)
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}

	r.logger.Debug("profile saved",
		zap.String("user_id", p.UserID),
		zap.Int("medications", len(p.Medications)),
		zap.Int("history", len(p.History)),
	)
	return nil
}

// Delete removes a profile and, by cascade, everything it owns
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("failed to delete profile", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) loadMedications(ctx context.Context, userID string) ([]model.Medication, error) {
	query := `
		SELECT id, name, dosage, description, dose_time, frequency, stock, chronic,
			start_date, end_date, taken, missed, taken_time, created_at
		FROM medications
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query medications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	medications := []model.Medication{}
	for rows.Next() {
		var m model.Medication
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Dosage, &m.Description, &m.Time, &m.Frequency, &m.Count, &m.Chronic,
			&m.StartDate, &m.EndDate, &m.Taken, &m.Missed, &m.TakenTime, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		medications = append(medications, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating medications: %w", err)
	}
	return medications, nil
}

func (r *ProfileRepository) loadVitals(ctx context.Context, userID string) ([]model.VitalReading, error) {
	query := `
		SELECT id, reading_date, systolic, diastolic, glucose, tsh, created_at
		FROM vitals
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query vitals", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to query vitals: %w", err)
	}
	defer rows.Close()

	vitals := []model.VitalReading{}
	for rows.Next() {
		var v model.VitalReading
		if err := rows.Scan(&v.ID, &v.Date, &v.Systolic, &v.Diastolic, &v.Glucose, &v.TSH, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vital: %w", err)
		}
		vitals = append(vitals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vitals: %w", err)
	}
	return vitals, nil
}

func (r *ProfileRepository) loadHistory(ctx context.Context, userID string) ([]model.HistoryItem, error) {
	query := `
		SELECT id, category, title, description, value, occurred_at
		FROM history_items
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query history", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	history := []model.HistoryItem{}
	for rows.Next() {
		var h model.HistoryItem
		var category string
		if err := rows.Scan(&h.ID, &category, &h.Title, &h.Description, &h.Value, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history item: %w", err)
		}
		h.Category = model.HistoryCategory(category)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return history, nil
}

func (r *ProfileRepository) loadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	query := `
		SELECT id, title, message, category, read, sent_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY position
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to query notifications", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		var category string
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &category, &n.Read, &n.Time); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Category = model.NotificationCategory(category)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

// Ping verifies the database connection, bounded by a short timeout
func (r *ProfileRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.Ping(ctx)
}
