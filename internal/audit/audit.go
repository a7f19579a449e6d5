package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationCreate   OperationType = "CREATE"
	OperationDelete   OperationType = "DELETE"
	OperationUnlock   OperationType = "UNLOCK"
	OperationLock     OperationType = "LOCK"
	OperationPurchase OperationType = "PURCHASE"
	OperationExport   OperationType = "EXPORT"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceProfile    ResourceType = "profile"
	ResourceSession    ResourceType = "session"
	ResourceMedication ResourceType = "medication"
	ResourceReward     ResourceType = "reward"
	ResourceReport     ResourceType = "report"
)

// Entry is one access audit record. Records are kept after a profile is
// deleted and never carry health values.
type Entry struct {
	UserID        string
	OperationType OperationType
	ResourceType  ResourceType
	ResourceID    string
	Timestamp     time.Time
	IPAddress     string
	UserAgent     string
}

// Recorder stores audit entries
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Logger writes audit entries to the structured log and the audit_logs table
type Logger struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLogger creates a new audit logger
func NewLogger(db *pgxpool.Pool, logger *zap.Logger) *Logger {
	return &Logger{
		db:     db,
		logger: logger,
	}
}

// Record creates an audit log entry
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	l.logger.Info("audit log entry",
		zap.String("user_id", entry.UserID),
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.String("ip_address", entry.IPAddress),
	)

	_, err := l.db.Exec(ctx, `
		INSERT INTO audit_logs (
			user_id, operation_type, resource_type, resource_id,
			occurred_at, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.UserID,
		string(entry.OperationType),
		string(entry.ResourceType),
		entry.ResourceID,
		entry.Timestamp,
		entry.IPAddress,
		entry.UserAgent,
	)
	if err != nil {
		l.logger.Error("failed to write audit log to database",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("operation", string(entry.OperationType)),
		)
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Recent returns the newest audit entries of a user
func (l *Logger) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	rows, err := l.db.Query(ctx, `
		SELECT user_id, operation_type, resource_type, resource_id,
		       occurred_at, ip_address, user_agent
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e         Entry
			operation string
			resource  string
		)
		if err := rows.Scan(&e.UserID, &operation, &resource, &e.ResourceID, &e.Timestamp, &e.IPAddress, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.OperationType = OperationType(operation)
		e.ResourceType = ResourceType(resource)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
