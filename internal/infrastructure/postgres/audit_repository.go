package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"bancora/internal/domain/audit"
)

// AuditRepository implements the audit.Recorder interface for PostgreSQL.
// The table is append-only; no update or delete statements exist here.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ audit.Recorder = (*AuditRepository)(nil)

// Record appends one audit entry
func (r *AuditRepository) Record(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_log (id, user_id, event_type, event_data, ip_address, user_agent, success, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
	`

	eventData := []byte("{}")
	if entry.EventData != nil {
		data, err := json.Marshal(entry.EventData)
		if err != nil {
			return fmt.Errorf("failed to marshal audit event data: %w", err)
		}
		eventData = data
	}

	_, err := r.db.ExecContext(
		ctx, query,
		uuid.NewString(), entry.UserID, entry.EventType, eventData,
		nullString(entry.IPAddress), nullString(entry.UserAgent),
		entry.Success, nullString(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}
