package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"escrow/internal/audit"
	"escrow/internal/infra"
	"escrow/internal/sqlinline"
)

// AuditRun is the stored summary of one audit.
type AuditRun struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Campaigns  int
	Violations int
	ReportKey  string
}

// AuditLogPG records audit runs in PostgreSQL.
type AuditLogPG struct {
	sql infra.SQLExecutor
}

func NewAuditLog(sql infra.SQLExecutor) *AuditLogPG {
	return &AuditLogPG{sql: sql}
}

func (l *AuditLogPG) RecordAuditRun(ctx context.Context, r *audit.Report) error {
	_, err := l.sql.Exec(ctx, sqlinline.QInsertAuditRun,
		r.ID, r.StartedAt, r.FinishedAt, r.Campaigns, len(r.Violations), r.ReportKey)
	return err
}

// Latest returns the most recent run, or nil when none was recorded.
func (l *AuditLogPG) Latest(ctx context.Context) (*AuditRun, error) {
	var run AuditRun
	var campaigns, violations int32
	err := l.sql.QueryRow(ctx, sqlinline.QLatestAuditRun).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &campaigns, &violations, &run.ReportKey)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	run.Campaigns = int(campaigns)
	run.Violations = int(violations)
	return &run, nil
}

var _ audit.RunRecorder = (*AuditLogPG)(nil)
