package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/model"
)

// AuditRepo appends rows to audit_logs. The table is append-only:
// there are no update or delete statements anywhere in this package.
type AuditRepo struct{ DB *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{DB: db} }

// Append inserts one audit row and populates its monotonic id.
func (r *AuditRepo) Append(ctx context.Context, rec *model.AuditRecord) error {
	var hostel sql.NullInt64
	if rec.HostelID != nil {
		hostel = sql.NullInt64{Int64: *rec.HostelID, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO audit_logs (user_id, hostel_id, action, resource, ip, user_agent, details) VALUES (?,?,?,?,?,?,?)",
		rec.UserID, hostel, rec.Action, rec.Resource, rec.IP, rec.UserAgent, rec.Details)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}
