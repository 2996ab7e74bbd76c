package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/model"
)

// AssignmentRepo provides access to admin_hostel_assignments. Assigning
// an existing (admin, hostel) pair updates the level in place (upsert);
// revoking a pair also deactivates any active session context the admin
// holds on that hostel, inside one transaction.
type AssignmentRepo struct{ DB *sql.DB }

func NewAssignmentRepo(db *sql.DB) *AssignmentRepo { return &AssignmentRepo{DB: db} }

const assignmentColumns = "id, admin_user_id, hostel_id, permission_level, created_at, updated_at"

// Upsert inserts or updates the permission level for one pair.
func (r *AssignmentRepo) Upsert(ctx context.Context, adminID, hostelID int64, level string) error {
	if !model.ValidLevel(level) {
		return ErrConflict
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO admin_hostel_assignments (admin_user_id, hostel_id, permission_level)
		 VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE permission_level=VALUES(permission_level), updated_at=NOW()`,
		adminID, hostelID, level)
	return err
}

// BulkUpsert applies the same level to several hostels in one statement.
// An empty slice is a no-op.
func (r *AssignmentRepo) BulkUpsert(ctx context.Context, adminID int64, hostelIDs []int64, level string) error {
	if len(hostelIDs) == 0 {
		return nil
	}
	if !model.ValidLevel(level) {
		return ErrConflict
	}
	query := "INSERT INTO admin_hostel_assignments (admin_user_id, hostel_id, permission_level) VALUES "
	args := make([]interface{}, 0, len(hostelIDs)*3)
	for i, h := range hostelIDs {
		if i > 0 {
			query += ","
		}
		query += "(?,?,?)"
		args = append(args, adminID, h, level)
	}
	query += " ON DUPLICATE KEY UPDATE permission_level=VALUES(permission_level), updated_at=NOW()"
	_, err := r.DB.ExecContext(ctx, query, args...)
	return err
}

// Get returns the assignment for one (admin, hostel) pair.
func (r *AssignmentRepo) Get(ctx context.Context, adminID, hostelID int64) (model.AdminHostelAssignment, error) {
	var a model.AdminHostelAssignment
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM admin_hostel_assignments WHERE admin_user_id=? AND hostel_id=? LIMIT 1",
		adminID, hostelID).Scan(&a.ID, &a.AdminUserID, &a.HostelID, &a.PermissionLevel, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.AdminHostelAssignment{}, ErrNotFound
	}
	return a, err
}

// ListByAdmin returns all hostels assigned to one admin.
func (r *AssignmentRepo) ListByAdmin(ctx context.Context, adminID int64) ([]model.AdminHostelAssignment, error) {
	return r.list(ctx,
		"SELECT "+assignmentColumns+" FROM admin_hostel_assignments WHERE admin_user_id=? ORDER BY hostel_id", adminID)
}

// ListByHostel returns all admins assigned to one hostel.
func (r *AssignmentRepo) ListByHostel(ctx context.Context, hostelID int64) ([]model.AdminHostelAssignment, error) {
	return r.list(ctx,
		"SELECT "+assignmentColumns+" FROM admin_hostel_assignments WHERE hostel_id=? ORDER BY admin_user_id", hostelID)
}

func (r *AssignmentRepo) list(ctx context.Context, query string, arg int64) ([]model.AdminHostelAssignment, error) {
	rows, err := r.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AdminHostelAssignment
	for rows.Next() {
		var a model.AdminHostelAssignment
		if err := rows.Scan(&a.ID, &a.AdminUserID, &a.HostelID, &a.PermissionLevel, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Revoke removes the (admin, hostel) mapping and deactivates any active
// session context the admin has on that hostel. Both writes commit or
// roll back together so a revoked admin can never keep acting through a
// stale context row.
func (r *AssignmentRepo) Revoke(ctx context.Context, adminID, hostelID int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM admin_hostel_assignments WHERE admin_user_id=? AND hostel_id=?",
		adminID, hostelID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE session_contexts SET is_active=FALSE, updated_at=NOW() WHERE user_id=? AND hostel_id=? AND is_active=TRUE",
		adminID, hostelID); err != nil {
		return err
	}
	return tx.Commit()
}
