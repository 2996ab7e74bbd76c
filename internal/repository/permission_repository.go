package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/model"
)

// PermissionRepo reads the permissions and role_permissions tables.
type PermissionRepo struct{ DB *sql.DB }

func NewPermissionRepo(db *sql.DB) *PermissionRepo { return &PermissionRepo{DB: db} }

// ListForRole returns the active permissions attached to a role.
func (r *PermissionRepo) ListForRole(ctx context.Context, role string) ([]model.Permission, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.name, p.resource, p.action, p.is_active, p.created_at
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role = ? AND p.is_active = TRUE
		 ORDER BY p.name`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Permission
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HostelRepo answers existence checks against the hostels reference
// table. The auth core never reads anything else from it.
type HostelRepo struct{ DB *sql.DB }

func NewHostelRepo(db *sql.DB) *HostelRepo { return &HostelRepo{DB: db} }

// Exists reports whether a hostel id is present.
func (r *HostelRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM hostels WHERE id=? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
