package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hostel-management/internal/model"
)

// Memory is an in-memory implementation of every store interface. It
// mirrors the MySQL repositories' semantics closely enough for the
// facade and for tests: duplicate keys, upsert, atomic rotation, and
// revoke-clears-context all behave the same. A single mutex stands in
// for the database's serialization.
type Memory struct {
	mu sync.Mutex

	nextUser    int64
	nextToken   int64
	nextAssign  int64
	nextSession int64
	nextAudit   int64

	users       map[int64]*model.User
	refresh     map[string]*model.RefreshToken
	resets      map[string]*model.PasswordResetToken
	assignments map[int64]map[int64]*model.AdminHostelAssignment // adminID -> hostelID
	sessions    map[int64][]*model.SessionContext                // userID -> rows
	rolePerms   map[string][]model.Permission
	hostels     map[int64]bool
	AuditRows   []model.AuditRecord
}

// NewMemory returns an empty in-memory store set.
func NewMemory() *Memory {
	return &Memory{
		users:       map[int64]*model.User{},
		refresh:     map[string]*model.RefreshToken{},
		resets:      map[string]*model.PasswordResetToken{},
		assignments: map[int64]map[int64]*model.AdminHostelAssignment{},
		sessions:    map[int64][]*model.SessionContext{},
		rolePerms:   map[string][]model.Permission{},
		hostels:     map[int64]bool{},
	}
}

// AddHostel registers a hostel id in the reference set.
func (m *Memory) AddHostel(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hostels[id] = true
}

// SetRolePermissions seeds the role -> permissions mapping.
func (m *Memory) SetRolePermissions(role string, perms []model.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolePerms[role] = perms
}

// ----- UserStore -----

func (m *Memory) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !model.ValidRole(u.Role) {
		return ErrConflict
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, e := range m.users {
		if e.Email == u.Email {
			return &DuplicateError{Key: "email"}
		}
		if e.Username == u.Username {
			return &DuplicateError{Key: "username"}
		}
	}
	if u.HomeHostelID != nil && *u.HomeHostelID <= 0 {
		u.HomeHostelID = nil
	}
	m.nextUser++
	u.ID = m.nextUser
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) findBy(match func(*model.User) bool) (model.User, error) {
	for _, u := range m.users {
		if match(u) {
			return *u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) GetByEmail(ctx context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	return m.findBy(func(u *model.User) bool { return u.Email == email })
}

func (m *Memory) GetByUsername(ctx context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBy(func(u *model.User) bool { return u.Username == username })
}

func (m *Memory) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findBy(func(u *model.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (m *Memory) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if u, err := m.GetByEmail(ctx, identifier); err == nil {
		return u, nil
	}
	if u, err := m.GetByUsername(ctx, identifier); err == nil {
		return u, nil
	}
	return m.GetByPhone(ctx, identifier)
}

func (m *Memory) UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Phone != nil {
		if *p.Phone == "" {
			u.Phone = nil
		} else {
			ph := *p.Phone
			u.Phone = &ph
		}
	}
	if p.HomeHostelID != nil {
		if *p.HomeHostelID > 0 {
			h := *p.HomeHostelID
			u.HomeHostelID = &h
		} else {
			u.HomeHostelID = nil
		}
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SetRole(ctx context.Context, id int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !model.ValidRole(role) {
		return ErrConflict
	}
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	if role == model.RoleSuperAdmin {
		u.HomeHostelID = nil
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) SetPassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) Deactivate(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = false
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// ----- TokenStore -----

func (m *Memory) StoreRefresh(ctx context.Context, userID int64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	m.refresh[tokenHash] = &model.RefreshToken{
		ID: m.nextToken, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *Memory) FindRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.refresh[tokenHash]; ok {
		return *t, nil
	}
	return model.RefreshToken{}, ErrNotFound
}

func (m *Memory) Rotate(ctx context.Context, oldHash string, userID int64, newHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.refresh[oldHash]
	if !ok || old.RevokedAt != nil {
		return ErrConflict
	}
	now := time.Now().UTC()
	old.RevokedAt = &now
	m.nextToken++
	m.refresh[newHash] = &model.RefreshToken{
		ID: m.nextToken, UserID: userID, TokenHash: newHash,
		ExpiresAt: exp, CreatedAt: now,
	}
	return nil
}

func (m *Memory) RevokeAllForUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range m.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			rv := now
			t.RevokedAt = &rv
		}
	}
	return nil
}

// LiveRefreshCount reports how many unexpired, unrevoked refresh tokens
// the user holds. Test helper.
func (m *Memory) LiveRefreshCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, t := range m.refresh {
		if t.UserID == userID && t.Valid(now) {
			n++
		}
	}
	return n
}

func (m *Memory) StoreReset(ctx context.Context, userID int64, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	m.resets[tokenHash] = &model.PasswordResetToken{
		ID: m.nextToken, UserID: userID, TokenHash: tokenHash,
		ExpiresAt: exp, CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (m *Memory) ConsumeReset(ctx context.Context, tokenHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.resets[tokenHash]
	now := time.Now().UTC()
	if !ok || t.UsedAt != nil || !now.Before(t.ExpiresAt) {
		return 0, ErrNotFound
	}
	t.UsedAt = &now
	return t.UserID, nil
}

// ----- AssignmentStore -----

func (m *Memory) Upsert(ctx context.Context, adminID, hostelID int64, level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertLocked(adminID, hostelID, level)
}

func (m *Memory) upsertLocked(adminID, hostelID int64, level string) error {
	if !model.ValidLevel(level) {
		return ErrConflict
	}
	byHostel, ok := m.assignments[adminID]
	if !ok {
		byHostel = map[int64]*model.AdminHostelAssignment{}
		m.assignments[adminID] = byHostel
	}
	now := time.Now().UTC()
	if a, ok := byHostel[hostelID]; ok {
		a.PermissionLevel = level
		a.UpdatedAt = now
		return nil
	}
	m.nextAssign++
	byHostel[hostelID] = &model.AdminHostelAssignment{
		ID: m.nextAssign, AdminUserID: adminID, HostelID: hostelID,
		PermissionLevel: level, CreatedAt: now, UpdatedAt: now,
	}
	return nil
}

func (m *Memory) BulkUpsert(ctx context.Context, adminID int64, hostelIDs []int64, level string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hostelIDs {
		if err := m.upsertLocked(adminID, h, level); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, adminID, hostelID int64) (model.AdminHostelAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.assignments[adminID][hostelID]; ok {
		return *a, nil
	}
	return model.AdminHostelAssignment{}, ErrNotFound
}

func (m *Memory) ListByAdmin(ctx context.Context, adminID int64) ([]model.AdminHostelAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AdminHostelAssignment
	for _, a := range m.assignments[adminID] {
		out = append(out, *a)
	}
	return out, nil
}

func (m *Memory) ListByHostel(ctx context.Context, hostelID int64) ([]model.AdminHostelAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AdminHostelAssignment
	for _, byHostel := range m.assignments {
		if a, ok := byHostel[hostelID]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *Memory) Revoke(ctx context.Context, adminID, hostelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byHostel := m.assignments[adminID]
	if _, ok := byHostel[hostelID]; !ok {
		return ErrNotFound
	}
	delete(byHostel, hostelID)
	for _, s := range m.sessions[adminID] {
		if s.HostelID == hostelID && s.IsActive {
			s.IsActive = false
			s.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// ----- SessionStore -----

func (m *Memory) GetActive(ctx context.Context, userID int64) (model.SessionContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions[userID] {
		if s.IsActive {
			return *s, nil
		}
	}
	return model.SessionContext{}, ErrNotFound
}

func (m *Memory) Switch(ctx context.Context, userID, hostelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var target *model.SessionContext
	for _, s := range m.sessions[userID] {
		if s.IsActive {
			s.IsActive = false
			s.UpdatedAt = now
		}
		if s.HostelID == hostelID {
			target = s
		}
	}
	if target == nil {
		m.nextSession++
		target = &model.SessionContext{
			ID: m.nextSession, UserID: userID, HostelID: hostelID, CreatedAt: now,
		}
		m.sessions[userID] = append(m.sessions[userID], target)
	}
	target.IsActive = true
	target.UpdatedAt = now
	return nil
}

func (m *Memory) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range m.sessions[userID] {
		if s.IsActive {
			s.IsActive = false
			s.UpdatedAt = now
		}
	}
	return nil
}

// ----- PermissionStore -----

func (m *Memory) ListForRole(ctx context.Context, role string) ([]model.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Permission(nil), m.rolePerms[role]...), nil
}

// ----- AuditStore -----

func (m *Memory) Append(ctx context.Context, rec *model.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAudit++
	rec.ID = m.nextAudit
	rec.CreatedAt = time.Now().UTC()
	m.AuditRows = append(m.AuditRows, *rec)
	return nil
}

// ----- HostelStore -----

func (m *Memory) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hostels[id], nil
}
