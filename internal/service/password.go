package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/hostel-management/internal/model"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/utils"
)

// RequestPasswordReset starts the reset flow. It always reports
// success: a missing or inactive account is indistinguishable from a
// delivered reset mail from the caller's perspective.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	u, err := s.st.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil // deliberate: no enumeration
		}
		return unavailable(err)
	}
	if !u.IsActive {
		return nil
	}
	token, err := utils.NewRefreshToken(s.cfg.ResetTTL)
	if err != nil {
		return unavailable(err)
	}
	if err := s.st.Tokens.StoreReset(ctx, u.ID, utils.HashRefreshRaw(token.Raw), token.Exp); err != nil {
		return unavailable(err)
	}
	if err := s.notifier.Send(ctx, u.Email, "Password reset",
		fmt.Sprintf("Use this token to reset your password: %s", token.Raw)); err != nil {
		// Delivery problems must not reveal anything to the caller.
		log.Printf("password-reset: notify failed for user %d: %v", u.ID, err)
	}
	s.record(u.ID, nil, model.AuditPasswordResetReq, "user", "", ci)
	return nil
}

// ConfirmPasswordReset consumes a one-time reset token, replaces the
// password, and revokes every live refresh token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, rawToken, newPassword string, ci ClientInfo) error {
	if err := s.guardWrites(); err != nil {
		return err
	}
	if sr := utils.PasswordStrength(newPassword); sr.Strength == "weak" {
		return fmt.Errorf("%w: password too weak", ErrConflict)
	}
	userID, err := s.st.Tokens.ConsumeReset(ctx, utils.HashRefreshRaw(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.ErrInvalidToken
		}
		return unavailable(err)
	}
	hash, err := utils.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return unavailable(err)
	}
	if err := s.st.Users.SetPassword(ctx, userID, hash); err != nil {
		return unavailable(err)
	}
	if err := s.st.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return unavailable(err)
	}
	s.record(userID, nil, model.AuditPasswordReset, "user", "", ci)
	return nil
}
