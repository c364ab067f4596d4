package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"byteshop/internal/apperrors"
	"byteshop/internal/auth"
	"byteshop/internal/models"
	"byteshop/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type AuthService struct {
	store   store.Store
	tokens  *auth.TokenManager
	roles   RoleCache
	revoked TokenRevoker
	audit   AuditLogger
	log     logrus.FieldLogger
}

type AuthDeps struct {
	Roles   RoleCache
	Revoked TokenRevoker
	Audit   AuditLogger
}

func NewAuthService(s store.Store, tokens *auth.TokenManager, deps AuthDeps, log logrus.FieldLogger) *AuthService {
	svc := &AuthService{store: s, tokens: tokens, roles: deps.Roles, revoked: deps.Revoked, audit: deps.Audit, log: log}
	if svc.roles == nil {
		svc.roles = Nop{}
	}
	if svc.revoked == nil {
		svc.revoked = Nop{}
	}
	if svc.audit == nil {
		svc.audit = Nop{}
	}
	return svc
}

func (s *AuthService) issue(u *models.User) (*models.AuthResult, error) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &models.AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         models.RoleCustomer,
		Provider:     "local",
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperrors.BadRequest("User already registered")
		}
		return nil, apperrors.Internal(fmt.Errorf("create user: %w", err))
	}

	entry := auditEntry(ctx, models.ActionUserRegister, models.ResourceUser, u.ID)
	entry.UserID, entry.UserEmail = u.ID, u.Email
	s.audit.Log(ctx, entry)

	return s.issue(u)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		entry := auditEntry(ctx, models.ActionUserLogin, models.ResourceUser, u.ID)
		entry.UserID, entry.UserEmail, entry.Success, entry.ErrorMsg = u.ID, u.Email, false, "invalid credentials"
		s.audit.Log(ctx, entry)
		return nil, apperrors.Unauthorized("Invalid email or password")
	}

	s.roles.SetRole(ctx, u.ID, u.Role)
	return s.issue(u)
}

// LoginWithProvider signs in an OAuth user, creating the account on first use.
func (s *AuthService) LoginWithProvider(ctx context.Context, email, name, provider string) (*models.AuthResult, error) {
	if email == "" {
		return nil, apperrors.BadRequest("OAuth provider did not return an email")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		if strings.TrimSpace(name) == "" {
			name = strings.SplitN(email, "@", 2)[0]
		}
		u = &models.User{
			ID:       uuid.NewString(),
			Email:    strings.ToLower(email),
			FullName: name,
			Role:     models.RoleCustomer,
			Provider: provider,
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("create oauth user: %w", err))
		}
	} else if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.issue(u)
}

// Logout revokes the caller's token until it expires.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return apperrors.Unauthorized("Invalid or expired token")
	}
	if err := s.revoked.Revoke(ctx, claims.ID, s.tokens.Remaining(claims)); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ResolveIdentity verifies a bearer token and loads the caller's current role.
func (s *AuthService) ResolveIdentity(ctx context.Context, rawToken string) (*models.Identity, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil || s.revoked.IsRevoked(ctx, claims.ID) {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}

	id := &models.Identity{UserID: claims.UserID, Email: claims.Email, TokenID: claims.ID}
	if role, ok := s.roles.GetRole(ctx, claims.UserID); ok {
		id.Role = role
		return id, nil
	}

	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.Unauthorized("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.roles.SetRole(ctx, u.ID, u.Role)
	id.Role = u.Role
	id.Email = u.Email
	return id, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return u, nil
}

// UpdateProfile changes the caller's own full name; nothing else is writable.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, fullName string) (*models.User, error) {
	u, err := s.store.UpdateUserProfile(ctx, userID, strings.TrimSpace(fullName))
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(store.Elevate(ctx))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

// PromoteToAdmin grants the admin role to targetID.
func (s *AuthService) PromoteToAdmin(ctx context.Context, targetID string) (*models.User, error) {
	before, err := s.store.GetUserByID(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	u, err := s.store.UpdateUserRole(store.Elevate(ctx), targetID, models.RoleAdmin)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.roles.InvalidateRole(ctx, targetID)

	entry := auditEntry(ctx, models.ActionUserPromote, models.ResourceUser, targetID)
	entry.OldValue = string(before.Role)
	entry.NewValue = string(u.Role)
	s.audit.Log(ctx, entry)

	s.log.WithFields(logrus.Fields{"user_id": targetID, "email": u.Email}).Info("user promoted to admin")
	return u, nil
}
