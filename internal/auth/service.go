package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/config"
)

const apiKeyLength = 128

// store abstracts the persistence layer for users and sessions.
type store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	FindUserByUserName(ctx context.Context, userName string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, displayName string) error
	UpdateUserPassword(ctx context.Context, id uuid.UUID, hash, salt string) error
	SetBanningStatus(ctx context.Context, id uuid.UUID, isBanned bool) error
	SetGlobalPermissions(ctx context.Context, id uuid.UUID, permissions map[string]bool) error

	CreateSession(ctx context.Context, session Session) (Session, error)
	FindSessionByAPIKey(ctx context.Context, apiKey string) (Session, error)
	ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error)
	ExpireSession(ctx context.Context, sessionID uuid.UUID, reason string) error
	ExpireAllSessions(ctx context.Context, userID uuid.UUID, reason string) error
}

// Service encapsulates identity and session use cases.
type Service struct {
	store   store
	cfg     config.AuthConfig
	nowFunc func() time.Time
}

// NewService creates a Service with dependencies.
func NewService(store store, cfg config.AuthConfig) *Service {
	return &Service{
		store:   store,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// LoginResult contains the user, session, and the plaintext API key. The key
// is only ever returned here; the client presents it on every request.
type LoginResult struct {
	User    User
	Session Session
	APIKey  string
}

// Login authenticates credentials and mints a new session.
func (s *Service) Login(ctx context.Context, userName, password string) (LoginResult, error) {
	userName = strings.TrimSpace(userName)
	if userName == "" || password == "" {
		return LoginResult{}, ErrIncorrectPassword
	}

	user, err := s.store.FindUserByUserName(ctx, userName)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrIncorrectPassword
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if user.IsBanned {
		return LoginResult{}, ErrUserBanned
	}

	if !verifyPassword(password, user.PasswordSalt, user.PasswordHash, s.cfg.PBKDF2Iterations) {
		return LoginResult{}, ErrIncorrectPassword
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return LoginResult{}, err
	}

	now := s.nowFunc()
	session, err := s.store.CreateSession(ctx, Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		APIKey:    apiKey,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	return LoginResult{User: user, Session: session, APIKey: apiKey}, nil
}

// Authenticate resolves a bearer API key to a principal. It is called on
// every request; nothing is cached, so revocations and bans apply instantly.
func (s *Service) Authenticate(ctx context.Context, authorizationHeader string) (Principal, error) {
	apiKey, ok := extractBearerKey(authorizationHeader)
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	session, err := s.store.FindSessionByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("find session: %w", err)
	}

	if session.HasExpired || s.nowFunc().Sub(session.CreatedAt) > s.cfg.SessionTTL {
		return Principal{}, ErrUnauthorized
	}

	user, err := s.store.FindUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, fmt.Errorf("find user: %w", err)
	}

	if user.IsBanned {
		return Principal{}, ErrUserBanned
	}

	return Principal{UserID: user.ID, SessionID: session.ID, User: user}, nil
}

// Logout expires the session the caller is currently using.
func (s *Service) Logout(ctx context.Context, sessionID uuid.UUID, message string) error {
	return s.store.ExpireSession(ctx, sessionID, "Logout: "+message)
}

// LogoutAllSessions force-expires every live session of a user.
func (s *Service) LogoutAllSessions(ctx context.Context, userID uuid.UUID, message string) error {
	return s.store.ExpireAllSessions(ctx, userID, "ForceLogout: "+message)
}

// ListSessions returns a user's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	return s.store.ListSessions(ctx, userID)
}

// UpdateProfile updates the caller's own display name.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("display name required")
	}
	return s.store.UpdateUserProfile(ctx, userID, displayName)
}

// UpdatePassword changes the caller's password after verifying the current one.
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !verifyPassword(currentPassword, user.PasswordSalt, user.PasswordHash, s.cfg.PBKDF2Iterations) {
		return ErrIncorrectPassword
	}
	hash, salt, err := hashPassword(newPassword, s.cfg.PBKDF2Iterations)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash, salt)
}

// CreateUser registers a new user. Caller must hold CREATE_USER.
func (s *Service) CreateUser(ctx context.Context, actor User, userName, displayName, password string) (User, error) {
	if err := requireGlobalPermission(actor, PermCreateUser); err != nil {
		return User{}, err
	}

	userName = strings.TrimSpace(userName)
	if userName == "" || len(password) < 8 {
		return User{}, fmt.Errorf("user name and a password of at least 8 characters are required")
	}

	hash, salt, err := hashPassword(password, s.cfg.PBKDF2Iterations)
	if err != nil {
		return User{}, err
	}

	now := s.nowFunc()
	user, err := s.store.CreateUser(ctx, User{
		ID:                uuid.New(),
		UserName:          userName,
		DisplayName:       displayName,
		PasswordHash:      hash,
		PasswordSalt:      salt,
		GlobalPermissions: DefaultGlobalPermissions(),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// SetBanningStatus bans or unbans a user and force-expires their sessions on
// ban. Caller must hold MANAGE_ALL_USER.
func (s *Service) SetBanningStatus(ctx context.Context, actor User, userID uuid.UUID, isBanned bool) error {
	if err := requireGlobalPermission(actor, PermManageAllUser); err != nil {
		return err
	}
	if err := s.store.SetBanningStatus(ctx, userID, isBanned); err != nil {
		return err
	}
	if isBanned {
		return s.store.ExpireAllSessions(ctx, userID, "ForceLogout: banned")
	}
	return nil
}

// SetGlobalPermissions replaces a user's global permission set. Caller must
// hold MANAGE_ALL_USER.
func (s *Service) SetGlobalPermissions(ctx context.Context, actor User, userID uuid.UUID, permissions map[string]bool) error {
	if err := requireGlobalPermission(actor, PermManageAllUser); err != nil {
		return err
	}
	return s.store.SetGlobalPermissions(ctx, userID, permissions)
}

// OverwritePassword resets another user's password without knowing the old
// one. Caller must hold MANAGE_ALL_USER.
func (s *Service) OverwritePassword(ctx context.Context, actor User, userID uuid.UUID, newPassword string) error {
	if err := requireGlobalPermission(actor, PermManageAllUser); err != nil {
		return err
	}
	hash, salt, err := hashPassword(newPassword, s.cfg.PBKDF2Iterations)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash, salt); err != nil {
		return err
	}
	return s.store.ExpireAllSessions(ctx, userID, "ForceLogout: password overwritten")
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// FindUser looks a user up by name.
func (s *Service) FindUser(ctx context.Context, userName string) (User, error) {
	return s.store.FindUserByUserName(ctx, strings.TrimSpace(userName))
}

// EnsureAdminUser creates the default admin account if it does not exist yet.
func (s *Service) EnsureAdminUser(ctx context.Context, userName string) error {
	_, err := s.store.FindUserByUserName(ctx, userName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, salt, err := hashPassword(s.cfg.InitialAdminPassword, s.cfg.PBKDF2Iterations)
	if err != nil {
		return err
	}

	now := s.nowFunc()
	_, err = s.store.CreateUser(ctx, User{
		ID:                uuid.New(),
		UserName:          userName,
		DisplayName:       "Default Admin",
		PasswordHash:      hash,
		PasswordSalt:      salt,
		GlobalPermissions: AdminGlobalPermissions(),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	return err
}

func requireGlobalPermission(user User, name string) error {
	if !user.HasGlobalPermission(name) {
		return ErrGlobalPermissionDenied
	}
	return nil
}

func generateAPIKey() (string, error) {
	raw := make([]byte, apiKeyLength/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func extractBearerKey(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || len(parts[1]) != apiKeyLength {
		return "", false
	}
	return parts[1], true
}
