package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballot/contexts/elections/election-service/application"
	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/domain/services"
	"ballot/contexts/elections/election-service/ports"
)

const (
	DefaultAdminSessionTTL = 12 * time.Hour
	minPasswordLength      = 10
	maxPasswordLength      = 72
)

type CreateAdminCommand struct {
	Username string
	Password string
	Role     entities.AdminRole
}

type AdminLoginResult struct {
	Secret    string
	Principal entities.AdminPrincipal
	ExpiresAt time.Time
}

// AdminAuthUseCase covers operator accounts. Admin accounts are created from
// the operator CLI, never over HTTP.
type AdminAuthUseCase struct {
	Admins     ports.AdminRepository
	Hasher     ports.PasswordHasher
	Secrets    ports.SecretGenerator
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	SessionTTL time.Duration
	Logger     *slog.Logger
}

func (uc AdminAuthUseCase) CreateAdmin(ctx context.Context, cmd CreateAdminCommand) (entities.Admin, error) {
	logger := application.ResolveLogger(uc.Logger)
	username := strings.ToLower(strings.TrimSpace(cmd.Username))
	if username == "" {
		return entities.Admin{}, domainerrors.Invalid("username", "username is required")
	}
	if len(cmd.Password) < minPasswordLength {
		return entities.Admin{}, domainerrors.Invalid("password", "password is too short")
	}
	if len(cmd.Password) > maxPasswordLength {
		return entities.Admin{}, domainerrors.Invalid("password", "password is too long")
	}
	role := cmd.Role
	if role == "" {
		role = entities.AdminRoleAdmin
	}
	if !role.Valid() {
		return entities.Admin{}, domainerrors.Invalid("role", "role must be admin or auditor")
	}

	hash, err := uc.Hasher.Hash(cmd.Password)
	if err != nil {
		return entities.Admin{}, err
	}
	adminID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Admin{}, err
	}
	now := resolveNow(uc.Clock)
	admin := entities.Admin{
		AdminID:      adminID,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.Admins.CreateAdmin(ctx, admin); err != nil {
		return entities.Admin{}, err
	}
	logger.Info("admin created",
		"event", "admin_created",
		"module", application.ModuleName,
		"layer", "application",
		"admin_id", admin.AdminID,
		"role", string(admin.Role),
	)
	return admin, nil
}

// Login answers ErrInvalidCredentials for both unknown users and wrong
// passwords.
func (uc AdminAuthUseCase) Login(ctx context.Context, username string, password string) (AdminLoginResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return AdminLoginResult{}, domainerrors.ErrInvalidCredentials
	}
	admin, err := uc.Admins.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAdminNotFound) {
			return AdminLoginResult{}, domainerrors.ErrInvalidCredentials
		}
		return AdminLoginResult{}, err
	}
	if err := uc.Hasher.Compare(admin.PasswordHash, password); err != nil {
		logger.Warn("admin login failed",
			"event", "admin_login_failed",
			"module", application.ModuleName,
			"layer", "application",
			"admin_id", admin.AdminID,
		)
		return AdminLoginResult{}, domainerrors.ErrInvalidCredentials
	}

	secret, err := uc.secrets().NewSessionSecret()
	if err != nil {
		return AdminLoginResult{}, err
	}
	sessionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return AdminLoginResult{}, err
	}
	now := resolveNow(uc.Clock)
	session := entities.AdminSession{
		SessionID:   sessionID,
		AdminID:     admin.AdminID,
		SessionHash: services.HashSecret(secret),
		ExpiresAt:   now.Add(uc.sessionTTL()),
		CreatedAt:   now,
	}
	if err := uc.Admins.CreateAdminSession(ctx, session); err != nil {
		return AdminLoginResult{}, err
	}
	logger.Info("admin logged in",
		"event", "admin_login_succeeded",
		"module", application.ModuleName,
		"layer", "application",
		"admin_id", admin.AdminID,
		"session_id", session.SessionID,
	)
	return AdminLoginResult{
		Secret:    secret,
		Principal: principalOf(admin),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (uc AdminAuthUseCase) Authenticate(ctx context.Context, secret string) (entities.AdminPrincipal, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return entities.AdminPrincipal{}, domainerrors.ErrUnauthorized
	}
	session, found, err := uc.Admins.GetAdminSessionByHash(ctx, services.HashSecret(secret))
	if err != nil {
		return entities.AdminPrincipal{}, err
	}
	if !found {
		return entities.AdminPrincipal{}, domainerrors.ErrUnauthorized
	}
	if session.Expired(resolveNow(uc.Clock)) {
		if err := uc.Admins.DeleteAdminSession(ctx, session.SessionID); err != nil {
			return entities.AdminPrincipal{}, err
		}
		return entities.AdminPrincipal{}, domainerrors.ErrSessionExpired
	}
	admin, err := uc.Admins.GetAdmin(ctx, session.AdminID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAdminNotFound) {
			return entities.AdminPrincipal{}, domainerrors.ErrUnauthorized
		}
		return entities.AdminPrincipal{}, err
	}
	return principalOf(admin), nil
}

func (uc AdminAuthUseCase) Logout(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil
	}
	session, found, err := uc.Admins.GetAdminSessionByHash(ctx, services.HashSecret(secret))
	if err != nil || !found {
		return err
	}
	return uc.Admins.DeleteAdminSession(ctx, session.SessionID)
}

func (uc AdminAuthUseCase) sessionTTL() time.Duration {
	if uc.SessionTTL <= 0 {
		return DefaultAdminSessionTTL
	}
	return uc.SessionTTL
}

func (uc AdminAuthUseCase) secrets() ports.SecretGenerator {
	if uc.Secrets == nil {
		return services.CodeGenerator{}
	}
	return uc.Secrets
}

func principalOf(admin entities.Admin) entities.AdminPrincipal {
	return entities.AdminPrincipal{
		AdminID:  admin.AdminID,
		Username: admin.Username,
		Role:     admin.Role,
	}
}
