package postgresadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"ballot/contexts/elections/election-service/domain/entities"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repository) CreateAdmin(ctx context.Context, admin entities.Admin) error {
	row := adminModel{
		ID:           strings.TrimSpace(admin.AdminID),
		Username:     strings.TrimSpace(admin.Username),
		PasswordHash: admin.PasswordHash,
		Role:         string(admin.Role),
		CreatedAt:    admin.CreatedAt.UTC(),
		UpdatedAt:    admin.UpdatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateAdmin
		}
		return r.logError("election_repo_create_admin_failed", err, "admin_id", row.ID)
	}
	return nil
}

func (r *Repository) GetAdminByUsername(ctx context.Context, username string) (entities.Admin, error) {
	return r.findAdmin(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *Repository) GetAdmin(ctx context.Context, adminID string) (entities.Admin, error) {
	return r.findAdmin(ctx, "id = ?", strings.TrimSpace(adminID))
}

func (r *Repository) CreateAdminSession(ctx context.Context, session entities.AdminSession) error {
	row := adminSessionModel{
		ID:          session.SessionID,
		AdminID:     session.AdminID,
		SessionHash: session.SessionHash,
		ExpiresAt:   session.ExpiresAt.UTC(),
		CreatedAt:   session.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isForeignKeyViolation(err) {
			return domainerrors.ErrAdminNotFound
		}
		return r.logError("election_repo_create_admin_session_failed", err, "admin_id", row.AdminID)
	}
	return nil
}

func (r *Repository) GetAdminSessionByHash(ctx context.Context, sessionHash string) (entities.AdminSession, bool, error) {
	var row adminSessionModel
	err := r.db.WithContext(ctx).Where("session_hash = ?", sessionHash).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.AdminSession{}, false, nil
		}
		return entities.AdminSession{}, false, r.logError("election_repo_get_admin_session_failed", err)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) DeleteAdminSession(ctx context.Context, sessionID string) error {
	if err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(sessionID)).
		Delete(&adminSessionModel{}).Error; err != nil {
		return r.logError("election_repo_delete_admin_session_failed", err, "session_id", strings.TrimSpace(sessionID))
	}
	return nil
}

func (r *Repository) DeleteExpiredAdminSessions(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&adminSessionModel{})
	if result.Error != nil {
		return 0, r.logError("election_repo_delete_expired_admin_sessions_failed", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *Repository) findAdmin(ctx context.Context, query string, arg any) (entities.Admin, error) {
	var row adminModel
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Admin{}, domainerrors.ErrAdminNotFound
		}
		return entities.Admin{}, r.logError("election_repo_get_admin_failed", err, "lookup", query)
	}
	return row.toEntity(), nil
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}
