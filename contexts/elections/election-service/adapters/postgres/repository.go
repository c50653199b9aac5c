package postgresadapter

import (
	"errors"
	"log/slog"
	"strings"

	application "ballot/contexts/elections/election-service/application"
	domainerrors "ballot/contexts/elections/election-service/domain/errors"
	"ballot/contexts/elections/election-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Repository implements every election-service port on gorm. The same code
// runs against PostgreSQL in production and SQLite in tests.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// logError records store failures and returns err unchanged. Domain errors
// are outcomes the caller handles, so they pass through without a log line.
func (r *Repository) logError(event string, err error, attrs ...any) error {
	if domainerrors.KindOf(err) != domainerrors.KindInternal {
		return err
	}
	fields := append([]any{
		"event", event,
		"module", application.ModuleName,
		"layer", "adapter",
		"error", err.Error(),
	}, attrs...)
	r.logger.Error("election repository operation failed", fields...)
	return err
}

// isUniqueViolation recognizes unique constraint failures from both the
// PostgreSQL and the SQLite driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return errors.Is(err, gorm.ErrForeignKeyViolated) ||
		strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.CandidateRepository = (*Repository)(nil)
var _ ports.TokenRepository = (*Repository)(nil)
var _ ports.SessionRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.ResultRepository = (*Repository)(nil)
var _ ports.AdminRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
var _ ports.EventDedupStore = (*Repository)(nil)
