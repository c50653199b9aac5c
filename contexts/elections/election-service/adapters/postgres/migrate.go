package postgresadapter

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// goose keeps dialect and base FS as package globals.
var migrateMu sync.Mutex

// RunMigrations applies the embedded schema for the connection's dialect.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	dir, dialect, err := migrationTarget(db.Dialector.Name())
	if err != nil {
		return err
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func migrationTarget(dialector string) (string, string, error) {
	switch dialector {
	case "postgres":
		return "migrations/postgres", "postgres", nil
	case "sqlite":
		return "migrations/sqlite", "sqlite3", nil
	default:
		return "", "", fmt.Errorf("unsupported database dialect %q", dialector)
	}
}
