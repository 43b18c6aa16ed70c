package repository

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose хранит диалект и файловую систему глобально
var migrateMu sync.Mutex

// Migrate применяет встроенные миграции для указанного диалекта ("postgres" или "sqlite3")
func Migrate(db *sql.DB, dialect string) error {
	var dir string
	switch dialect {
	case "postgres":
		dir = "migrations/postgres"
	case "sqlite3":
		dir = "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
