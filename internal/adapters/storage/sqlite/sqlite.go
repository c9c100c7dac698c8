// Package sqlite es el driver embebido (GORM + SQLite): sin infraestructura, útil
// para una sola instancia y para desarrollo.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// Open abre (o crea) la base en path y corre AutoMigrate. ":memory:" sirve para tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializa escrituras igual; con una sola conexión además ":memory:"
	// no se parte en varias bases.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(
		&requestRow{},
		&grantRow{},
		&mediaRow{},
		&shareRow{},
		&shareItemRow{},
	); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}

	// a lo sumo un pending por par (índice parcial)
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_access_requests_one_pending
		ON access_requests (requester_id, owner_id)
		WHERE status = 'pending'
	`).Error; err != nil {
		return fmt.Errorf("create pending index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) AccessGrants() *AccessGrantsRepo { return &AccessGrantsRepo{db: s.db} }

func (s *Store) Media() *MediaRepo { return &MediaRepo{db: s.db} }

func (s *Store) Shares() *SharesRepo { return &SharesRepo{db: s.db} }

// utc normaliza antes de escribir o comparar: SQLite compara los datetime como texto.
func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
