// Package audit persists a best-effort record of the speak/expression/
// motion/generate actions that the control-plane router logs (its REST
// endpoints and the client-ws expression-command and text-input frames;
// scheduler and chat-ingest speech is not recorded), with a scheduled retention
// sweep, using a driver-switchable gorm connection and a plain
// model/TableName mapper.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one audited action. Kept denormalized; this table is
// write-heavy and read only for retention sweeps and manual inspection.
type Record struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"column:session_id;index"`
	Mode       string `gorm:"column:mode"`
	Action     string `gorm:"column:action"` // "speak" | "expression" | "motion" | "generate"
	Status     string `gorm:"column:status"`
	Detail     string `gorm:"column:detail"`
	CreatedAt  time.Time `gorm:"column:created_at;index"`
}

func (Record) TableName() string { return "audit_records" }

// Store wraps a *gorm.DB and never lets a write failure propagate to
// the caller's request path; Log always returns immediately.
type Store struct {
	db *gorm.DB
}

// Open dials driver ("sqlite" | "postgres") using dsn and migrates the
// schema. An empty driver disables auditing entirely — Open returns a
// nil *Store in that case, and every method on a nil *Store is a no-op.
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		return nil, nil
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", dsn))
	default:
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	return &Store{db: db}, nil
}

// Log writes one record asynchronously, best-effort. A nil Store (or a
// nil receiver) is always safe to call.
func (s *Store) Log(sessionID, mode, action, status, detail string) {
	if s == nil {
		return
	}
	rec := Record{SessionID: sessionID, Mode: mode, Action: action, Status: status, Detail: detail, CreatedAt: time.Now().UTC()}
	go func() {
		if err := s.db.Create(&rec).Error; err != nil {
			logrus.WithError(err).Warn("audit: failed to persist record")
		}
	}()
}

// Sweep deletes records older than retention. Safe on a nil Store.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().UTC().Add(-retention)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Record{}).Error
}
