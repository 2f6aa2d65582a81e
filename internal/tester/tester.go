package tester

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Epoch is the time every stub clock starts at.
var Epoch = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

// Setup opens a fresh sqlite database for the test and migrates it.
func Setup(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "studyhub.db") + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	if err = model.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// Store returns a gorm store over a fresh test database.
func Store(t testing.TB) *store.GormStore {
	return store.NewGormStore(Setup(t))
}

func Clock() *clock.StubClock {
	return clock.NewStubClock(Epoch)
}
