package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 300*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 30*time.Second, cfg.Lock.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.Job.DedupWindow)
	assert.Equal(t, time.Hour, cfg.Job.StaleAfter)
	assert.Equal(t, time.Hour, cfg.Job.QuotaWait)
	assert.Equal(t, 10*time.Second, cfg.Worker.Throttle)
	assert.Equal(t, 500000, cfg.Worker.MaxTextChars)
	assert.Equal(t, 10, cfg.Worker.MaxRateLimitRetries)
	assert.Equal(t, "token", cfg.Auth.Mode)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WORKER_THROTTLE=2s\nGEMINI_API_KEYS=k1, ,k2\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("WORKER_THROTTLE")
		os.Unsetenv("GEMINI_API_KEYS")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Worker.Throttle)
	assert.Equal(t, []string{"k1", "k2"}, cfg.AI.GeminiAPIKeys)
}

func TestLoad_Invalid(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		key, value string
	}{
		{"DB_DRIVER", "mysql"},
		{"AUTH_MODE", "jwt"},
		{"BLOB_BACKEND", "minio"},
		{"AUTH_MODE", "saml"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestOpenDb_Sqlite(t *testing.T) {
	cfg := &Config{DB: DBConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")}}
	db, err := OpenDb(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
	assert.NoError(t, sqlDB.Close())
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	require.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	assert.Error(t, SetupLogging(LogConfig{Level: "loud"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "info", Format: "xml"}))
}
