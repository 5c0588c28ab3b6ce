package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "https://yuyue.library.sh.cn", cfg.Library.BaseURL)
	assert.Equal(t, "4", cfg.Library.FloorID)
	assert.Equal(t, "14", cfg.Library.PeriodReservationType)
	assert.Equal(t, []string{"西", "东", "北", "南"}, cfg.Booking.ZonePriority)
	assert.Equal(t, "南", cfg.Booking.SouthZone)
	assert.Equal(t, 6, cfg.Booking.DaysAhead)
	assert.Equal(t, 3, cfg.Booking.ConflictRetries)
	assert.Equal(t, time.Second, cfg.Booking.ConflictBackoff)
	assert.Equal(t, 10*time.Second, cfg.Booking.SnipeInterval)
	assert.Equal(t, "0-5 12 * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.Enabled)
	require.NotNil(t, cfg.Booking.Location)
	assert.Equal(t, "Asia/Shanghai", cfg.Booking.Location.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("ZONE_PRIORITY", " 北 , 南,,东")
	t.Setenv("CONFLICT_RETRIES", "5")
	t.Setenv("CLAIM_INTERVAL", "250ms")
	t.Setenv("CRED_ENC_KEY", key)
	t.Setenv("API_BASE_URL", "http://localhost:1234/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"北", "南", "东"}, cfg.Booking.ZonePriority)
	assert.Equal(t, 5, cfg.Booking.ConflictRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Booking.ClaimInterval)
	assert.Len(t, cfg.CredEncKey, 32)
	assert.Equal(t, "http://localhost:1234", cfg.Library.BaseURL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seatsched.yaml")
	body := "http_addr: \":7070\"\nzone_priority:\n  - 东\n  - 西\nschedule_cron: \"30 8 * * *\"\nschedule_enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr)
	assert.Equal(t, []string{"东", "西"}, cfg.Booking.ZonePriority)
	assert.Equal(t, "30 8 * * *", cfg.Schedule.Cron)
	assert.False(t, cfg.Schedule.Enabled)
}

func TestLoadReportsAllProblems(t *testing.T) {
	t.Setenv("DAYS_AHEAD", "-1")
	t.Setenv("TIMEZONE", "Nowhere/Special")
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("CRED_ENC_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := Load("")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DAYS_AHEAD")
	assert.Contains(t, msg, "TIMEZONE")
	assert.Contains(t, msg, "LOG_LEVEL")
	assert.Contains(t, msg, "CRED_ENC_KEY must decode to 32 bytes")
}

func TestLoadBadBase64(t *testing.T) {
	t.Setenv("SESSION_HASH_KEY", "%%%not-base64%%%")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_HASH_KEY")
}

func TestRequire(t *testing.T) {
	var cfg Config
	err := cfg.Require(NeedDatabase, NeedSessions, NeedCredKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SESSION_HASH_KEY")
	assert.Contains(t, err.Error(), "CRED_ENC_KEY")

	cfg.DatabaseURL = "postgres://localhost/seats"
	assert.NoError(t, cfg.Require(NeedDatabase))
}
