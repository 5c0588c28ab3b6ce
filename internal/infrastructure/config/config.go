package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string

	SessionHashKey  []byte // base64
	SessionBlockKey []byte // base64

	CredEncKey []byte // 32 bytes for AES-256-GCM, base64

	DevMode  bool
	LogLevel string

	Library  LibraryConfig
	Booking  BookingConfig
	Schedule ScheduleConfig
}

// LibraryConfig addresses the remote reservation service.
type LibraryConfig struct {
	BaseURL               string
	ClientID              string
	Source                string
	FloorID               string
	LibraryID             string
	SeatReservationType   string
	PeriodReservationType string
	Timeout               time.Duration
}

type BookingConfig struct {
	ZonePriority    []string
	SouthZone       string
	DaysAhead       int
	Timezone        string
	Location        *time.Location
	ClaimInterval   time.Duration
	ConflictRetries int
	ConflictBackoff time.Duration
	SnipeInterval   time.Duration
}

type ScheduleConfig struct {
	Cron    string
	Enabled bool
}

// Need names a setting that only some commands require.
type Need int

const (
	NeedDatabase Need = iota
	NeedSessions
	NeedCredKey
)

func FromEnv() (Config, error) { return Load("") }

// Load reads defaults, then the optional config file at path, then the
// environment (HTTP_ADDR, DATABASE_URL, ...), later sources winning.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := bind(v)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_HASH_KEY", "")
	v.SetDefault("SESSION_BLOCK_KEY", "")
	v.SetDefault("CRED_ENC_KEY", "")
	v.SetDefault("DEV_MODE", false)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("API_BASE_URL", "https://yuyue.library.sh.cn")
	v.SetDefault("CLIENT_ID", "1837178870")
	v.SetDefault("SOURCE", "1")
	v.SetDefault("FLOOR_ID", "4")
	v.SetDefault("LIBRARY_ID", "1")
	v.SetDefault("SEAT_RESERVATION_TYPE", "2")
	v.SetDefault("PERIOD_RESERVATION_TYPE", "14")
	v.SetDefault("HTTP_TIMEOUT", "10s")

	v.SetDefault("ZONE_PRIORITY", "西,东,北,南")
	v.SetDefault("SOUTH_ZONE", "南")
	v.SetDefault("DAYS_AHEAD", 6)
	v.SetDefault("TIMEZONE", "Asia/Shanghai")
	v.SetDefault("CLAIM_INTERVAL", "500ms")
	v.SetDefault("CONFLICT_RETRIES", 3)
	v.SetDefault("CONFLICT_BACKOFF", "1s")
	v.SetDefault("SNIPE_INTERVAL", "10s")

	v.SetDefault("SCHEDULE_CRON", "0-5 12 * * *")
	v.SetDefault("SCHEDULE_ENABLED", true)
}

func bind(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddr:    strings.TrimSpace(v.GetString("HTTP_ADDR")),
		DatabaseURL: strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(v.GetString("REDIS_URL")),
		DevMode:     v.GetBool("DEV_MODE"),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		Library: LibraryConfig{
			BaseURL:               strings.TrimRight(strings.TrimSpace(v.GetString("API_BASE_URL")), "/"),
			ClientID:              v.GetString("CLIENT_ID"),
			Source:                v.GetString("SOURCE"),
			FloorID:               v.GetString("FLOOR_ID"),
			LibraryID:             v.GetString("LIBRARY_ID"),
			SeatReservationType:   v.GetString("SEAT_RESERVATION_TYPE"),
			PeriodReservationType: v.GetString("PERIOD_RESERVATION_TYPE"),
			Timeout:               v.GetDuration("HTTP_TIMEOUT"),
		},
		Booking: BookingConfig{
			ZonePriority:    stringList(v.Get("ZONE_PRIORITY")),
			SouthZone:       strings.TrimSpace(v.GetString("SOUTH_ZONE")),
			DaysAhead:       v.GetInt("DAYS_AHEAD"),
			Timezone:        strings.TrimSpace(v.GetString("TIMEZONE")),
			ClaimInterval:   v.GetDuration("CLAIM_INTERVAL"),
			ConflictRetries: v.GetInt("CONFLICT_RETRIES"),
			ConflictBackoff: v.GetDuration("CONFLICT_BACKOFF"),
			SnipeInterval:   v.GetDuration("SNIPE_INTERVAL"),
		},
		Schedule: ScheduleConfig{
			Cron:    strings.TrimSpace(v.GetString("SCHEDULE_CRON")),
			Enabled: v.GetBool("SCHEDULE_ENABLED"),
		},
	}

	var err error
	if cfg.SessionHashKey, err = decodeKey("SESSION_HASH_KEY", v.GetString("SESSION_HASH_KEY")); err != nil {
		return cfg, err
	}
	if cfg.SessionBlockKey, err = decodeKey("SESSION_BLOCK_KEY", v.GetString("SESSION_BLOCK_KEY")); err != nil {
		return cfg, err
	}
	if cfg.CredEncKey, err = decodeKey("CRED_ENC_KEY", v.GetString("CRED_ENC_KEY")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must not be empty"))
	}
	if c.Library.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL must not be empty"))
	}
	if c.Library.Timeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if len(c.Booking.ZonePriority) == 0 {
		errs = append(errs, errors.New("ZONE_PRIORITY must list at least one zone"))
	}
	if c.Booking.DaysAhead < 0 {
		errs = append(errs, errors.New("DAYS_AHEAD must be >= 0"))
	}
	if c.Booking.ClaimInterval < 0 {
		errs = append(errs, errors.New("CLAIM_INTERVAL must be >= 0"))
	}
	if c.Booking.ConflictRetries < 0 {
		errs = append(errs, errors.New("CONFLICT_RETRIES must be >= 0"))
	}
	if c.Booking.ConflictBackoff < 0 {
		errs = append(errs, errors.New("CONFLICT_BACKOFF must be >= 0"))
	}
	if c.Booking.SnipeInterval <= 0 {
		errs = append(errs, errors.New("SNIPE_INTERVAL must be positive"))
	}
	if c.Schedule.Cron == "" {
		errs = append(errs, errors.New("SCHEDULE_CRON must not be empty"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	} else {
		c.Booking.Location = loc
	}
	if len(c.CredEncKey) != 0 && len(c.CredEncKey) != 32 {
		errs = append(errs, fmt.Errorf("CRED_ENC_KEY must decode to 32 bytes (got %d)", len(c.CredEncKey)))
	}
	return errors.Join(errs...)
}

// Require checks settings that only some commands depend on.
func (c Config) Require(needs ...Need) error {
	var errs []error
	for _, n := range needs {
		switch n {
		case NeedDatabase:
			if c.DatabaseURL == "" {
				errs = append(errs, errors.New("DATABASE_URL is required"))
			}
		case NeedSessions:
			if len(c.SessionHashKey) == 0 {
				errs = append(errs, errors.New("SESSION_HASH_KEY is required (base64)"))
			}
			if len(c.SessionBlockKey) == 0 {
				errs = append(errs, errors.New("SESSION_BLOCK_KEY is required (base64)"))
			}
		case NeedCredKey:
			if len(c.CredEncKey) == 0 {
				errs = append(errs, errors.New("CRED_ENC_KEY is required (base64)"))
			}
		}
	}
	return errors.Join(errs...)
}

// Now returns the current time in the booking timezone.
func (c Config) Now() time.Time {
	if c.Booking.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Booking.Location)
}

func stringList(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decodeKey accepts std or raw base64, or a path to a file holding either.
func decodeKey(name, v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if b, err := os.ReadFile(v); err == nil {
		v = strings.TrimSpace(string(b))
	}
	if b, err := base64.StdEncoding.DecodeString(v); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
