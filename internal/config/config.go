package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr       = ":8080"
	defaultAccessTTL        = 15 * time.Minute
	defaultRefreshTTL       = 7 * 24 * time.Hour
	defaultIdentityCacheTTL = 5 * time.Minute
	defaultSuperRole        = "superadmin"
	defaultIssuer           = "tribuna"
)

// Config is built once at startup and passed by value to every component.
// Secrets are mandatory; the process must not come up without them.
type Config struct {
	ListenAddr  string
	PostgresDSN string
	RedisAddr   string
	RedisDB     int

	Issuer           string
	AccessSecret     []byte
	RefreshSecret    []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	IdentityCacheTTL time.Duration
	SuperRole        string
}

// Load reads configuration from the environment and validates it eagerly.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:       envOr("TRIBUNA_LISTEN_ADDR", defaultListenAddr),
		PostgresDSN:      strings.TrimSpace(os.Getenv("TRIBUNA_PG_DSN")),
		RedisAddr:        envOr("TRIBUNA_REDIS_ADDR", "localhost:6379"),
		Issuer:           envOr("TRIBUNA_ISSUER", defaultIssuer),
		AccessSecret:     []byte(strings.TrimSpace(os.Getenv("TRIBUNA_ACCESS_SECRET"))),
		RefreshSecret:    []byte(strings.TrimSpace(os.Getenv("TRIBUNA_REFRESH_SECRET"))),
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		IdentityCacheTTL: defaultIdentityCacheTTL,
		SuperRole:        envOr("TRIBUNA_SUPER_ROLE", defaultSuperRole),
	}

	var err error
	if cfg.RedisDB, err = envInt("TRIBUNA_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL, err = envDuration("TRIBUNA_ACCESS_TTL", cfg.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = envDuration("TRIBUNA_REFRESH_TTL", cfg.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdentityCacheTTL, err = envDuration("TRIBUNA_IDENTITY_CACHE_TTL", cfg.IdentityCacheTTL); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if len(c.AccessSecret) == 0 {
		return errors.New("config: TRIBUNA_ACCESS_SECRET is required")
	}
	if len(c.RefreshSecret) == 0 {
		return errors.New("config: TRIBUNA_REFRESH_SECRET is required")
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 {
		return errors.New("config: access TTL must be positive")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("config: refresh TTL must exceed access TTL")
	}
	if c.IdentityCacheTTL <= 0 {
		return errors.New("config: identity cache TTL must be positive")
	}
	if strings.TrimSpace(c.SuperRole) == "" {
		return errors.New("config: super role name must not be empty")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
