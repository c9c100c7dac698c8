// Package config arma la configuración del servidor: defaults, después un TOML
// opcional y por último variables de entorno (gana la última).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port string

	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Limits LimitsConfig
	Sweep  SweepConfig
	Log    LogConfig

	// UnknownKeys son claves del TOML que no se reconocieron (el caller las loguea).
	UnknownKeys []string
}

type DBConfig struct {
	Driver         string
	DSN            string
	SQLitePath     string
	MigrateOnStart bool
}

type RedisConfig struct {
	// URL vacía = sin redis: rate limit de shares en memoria y realtime solo local.
	URL string
}

type AuthConfig struct {
	// VerifyURL vacía = modo dev (X-Debug-User-ID).
	VerifyURL string
	APIKey    string
}

type LimitsConfig struct {
	RequestsPerMinute     int
	RequestBurst          int
	PortfolioSharesPerDay int
}

type SweepConfig struct {
	Schedule string
}

type LogConfig struct {
	Level  string
	Format string
	App    string
}

func Default() Config {
	return Config{
		Port: "8080",
		DB: DBConfig{
			Driver:         DriverMemory,
			SQLitePath:     "data/media-access.db",
			MigrateOnStart: true,
		},
		Limits: LimitsConfig{
			RequestsPerMinute:     10,
			RequestBurst:          5,
			PortfolioSharesPerDay: 5,
		},
		Sweep: SweepConfig{Schedule: "@every 1m"},
		Log:   LogConfig{Level: "info", Format: "text", App: "media-access"},
	}
}

// fileConfig tiene punteros para distinguir "no vino" de "vino vacío".
type fileConfig struct {
	Server *struct {
		Port *string `toml:"port"`
	} `toml:"server"`
	DB *struct {
		Driver         *string `toml:"driver"`
		DSN            *string `toml:"dsn"`
		SQLitePath     *string `toml:"sqlite_path"`
		MigrateOnStart *bool   `toml:"migrate_on_start"`
	} `toml:"db"`
	Redis *struct {
		URL *string `toml:"url"`
	} `toml:"redis"`
	Auth *struct {
		VerifyURL *string `toml:"verify_url"`
		APIKey    *string `toml:"api_key"`
	} `toml:"auth"`
	Limits *struct {
		RequestsPerMinute     *int `toml:"requests_per_minute"`
		RequestBurst          *int `toml:"request_burst"`
		PortfolioSharesPerDay *int `toml:"portfolio_shares_per_day"`
	} `toml:"limits"`
	Sweep *struct {
		Schedule *string `toml:"schedule"`
	} `toml:"sweep"`
	Log *struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
		App    *string `toml:"app"`
	} `toml:"log"`
}

// Load aplica defaults -> archivo (si path != "") -> entorno, y valida.
// Un path que no existe o no parsea es error.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	for _, k := range meta.Undecoded() {
		c.UnknownKeys = append(c.UnknownKeys, k.String())
	}

	if s := fc.Server; s != nil {
		setString(&c.Port, s.Port)
	}
	if d := fc.DB; d != nil {
		setString(&c.DB.Driver, d.Driver)
		setString(&c.DB.DSN, d.DSN)
		setString(&c.DB.SQLitePath, d.SQLitePath)
		if d.MigrateOnStart != nil {
			c.DB.MigrateOnStart = *d.MigrateOnStart
		}
	}
	if r := fc.Redis; r != nil {
		setString(&c.Redis.URL, r.URL)
	}
	if a := fc.Auth; a != nil {
		setString(&c.Auth.VerifyURL, a.VerifyURL)
		setString(&c.Auth.APIKey, a.APIKey)
	}
	if l := fc.Limits; l != nil {
		setInt(&c.Limits.RequestsPerMinute, l.RequestsPerMinute)
		setInt(&c.Limits.RequestBurst, l.RequestBurst)
		setInt(&c.Limits.PortfolioSharesPerDay, l.PortfolioSharesPerDay)
	}
	if s := fc.Sweep; s != nil {
		setString(&c.Sweep.Schedule, s.Schedule)
	}
	if l := fc.Log; l != nil {
		setString(&c.Log.Level, l.Level)
		setString(&c.Log.Format, l.Format)
		setString(&c.Log.App, l.App)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("PORT", &c.Port)
	str("DB_DRIVER", &c.DB.Driver)
	str("DB_DSN", &c.DB.DSN)
	str("SQLITE_PATH", &c.DB.SQLitePath)
	str("REDIS_URL", &c.Redis.URL)
	str("AUTH_VERIFY_URL", &c.Auth.VerifyURL)
	str("AUTH_API_KEY", &c.Auth.APIKey)
	str("SWEEP_SCHEDULE", &c.Sweep.Schedule)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("APP_NAME", &c.Log.App)

	if v := strings.TrimSpace(getenv("MIGRATE_ON_START")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MIGRATE_ON_START must be a boolean, got %q", v)
		}
		c.DB.MigrateOnStart = b
	}

	return errors.Join(
		num("REQUEST_RATE_PER_MINUTE", &c.Limits.RequestsPerMinute),
		num("REQUEST_BURST", &c.Limits.RequestBurst),
		num("PORTFOLIO_SHARES_PER_DAY", &c.Limits.PortfolioSharesPerDay),
	)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func (c Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port must be numeric, got %q", c.Port))
	}

	switch c.DB.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.DB.DSN) == "" {
			errs = append(errs, errors.New("db driver postgres needs DB_DSN"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.DB.SQLitePath) == "" {
			errs = append(errs, errors.New("db driver sqlite needs SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q (memory, postgres, sqlite)", c.DB.Driver))
	}

	if c.Limits.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Limits.RequestBurst <= 0 {
		errs = append(errs, errors.New("request burst must be positive"))
	}
	if c.Limits.PortfolioSharesPerDay <= 0 {
		errs = append(errs, errors.New("portfolio shares per day must be positive"))
	}

	if _, err := scheduleParser.Parse(c.Sweep.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid sweep schedule %q: %w", c.Sweep.Schedule, err))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr es la dirección de escucha del server.
func (c Config) Addr() string { return ":" + c.Port }

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
