package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"pingwatch/internal/urlutil"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ServerWriteTimeout bounds writing a response, including a synchronous
// submission probe. MaxProbeTimeout keeps the probe well inside it.
const (
	ServerWriteTimeout = 15 * time.Second
	MaxProbeTimeout    = 10 * time.Second
)

// DefaultSQLitePath is used when the sqlite driver is selected without a url.
const DefaultSQLitePath = "pingwatch.db"

type ServerConfig struct {
	Address       string        `mapstructure:"address"`
	Environment   string        `mapstructure:"environment"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type ProbeConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type SweepConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	RunOnStart  bool          `mapstructure:"run_on_start"`
}

type ResultsConfig struct {
	PushInterval time.Duration `mapstructure:"push_interval"`
}

type TargetsConfig struct {
	AllowedDomains []string `mapstructure:"allowed_domains"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Results  ResultsConfig  `mapstructure:"results"`
	Targets  TargetsConfig  `mapstructure:"targets"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from an optional YAML file and the environment.
// With an empty path, config.yaml is searched in ./config and the working
// directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.shutdown_grace", "10s")
	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.name", "flask_db")
	v.SetDefault("database.user", "flask")
	v.SetDefault("database.password", "")
	v.SetDefault("probe.timeout", "5s")
	v.SetDefault("sweep.interval", "5m")
	v.SetDefault("sweep.concurrency", 1)
	v.SetDefault("sweep.run_on_start", false)
	v.SetDefault("results.push_interval", "10s")
	v.SetDefault("targets.allowed_domains", urlutil.DefaultAllowedDomains)
	v.SetDefault("logging.level", LogLevelInfo)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Variable names understood by earlier deployments.
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.host", "POSTGRES_HOST")
	_ = v.BindEnv("database.name", "POSTGRES_DB")
	_ = v.BindEnv("database.user", "POSTGRES_USER")
	_ = v.BindEnv("database.password", "POSTGRES_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Debug("config file not found, using defaults and environment variables")
	} else {
		slog.Debug("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverFromURL(cfg.Database.URL)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// DriverFromURL picks the driver implied by a database url: postgres for
// postgres:// and postgresql:// urls, sqlite otherwise.
func DriverFromURL(dbURL string) string {
	if isPostgresURL(dbURL) {
		return DriverPostgres
	}
	return DriverSQLite
}

func isPostgresURL(dbURL string) bool {
	u, err := url.Parse(dbURL)
	if err != nil {
		return false
	}
	return u.Scheme == "postgres" || u.Scheme == "postgresql"
}

// DSN returns the connection string for the configured driver. Postgres
// settings are assembled from host, name, user and password when no url is set.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case DriverPostgres:
		if d.URL != "" {
			return d.URL
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   d.Host,
			Path:   "/" + d.Name,
		}
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else if d.User != "" {
			u.User = url.User(d.User)
		}
		return u.String()
	case DriverSQLite:
		if d.URL != "" {
			return d.URL
		}
		return DefaultSQLitePath
	default:
		return d.URL
	}
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server, validation.By(func(value interface{}) error {
			sc, ok := value.(ServerConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ServerConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Environment,
					validation.Required,
					validation.In(EnvDev, EnvStaging, EnvProd),
				),
				validation.Field(&sc.Address,
					validation.Required,
					validation.By(ValidateHostPort),
				),
				validation.Field(&sc.ShutdownGrace, validation.Min(time.Duration(0))),
			)
		})),
		validation.Field(&c.Database, validation.By(func(value interface{}) error {
			dc, ok := value.(DatabaseConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a DatabaseConfig")
			}
			return validation.ValidateStruct(&dc,
				validation.Field(&dc.Driver,
					validation.Required,
					validation.In(DriverSQLite, DriverPostgres, DriverMemory),
				),
				validation.Field(&dc.URL,
					validation.When(dc.Driver == DriverSQLite && isPostgresURL(dc.URL),
						validation.By(func(interface{}) error {
							return validation.NewError("validation_driver_mismatch", "is a postgres url but the sqlite driver is selected")
						}),
					),
				),
				validation.Field(&dc.Host,
					validation.When(dc.Driver == DriverPostgres && dc.URL == "", validation.Required),
				),
				validation.Field(&dc.Name,
					validation.When(dc.Driver == DriverPostgres && dc.URL == "", validation.Required),
				),
			)
		})),
		validation.Field(&c.Probe, validation.By(func(value interface{}) error {
			pc, ok := value.(ProbeConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ProbeConfig")
			}
			return validation.ValidateStruct(&pc,
				validation.Field(&pc.Timeout,
					validation.Required,
					validation.Min(time.Millisecond),
					validation.Max(MaxProbeTimeout),
				),
			)
		})),
		validation.Field(&c.Sweep, validation.By(func(value interface{}) error {
			sc, ok := value.(SweepConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a SweepConfig")
			}
			return validation.ValidateStruct(&sc,
				validation.Field(&sc.Interval, validation.Required, validation.Min(time.Second)),
				validation.Field(&sc.Concurrency, validation.Required, validation.Min(1)),
			)
		})),
		validation.Field(&c.Results, validation.By(func(value interface{}) error {
			rc, ok := value.(ResultsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a ResultsConfig")
			}
			return validation.ValidateStruct(&rc,
				validation.Field(&rc.PushInterval, validation.Required, validation.Min(time.Second)),
			)
		})),
		validation.Field(&c.Targets, validation.By(func(value interface{}) error {
			tc, ok := value.(TargetsConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a TargetsConfig")
			}
			return validation.ValidateStruct(&tc,
				validation.Field(&tc.AllowedDomains,
					validation.Required,
					validation.Each(validation.Required, is.Host),
				),
			)
		})),
		validation.Field(&c.Logging, validation.By(func(value interface{}) error {
			lc, ok := value.(LoggingConfig)
			if !ok {
				return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
			}
			return validation.ValidateStruct(&lc,
				validation.Field(&lc.Level,
					validation.Required,
					validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
				),
			)
		})),
	)
}

// ValidateHostPort accepts "host:port" and ":port" listen addresses.
func ValidateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
