package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NonStopMan/vamo-heatos/internal/api"
	"github.com/NonStopMan/vamo-heatos/internal/crm"
	"github.com/NonStopMan/vamo-heatos/internal/intake"
	"github.com/NonStopMan/vamo-heatos/internal/lock"
	"github.com/NonStopMan/vamo-heatos/internal/store"
	"github.com/NonStopMan/vamo-heatos/internal/syncer"
	"github.com/NonStopMan/vamo-heatos/pkg/salesforce"
)

// EnvPrefix prefixes every environment override, e.g. HEATOS_SERVER_PORT.
const EnvPrefix = "HEATOS"

// EnvFileVar names an alternative .env file.
const EnvFileVar = "HEATOS_ENV_FILE"

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig   `yaml:"store" mapstructure:"store"`
	Server     api.Config    `yaml:"server" mapstructure:"server"`
	Links      intake.Links  `yaml:"links" mapstructure:"links"`
	Salesforce crm.Config    `yaml:"salesforce" mapstructure:"salesforce"`
	Sync       syncer.Config `yaml:"sync" mapstructure:"sync"`
	Redis      lock.Config   `yaml:"redis" mapstructure:"redis"`
	Log        LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. For sqlite, DatabaseURL is
// the file path or DSN.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the unprefixed variable names used by
// existing deployments.
var legacyEnv = map[string]string{
	"store.database_url":          "DATABASE_URL",
	"server.port":                 "PORT",
	"server.api_key":              "API_KEY",
	"server.cors_origin":          "WEB_ORIGIN",
	"salesforce.enabled":          "SALESFORCE_ENABLED",
	"salesforce.client_id":        "SALESFORCE_CLIENT_ID",
	"salesforce.username":         "SALESFORCE_USERNAME",
	"salesforce.login_url":        "SALESFORCE_LOGIN_URL",
	"salesforce.private_key":      "SALESFORCE_PRIVATE_KEY",
	"salesforce.api_version":      "SALESFORCE_API_VERSION",
	"salesforce.allow_duplicates": "SALESFORCE_ALLOW_DUPLICATES",
	"links.data_acquisition":      "DATA_ACQUISITION_LINK",
	"links.appointment_booking":   "APPOINTMENT_BOOKING_LINK",
}

// Load reads configuration from the .env file, config.yaml and environment.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	// A YAML boolean would otherwise decode weakly as "1".
	cfg.Salesforce.Enabled = v.GetString("salesforce.enabled")

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can populate it on
// Unmarshal, including keys whose default is empty.
func setDefaults(v *viper.Viper) {
	links := intake.DefaultLinks()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "heatos.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.cors_origin", "http://localhost:5173")
	v.SetDefault("server.rate_limit_rps", 1.0)
	v.SetDefault("server.rate_limit_burst", 60)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("links.data_acquisition", links.DataAcquisition)
	v.SetDefault("links.appointment_booking", links.AppointmentBooking)

	v.SetDefault("salesforce.enabled", "false")
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.login_url", salesforce.DefaultLoginURL)
	v.SetDefault("salesforce.private_key", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.api_version", salesforce.DefaultAPIVersion)
	v.SetDefault("salesforce.allow_duplicates", false)
	v.SetDefault("salesforce.timeout_secs", 30)
	v.SetDefault("salesforce.rate_limit", 0.0)

	v.SetDefault("sync.interval_secs", 60)
	v.SetDefault("sync.run_on_start", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_key", lock.DefaultKey)
	v.SetDefault("redis.lock_ttl_secs", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// loadEnvFile loads HEATOS_ENV_FILE, or .env when present. Variables already
// set in the process environment win.
func loadEnvFile() error {
	path := os.Getenv(EnvFileVar)
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return eris.Wrapf(err, "config: load env file %s", path)
	}
	return nil
}

// Validate checks the settings a command mode depends on. Modes: "serve",
// "sync", "store", "crm".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "sync", "store", "crm":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if c.Links.DataAcquisition == "" || c.Links.AppointmentBooking == "" {
			errs = append(errs, "links.data_acquisition and links.appointment_booking are required")
		}
	}

	if mode == "serve" || mode == "sync" {
		if c.Sync.IntervalSecs < 0 {
			errs = append(errs, "sync.interval_secs must be >= 0")
		}
		if c.Redis.Enabled() && c.Redis.LockTTLSecs > 0 && c.Redis.LockTTLSecs < c.Salesforce.TimeoutSecs {
			errs = append(errs, "redis.lock_ttl_secs must not be shorter than salesforce.timeout_secs")
		}
	}

	if mode == "crm" && !c.Salesforce.IsEnabled() {
		errs = append(errs, "salesforce.enabled must be true")
	}
	if mode != "store" && c.Salesforce.IsEnabled() {
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required")
		}
		if c.Salesforce.PrivateKey == "" && c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.private_key or salesforce.key_path is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
