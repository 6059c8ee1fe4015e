// Package config loads the walkability configuration from config.yaml, a
// .env file and WALK_* environment variables, and installs the global logger.
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sells-group/walkability/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Import    ImportConfig    `yaml:"import" mapstructure:"import"`
	DataGov   DataGovConfig   `yaml:"datagov" mapstructure:"datagov"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ImportConfig tunes extract acquisition and header matching.
type ImportConfig struct {
	TimeoutMins      int    `yaml:"timeout_mins" mapstructure:"timeout_mins"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoffSecs int    `yaml:"retry_backoff_secs" mapstructure:"retry_backoff_secs"`
	SpoolDir         string `yaml:"spool_dir" mapstructure:"spool_dir"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	// Aliases maps a logical column (identifier, walkability_score,
	// population, housing_units) to extra header names tried first.
	Aliases map[string][]string `yaml:"aliases" mapstructure:"aliases"`
}

// DataGovConfig configures the catalog search client.
type DataGovConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

// ReferenceConfig configures where county names come from beyond the
// embedded table.
type ReferenceConfig struct {
	CountyShapefile string `yaml:"county_shapefile" mapstructure:"county_shapefile"`
	TigerYear       int    `yaml:"tiger_year" mapstructure:"tiger_year"`
	TempDir         string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Timeout is the per-attempt bound for one extract download.
func (c ImportConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMins) * time.Minute
}

// RetryConfig is the linear download retry policy described by c.
func (c ImportConfig) RetryConfig() resilience.RetryConfig {
	cfg := resilience.DownloadRetryConfig()
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.RetryBackoffSecs > 0 {
		cfg.InitialBackoff = time.Duration(c.RetryBackoffSecs) * time.Second
	}
	return cfg
}

var validDrivers = map[string]bool{"postgres": true, "sqlite": true, "mysql": true}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if !validDrivers[c.Store.Driver] {
		return eris.Errorf("config: store.driver must be postgres, sqlite or mysql (got %q)", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.Errorf("config: store.database_url is required for %s", c.Store.Driver)
	}
	if c.Store.MinConns > c.Store.MaxConns && c.Store.MaxConns > 0 {
		return eris.New("config: store.min_conns exceeds store.max_conns")
	}
	if c.Import.TimeoutMins <= 0 {
		return eris.New("config: import.timeout_mins must be positive")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return eris.Wrap(err, "config: log.level")
	}
	return nil
}

// Redacted returns a copy safe to print: API keys and database passwords
// are masked.
func (c Config) Redacted() Config {
	out := c
	out.Store.DatabaseURL = redactDSN(c.Store.DatabaseURL)
	if out.DataGov.APIKey != "" {
		out.DataGov.APIKey = "xxxxx"
	}
	return out
}

func redactDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
	}
	// MySQL form: user:pass@tcp(host)/db
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	user, _, ok := strings.Cut(dsn[:at], ":")
	if !ok {
		return dsn
	}
	return user + ":xxxxx" + dsn[at:]
}

// Load reads configuration from configFile (or ./config.yaml when empty),
// a .env file in the working directory, and the environment.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("WALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "walkability.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("import.timeout_mins", 15)
	v.SetDefault("import.max_attempts", 4)
	v.SetDefault("import.retry_backoff_secs", 5)
	v.SetDefault("import.spool_dir", "")
	v.SetDefault("import.user_agent", "walkability/1.0")
	v.SetDefault("import.aliases", map[string][]string{})
	v.SetDefault("datagov.base_url", "https://catalog.data.gov")
	v.SetDefault("datagov.api_key", "DEMO_KEY")
	v.SetDefault("reference.county_shapefile", "")
	v.SetDefault("reference.tiger_year", 2024)
	v.SetDefault("reference.temp_dir", "/tmp/walkability")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, JSON
// lines are also written to a size-rotated file.
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

	var opts []zap.Option
	if cfg.File != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), sink, zapCfg.Level)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
