package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Crawl   CrawlConfig   `yaml:"crawl" mapstructure:"crawl"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures the directory crawl.
type CrawlConfig struct {
	SeedFile      string `yaml:"seed_file" mapstructure:"seed_file"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	PacingMS      int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	DirectoryHost string `yaml:"directory_host" mapstructure:"directory_host"`
}

// GeocodeConfig configures the postcode geocoding provider.
type GeocodeConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// OutputConfig configures where snapshot and changes artifacts are written.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SMILEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	for key, val := range Defaults() {
		v.SetDefault(key, val)
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns the default configuration values keyed by viper path.
func Defaults() map[string]any {
	return map[string]any{
		"store.driver":         "sqlite",
		"store.database_url":   "smilemap.db",
		"crawl.seed_file":      "outputs/practice-index.json",
		"crawl.concurrency":    6,
		"crawl.timeout_secs":   15,
		"crawl.max_attempts":   3,
		"crawl.pacing_ms":      250,
		"crawl.user_agent":     "Mozilla/5.0 (compatible; SmileMapBot/1.0; +https://www.smilemap.co.uk)",
		"crawl.directory_host": "nhs.uk",
		"geocode.base_url":     "https://api.postcodes.io",
		"geocode.timeout_secs": 25,
		"geocode.rate_rps":     10.0,
		"output.dir":           "outputs",
		"server.port":          8080,
		"log.level":            "info",
		"log.format":           "json",
	}
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
