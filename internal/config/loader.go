package config

import (
	"fmt"
	"time"

	"github.com/rpattn/sheetimport/internal/db"
	"github.com/rpattn/sheetimport/internal/domain"

	"github.com/spf13/viper"
)

// ImporterConfig holds the executor tunables.
type ImporterConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
	MaxErrors  int           `mapstructure:"max_errors"`
	BatchPause time.Duration `mapstructure:"batch_pause"`
}

// ProgressConfig selects the job store backend and retention window.
type ProgressConfig struct {
	Backend   string        `mapstructure:"backend"`
	Retention time.Duration `mapstructure:"retention"`
}

// Config is the full process configuration.
type Config struct {
	Addr       string
	DB         db.Config
	Importer   ImporterConfig
	Progress   ProgressConfig
	Catalog    domain.FieldCatalog
	Exclusions [][2]string
	Weekdays   []string
}

// DefaultConfig returns the configuration used when no config.yaml is present.
func DefaultConfig() Config {
	return Config{
		Addr: ":8080",
		DB:   db.DefaultConfig(),
		Importer: ImporterConfig{
			BatchSize:  2000,
			JobTimeout: 2 * time.Hour,
			MaxErrors:  100,
			BatchPause: 50 * time.Millisecond,
		},
		Progress: ProgressConfig{
			Backend:   "memory",
			Retention: time.Hour,
		},
		Catalog: DefaultCatalog(),
	}
}

// DefaultCatalog is the delivery-import destination schema used when no
// catalog is configured.
func DefaultCatalog() domain.FieldCatalog {
	return domain.FieldCatalog{
		{Key: "delivery_date", Label: "Delivery date", Required: true, Type: domain.FieldTypeDate},
		{Key: "customer", Label: "Customer", Required: true, Type: domain.FieldTypeString},
		{Key: "quantity", Label: "Quantity", Type: domain.FieldTypeInteger},
		{Key: "amount", Label: "Amount", Type: domain.FieldTypeDecimal},
		{Key: "notes", Label: "Notes", Type: domain.FieldTypeString},
		{Key: "month", Label: "Month", Type: domain.FieldTypeInteger, Computed: true},
		{Key: "week", Label: "Week", Type: domain.FieldTypeInteger, Computed: true},
		{Key: "quarter", Label: "Quarter", Type: domain.FieldTypeInteger, Computed: true},
		{Key: "weekday", Label: "Weekday", Type: domain.FieldTypeString, Computed: true},
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv() // allow environment overrides
	v.SetEnvPrefix("IMPORT")

	v.BindEnv("server.addr")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("progress.backend")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.Addr = v.GetString("server.addr")
	}
	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}

	if v.IsSet("importer.batch_size") {
		cfg.Importer.BatchSize = v.GetInt("importer.batch_size")
	}
	if v.IsSet("importer.job_timeout") {
		cfg.Importer.JobTimeout = v.GetDuration("importer.job_timeout")
	}
	if v.IsSet("importer.max_errors") {
		cfg.Importer.MaxErrors = v.GetInt("importer.max_errors")
	}
	if v.IsSet("importer.batch_pause") {
		cfg.Importer.BatchPause = v.GetDuration("importer.batch_pause")
	}

	if v.IsSet("progress.backend") {
		cfg.Progress.Backend = v.GetString("progress.backend")
	}
	if v.IsSet("progress.retention") {
		cfg.Progress.Retention = v.GetDuration("progress.retention")
	}

	if v.IsSet("catalog.fields") {
		var catalog domain.FieldCatalog
		if err := v.UnmarshalKey("catalog.fields", &catalog); err != nil {
			return cfg, fmt.Errorf("parse catalog.fields: %w", err)
		}
		if normalized := catalog.Normalize(); len(normalized) > 0 {
			cfg.Catalog = normalized
		}
	}

	if v.IsSet("mapping.exclusions") {
		var pairs [][]string
		if err := v.UnmarshalKey("mapping.exclusions", &pairs); err != nil {
			return cfg, fmt.Errorf("parse mapping.exclusions: %w", err)
		}
		for _, pair := range pairs {
			if len(pair) == 2 {
				cfg.Exclusions = append(cfg.Exclusions, [2]string{pair[0], pair[1]})
			}
		}
	}

	if v.IsSet("derive.weekdays") {
		cfg.Weekdays = v.GetStringSlice("derive.weekdays")
	}

	return cfg, nil
}
