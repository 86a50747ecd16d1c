// Package config loads envman settings from defaults, an optional config
// file, ENVMAN_ environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"envman/internal/model"
)

// EnvPrefix is prepended to every environment override, e.g. ENVMAN_LOG_LEVEL.
const EnvPrefix = "ENVMAN"

// Config holds all application configuration.
type Config struct {
	DBPath              string       `mapstructure:"db_path" validate:"required"`
	LogLevel            string       `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat           string       `mapstructure:"log_format" validate:"required,oneof=text json"`
	LogFile             string       `mapstructure:"log_file"`
	ListenAddr          string       `mapstructure:"listen_addr" validate:"required"`
	Export              ExportConfig `mapstructure:"export"`
	SeedFromEnv         bool         `mapstructure:"seed_from_env"`
	ValidateConcurrency int          `mapstructure:"validate_concurrency" validate:"min=1,max=64"`
	SectionOrder        []string     `mapstructure:"section_order" validate:"min=1,dive,oneof=user system"`
	CheckUpdates        bool         `mapstructure:"check_updates"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// ExportConfig says where exports are written.
type ExportConfig struct {
	// Target is a directory or an s3://bucket/prefix URL.
	Target string   `mapstructure:"target" validate:"required"`
	S3     S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint" validate:"omitempty,url"`
	PathStyle bool   `mapstructure:"path_style"`
}

// Scopes returns SectionOrder as scopes.
func (c *Config) Scopes() []model.Scope {
	out := make([]model.Scope, 0, len(c.SectionOrder))
	for _, s := range c.SectionOrder {
		if sc, ok := model.ParseScope(s); ok {
			out = append(out, sc)
		}
	}
	return out
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":            "db_path",
	"log-level":     "log_level",
	"log-format":    "log_format",
	"log-file":      "log_file",
	"listen":        "listen_addr",
	"export-target": "export.target",
	"seed":          "seed_from_env",
	"check-updates": "check_updates",
}

// Dir returns the directory holding the config file, database and log.
func Dir() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "envman")
	}
	return filepath.Join(".", ".envman")
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("db_path", filepath.Join(dir, "envman.db"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", filepath.Join(dir, "envman.log"))
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("export.target", ".")
	v.SetDefault("export.s3.region", "")
	v.SetDefault("export.s3.endpoint", "")
	v.SetDefault("export.s3.path_style", false)
	v.SetDefault("seed_from_env", true)
	v.SetDefault("validate_concurrency", 8)
	v.SetDefault("section_order", []string{string(model.ScopeUser), string(model.ScopeSystem)})
	v.SetDefault("check_updates", true)
}

// Load builds the configuration. Precedence, lowest first: defaults, config
// file, environment, flags. A --config flag names the file explicitly;
// otherwise config.{yaml,json,toml} is looked up in Dir(). flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	dir := Dir()
	setDefaults(v, dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			explicit = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if explicit != "" {
		v.SetConfigFile(model.ExpandTilde(explicit))
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.DBPath = model.ExpandTilde(cfg.DBPath)
	cfg.LogFile = model.ExpandTilde(cfg.LogFile)
	for i, s := range cfg.SectionOrder {
		cfg.SectionOrder[i] = strings.ToLower(strings.TrimSpace(s))
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
