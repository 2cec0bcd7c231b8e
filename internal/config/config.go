package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Veraticus/edc-mapper/internal/certs"
	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/spf13/viper"
)

// Defaults used when neither the config file nor the environment set a value.
const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeout        = 30 * time.Second
	DefaultPollInterval   = 30 * time.Second
	DefaultDatabasePath   = "$HOME/.local/share/edcmap/edcmap.db"
	DefaultExportFilename = "updated_odm.xml"
)

// Config is the resolved runtime configuration.
type Config struct {
	BaseURL        string
	DatabasePath   string
	ExportFilename string
	Logging        common.LogOptions
	TLS            certs.Options
	Timeout        time.Duration
	PollInterval   time.Duration
}

// SetDefaults registers default values with viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", DefaultTimeout)
	v.SetDefault("poller.interval", DefaultPollInterval)
	v.SetDefault("database.path", defaultDatabasePath())
	v.SetDefault("export.filename", DefaultExportFilename)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
}

// Load reads the configuration out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		BaseURL:        v.GetString("api.base_url"),
		Timeout:        v.GetDuration("api.timeout"),
		PollInterval:   v.GetDuration("poller.interval"),
		DatabasePath:   ExpandPath(v.GetString("database.path")),
		ExportFilename: v.GetString("export.filename"),
		Logging: common.LogOptions{
			Level:      v.GetString("logging.level"),
			Format:     v.GetString("logging.format"),
			File:       ExpandPath(v.GetString("logging.file")),
			MaxSizeMB:  v.GetInt("logging.max_size_mb"),
			MaxBackups: v.GetInt("logging.max_backups"),
		},
		TLS: certs.Options{
			CAFile:   ExpandPath(v.GetString("api.ca_file")),
			CertFile: ExpandPath(v.GetString("api.client_cert")),
			KeyFile:  ExpandPath(v.GetString("api.client_key")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url", common.ErrMissingConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an http(s) URL", common.ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", common.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poller.interval must be positive", common.ErrInvalidConfig)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.ExportFilename == "" {
		return fmt.Errorf("%w: export.filename", common.ErrMissingConfig)
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("%w: api.client_cert and api.client_key must be set together", common.ErrInvalidConfig)
	}
	return nil
}
