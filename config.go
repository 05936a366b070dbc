package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chxlky/roadmap-tracker/integrations"
	"github.com/chxlky/roadmap-tracker/internal/importer"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Auth struct {
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"auth"`

	Jira struct {
		DefaultJQL    string            `mapstructure:"default_jql"`
		ProjectMap    map[string]string `mapstructure:"project_map"`
		MaxPages      int               `mapstructure:"max_pages"`
		WebhookSecret string            `mapstructure:"webhook_secret"`
	} `mapstructure:"jira"`

	Importer struct {
		KeyPrefixes []string          `mapstructure:"key_prefixes"`
		BaseDir     string            `mapstructure:"base_dir"`
		Sources     []importer.Source `mapstructure:"sources"`
	} `mapstructure:"importer"`

	Google struct {
		ServiceAccount map[string]any `mapstructure:"service_account"`
		Calendar       struct {
			CalendarID string `mapstructure:"calendar_id"`
		} `mapstructure:"calendar"`
	} `mapstructure:"google"`
}

// loadConfig reads the TOML config at path, or ./config.toml when path is
// empty. A missing default file is not an error; every key has a default
// and can be overridden with a ROADMAP_ environment variable, e.g.
// ROADMAP_SERVER_PORT.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "roadmap.db")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("jira.default_jql", integrations.DefaultJQL)
	v.SetDefault("jira.max_pages", integrations.DefaultMaxPages)
	v.SetDefault("jira.webhook_secret", "")
	v.SetDefault("importer.key_prefixes", importer.DefaultKeyPrefixes)
	v.SetDefault("importer.base_dir", "")
	v.SetDefault("google.calendar.calendar_id", "")

	v.SetEnvPrefix("ROADMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// viper lowercases map keys; Jira project prefixes are upper case.
	if len(cfg.Jira.ProjectMap) > 0 {
		projects := make(map[string]string, len(cfg.Jira.ProjectMap))
		for prefix, project := range cfg.Jira.ProjectMap {
			projects[strings.ToUpper(prefix)] = project
		}
		cfg.Jira.ProjectMap = projects
	}
	return &cfg, nil
}

// calendarEnabled reports whether the Google Calendar mirror is configured.
func (c *Config) calendarEnabled() bool {
	return len(c.Google.ServiceAccount) > 0 && c.Google.Calendar.CalendarID != ""
}
