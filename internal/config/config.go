// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable application configuration. It is constructed once
// (by NewFromViper or NewDefault) and passed by value into every component
// constructor; nothing mutates it after construction.
type Config struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Jira     JiraConfig     `mapstructure:"jira" yaml:"jira"`
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Purge    PurgeConfig    `mapstructure:"purge" yaml:"purge"`
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
}

// ProviderConfig holds the identity-provider login target and credentials.
type ProviderConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Email    string `mapstructure:"email" yaml:"-"`
	Password string `mapstructure:"password" yaml:"-"`
}

// JiraConfig holds the target application and the stored query.
type JiraConfig struct {
	SearchURL      string `mapstructure:"search_url" yaml:"search_url"`
	Query          string `mapstructure:"jql_query" yaml:"jql_query"`
	ArtifactPrefix string `mapstructure:"artifact_prefix" yaml:"artifact_prefix"`
}

// PathsConfig holds the working directories.
type PathsConfig struct {
	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	LogsDir     string `mapstructure:"logs_dir" yaml:"logs_dir"`
}

// TimeoutConfig holds every wait budget in the workflow. The settle values
// are fixed delays standing in for readiness signals the UI does not
// provide; see the state machines for where each applies.
type TimeoutConfig struct {
	Action        time.Duration `mapstructure:"action" yaml:"action"`
	Input         time.Duration `mapstructure:"input" yaml:"input"`
	PageLoad      time.Duration `mapstructure:"page_load" yaml:"page_load"`
	TabSwitch     time.Duration `mapstructure:"tab_switch" yaml:"tab_switch"`
	MFAProbe      time.Duration `mapstructure:"mfa_probe" yaml:"mfa_probe"`
	MFAApproval   time.Duration `mapstructure:"mfa_approval" yaml:"mfa_approval"`
	ModeToggle    time.Duration `mapstructure:"mode_toggle" yaml:"mode_toggle"`
	ResultsSettle time.Duration `mapstructure:"results_settle" yaml:"results_settle"`
	MenuSettle    time.Duration `mapstructure:"menu_settle" yaml:"menu_settle"`
	DownloadGrace time.Duration `mapstructure:"download_grace" yaml:"download_grace"`
	CloseDelay    time.Duration `mapstructure:"close_delay" yaml:"close_delay"`
	ClickRetries  int           `mapstructure:"click_retries" yaml:"click_retries"`
}

// BrowserConfig holds settings for the Chrome instance.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// PurgeConfig controls best-effort removal of old artifacts after a run.
type PurgeConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Pattern    string `mapstructure:"pattern" yaml:"pattern"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// MissingConfigurationError reports every required field that is absent, so
// a misconfigured environment is diagnosed in one pass.
type MissingConfigurationError struct {
	Fields []string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Fields, ", "))
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Provider --
	v.SetDefault("provider.url", "https://console.jumpcloud.com/userconsole")

	// -- Jira --
	v.SetDefault("jira.artifact_prefix", "Jira_Report")

	// -- Paths --
	v.SetDefault("paths.download_dir", "downloads")
	v.SetDefault("paths.logs_dir", "logs")

	// -- Timeouts --
	v.SetDefault("timeouts.action", "20s")
	v.SetDefault("timeouts.input", "10s")
	v.SetDefault("timeouts.page_load", "30s")
	v.SetDefault("timeouts.tab_switch", "15s")
	v.SetDefault("timeouts.mfa_probe", "10s")
	v.SetDefault("timeouts.mfa_approval", "60s")
	v.SetDefault("timeouts.mode_toggle", "5s")
	v.SetDefault("timeouts.results_settle", "3s")
	v.SetDefault("timeouts.menu_settle", "1s")
	v.SetDefault("timeouts.download_grace", "15s")
	v.SetDefault("timeouts.close_delay", "20s")
	v.SetDefault("timeouts.click_retries", 3)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)

	// -- Purge --
	v.SetDefault("purge.enabled", true)
	v.SetDefault("purge.max_age_days", 7)
	v.SetDefault("purge.pattern", "*.csv")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "jirapull")
	v.SetDefault("logger.log_file", "logs/jirapull.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// NewDefault returns a configuration populated with defaults only. Tests use
// this as a fabrication base.
func NewDefault() Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with a defaults-only viper.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return cfg
}

// NewFromViper builds and validates a configuration from a prepared viper
// instance (defaults, config file, env already applied).
func NewFromViper(v *viper.Viper) (Config, error) {
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindEnv wires the credential and query fields to their historical
// environment variable names, alongside the JIRAPULL_* automatic bindings.
func bindEnv(v *viper.Viper) {
	v.BindEnv("provider.email", "JC_USERNAME")
	v.BindEnv("provider.password", "JC_PASSWORD")
	v.BindEnv("jira.search_url", "JIRA_SEARCH_URL")
	v.BindEnv("jira.jql_query", "JQL_QUERY")
}

// Validate fails fast with a MissingConfigurationError enumerating every
// absent required field.
func (c Config) Validate() error {
	var missing []string
	if c.Provider.URL == "" {
		missing = append(missing, "provider.url")
	}
	if c.Provider.Email == "" {
		missing = append(missing, "provider.email (JC_USERNAME)")
	}
	if c.Provider.Password == "" {
		missing = append(missing, "provider.password (JC_PASSWORD)")
	}
	if c.Jira.SearchURL == "" {
		missing = append(missing, "jira.search_url (JIRA_SEARCH_URL)")
	}
	if c.Jira.Query == "" {
		missing = append(missing, "jira.jql_query (JQL_QUERY)")
	}
	if len(missing) > 0 {
		return &MissingConfigurationError{Fields: missing}
	}
	if c.Timeouts.ClickRetries < 1 {
		return fmt.Errorf("timeouts.click_retries must be a positive integer")
	}
	return nil
}
