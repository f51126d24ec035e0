// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "https://console.jumpcloud.com/userconsole", cfg.Provider.URL)
	assert.Equal(t, "Jira_Report", cfg.Jira.ArtifactPrefix)
	assert.Equal(t, "downloads", cfg.Paths.DownloadDir)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.Action)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.MFAApproval)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.DownloadGrace)
	assert.Equal(t, 3, cfg.Timeouts.ClickRetries)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 7, cfg.Purge.MaxAgeDays)
	assert.Equal(t, "*.csv", cfg.Purge.Pattern)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "jirapull", cfg.Logger.ServiceName)
}

// -- Validation Logic Tests --

func validConfig() Config {
	cfg := NewDefault()
	cfg.Provider.Email = "dev@example.com"
	cfg.Provider.Password = "hunter2"
	cfg.Jira.SearchURL = "https://example.atlassian.net/issues/"
	cfg.Jira.Query = `project = OPS ORDER BY created DESC`
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateEnumeratesAllMissingFields(t *testing.T) {
	cfg := NewDefault() // no credentials, no query

	err := cfg.Validate()
	require.Error(t, err)

	var missing *MissingConfigurationError
	require.ErrorAs(t, err, &missing)
	assert.Len(t, missing.Fields, 4, "every absent field reported at once")
	assert.Contains(t, err.Error(), "JC_USERNAME")
	assert.Contains(t, err.Error(), "JC_PASSWORD")
	assert.Contains(t, err.Error(), "JIRA_SEARCH_URL")
	assert.Contains(t, err.Error(), "JQL_QUERY")
}

func TestValidateRejectsNonPositiveRetries(t *testing.T) {
	cfg := validConfig()
	cfg.Timeouts.ClickRetries = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "click_retries")
}

// -- Loading Tests --

func TestNewFromViperReadsYAML(t *testing.T) {
	yaml := []byte(`
provider:
  url: https://console.jumpcloud.com/userconsole
  email: dev@example.com
  password: hunter2
jira:
  search_url: https://example.atlassian.net/issues/
  jql_query: project = OPS
timeouts:
  mfa_approval: 90s
browser:
  headless: false
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(yaml)))

	cfg, err := NewFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "dev@example.com", cfg.Provider.Email)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.MFAApproval)
	assert.False(t, cfg.Browser.Headless)
	// Defaults fill the gaps the file does not mention.
	assert.Equal(t, "Jira_Report", cfg.Jira.ArtifactPrefix)
}

func TestNewFromViperEnvBindings(t *testing.T) {
	t.Setenv("JC_USERNAME", "env-user@example.com")
	t.Setenv("JC_PASSWORD", "env-secret")
	t.Setenv("JIRA_SEARCH_URL", "https://env.atlassian.net/issues/")
	t.Setenv("JQL_QUERY", "assignee = currentUser()")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "env-user@example.com", cfg.Provider.Email)
	assert.Equal(t, "env-secret", cfg.Provider.Password)
	assert.Equal(t, "https://env.atlassian.net/issues/", cfg.Jira.SearchURL)
	assert.Equal(t, "assignee = currentUser()", cfg.Jira.Query)
}

func TestNewFromViperRejectsIncomplete(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	_, err := NewFromViper(v)
	require.Error(t, err)

	var missing *MissingConfigurationError
	assert.ErrorAs(t, err, &missing)
}
