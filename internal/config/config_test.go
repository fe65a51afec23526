package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Validation.StrictMode)
	assert.Equal(t, 15*time.Second, cfg.Validation.Timeout)
	assert.Equal(t, 3, cfg.Validation.MaxRetries)
	assert.Equal(t, DefaultNullableFields, cfg.Validation.NullableFields)
	assert.Equal(t, 1024, cfg.Reporting.MaxResponseBodySize)
	assert.True(t, cfg.HTTP.VerifySSL)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ConnectionTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ReadTimeout)
	assert.Zero(t, cfg.Execution.DelayBetweenRequests)
	assert.False(t, cfg.Execution.StopOnFirstFailure)
	require.NoError(t, cfg.Validate())
}

func TestFromViperWithNoConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v, Default())

	assert.Equal(t, Default(), FromViper(v))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validapi.yaml")
	content := `
validation:
  strict_mode: false
  timeout: 5
  max_retries: 1
  nullable_fields: []
http:
  headers:
    Authorization: Bearer abc
  verify_ssl: false
  read_timeout: 250ms
execution:
  delay_between_requests: 0.5
  stop_on_first_failure: true
reporting:
  output_format: csv
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Validation.StrictMode)
	assert.Equal(t, 5*time.Second, cfg.Validation.Timeout)
	assert.Equal(t, 1, cfg.Validation.MaxRetries)
	assert.Empty(t, cfg.Validation.NullableFields)
	assert.Equal(t, "Bearer abc", cfg.HTTP.Headers["authorization"])
	assert.False(t, cfg.HTTP.VerifySSL)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.ConnectionTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Execution.DelayBetweenRequests)
	assert.True(t, cfg.Execution.StopOnFirstFailure)
	assert.Equal(t, "csv", cfg.Reporting.OutputFormat)
	assert.True(t, cfg.Reporting.IncludeResponseBody)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Validation, cfg.Validation)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Validation.MaxRetries = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Reporting.OutputFormat = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsReportFormats(t *testing.T) {
	for _, format := range []string{"json", "csv", "html"} {
		cfg := Default()
		cfg.Reporting.OutputFormat = format
		assert.NoError(t, cfg.Validate(), format)
	}
}
