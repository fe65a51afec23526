// Package config holds the run configuration for validapi.
//
// Configuration is an explicit value: Default returns the built-in settings and
// Load layers a config file and VALIDAPI_* environment variables on top of
// them. Every consumer receives the Config it needs at construction time.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the full validapi configuration
type Config struct {
	Validation ValidationConfig
	Reporting  ReportingConfig
	HTTP       HTTPConfig
	Execution  ExecutionConfig
	Logging    LoggingConfig
}

// ValidationConfig controls how responses are judged
type ValidationConfig struct {
	StrictMode     bool
	Timeout        time.Duration
	MaxRetries     int
	NullableFields []string
}

// ReportingConfig controls report output
type ReportingConfig struct {
	OutputFormat          string
	OutputDir             string
	IncludeRequestDetails bool
	IncludeResponseBody   bool
	MaxResponseBodySize   int
}

// HTTPConfig controls the outbound HTTP client
type HTTPConfig struct {
	Headers           map[string]string
	FollowRedirects   bool
	VerifySSL         bool
	ConnectionTimeout time.Duration
	ReadTimeout       time.Duration
}

// ExecutionConfig controls run pacing
type ExecutionConfig struct {
	DelayBetweenRequests time.Duration
	StopOnFirstFailure   bool
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultNullableFields are response fields where a null value never fails a type check
var DefaultNullableFields = []string{"next", "previous", "url", "description", "results"}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Validation: ValidationConfig{
			StrictMode:     true,
			Timeout:        15 * time.Second,
			MaxRetries:     3,
			NullableFields: append([]string(nil), DefaultNullableFields...),
		},
		Reporting: ReportingConfig{
			OutputFormat:          "json",
			OutputDir:             "reports",
			IncludeRequestDetails: true,
			IncludeResponseBody:   true,
			MaxResponseBodySize:   1024,
		},
		HTTP: HTTPConfig{
			Headers: map[string]string{
				"Accept":     "application/json",
				"User-Agent": "validapi/1.0",
			},
			FollowRedirects:   true,
			VerifySSL:         true,
			ConnectionTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from path, or from validapi.{yaml,toml,json} in the
// working directory when path is empty. A missing default config file is not
// an error; the defaults are used instead.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("VALIDAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("validapi")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromViper builds a Config from the dotted keys held by v
func FromViper(v *viper.Viper) Config {
	headers := Default().HTTP.Headers
	if v.IsSet("http.headers") {
		headers = v.GetStringMapString("http.headers")
	}

	return Config{
		Validation: ValidationConfig{
			StrictMode:     v.GetBool("validation.strict_mode"),
			Timeout:        durationOf(v, "validation.timeout"),
			MaxRetries:     v.GetInt("validation.max_retries"),
			NullableFields: v.GetStringSlice("validation.nullable_fields"),
		},
		Reporting: ReportingConfig{
			OutputFormat:          v.GetString("reporting.output_format"),
			OutputDir:             v.GetString("reporting.output_dir"),
			IncludeRequestDetails: v.GetBool("reporting.include_request_details"),
			IncludeResponseBody:   v.GetBool("reporting.include_response_body"),
			MaxResponseBodySize:   v.GetInt("reporting.max_response_body_size"),
		},
		HTTP: HTTPConfig{
			Headers:           headers,
			FollowRedirects:   v.GetBool("http.follow_redirects"),
			VerifySSL:         v.GetBool("http.verify_ssl"),
			ConnectionTimeout: durationOf(v, "http.connection_timeout"),
			ReadTimeout:       durationOf(v, "http.read_timeout"),
		},
		Execution: ExecutionConfig{
			DelayBetweenRequests: durationOf(v, "execution.delay_between_requests"),
			StopOnFirstFailure:   v.GetBool("execution.stop_on_first_failure"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}
}

// Validate rejects settings the engine cannot run with
func (c Config) Validate() error {
	if c.Validation.MaxRetries < 0 {
		return fmt.Errorf("invalid config: validation.max_retries must not be negative, got %d", c.Validation.MaxRetries)
	}
	if c.Reporting.MaxResponseBodySize < 0 {
		return fmt.Errorf("invalid config: reporting.max_response_body_size must not be negative, got %d", c.Reporting.MaxResponseBodySize)
	}
	switch c.Reporting.OutputFormat {
	case "json", "csv", "html":
	default:
		return fmt.Errorf("invalid config: reporting.output_format must be 'json', 'csv' or 'html', got '%s'", c.Reporting.OutputFormat)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("validation.strict_mode", d.Validation.StrictMode)
	v.SetDefault("validation.timeout", d.Validation.Timeout)
	v.SetDefault("validation.max_retries", d.Validation.MaxRetries)
	v.SetDefault("validation.nullable_fields", d.Validation.NullableFields)

	v.SetDefault("reporting.output_format", d.Reporting.OutputFormat)
	v.SetDefault("reporting.output_dir", d.Reporting.OutputDir)
	v.SetDefault("reporting.include_request_details", d.Reporting.IncludeRequestDetails)
	v.SetDefault("reporting.include_response_body", d.Reporting.IncludeResponseBody)
	v.SetDefault("reporting.max_response_body_size", d.Reporting.MaxResponseBodySize)

	v.SetDefault("http.follow_redirects", d.HTTP.FollowRedirects)
	v.SetDefault("http.verify_ssl", d.HTTP.VerifySSL)
	v.SetDefault("http.connection_timeout", d.HTTP.ConnectionTimeout)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)

	v.SetDefault("execution.delay_between_requests", d.Execution.DelayBetweenRequests)
	v.SetDefault("execution.stop_on_first_failure", d.Execution.StopOnFirstFailure)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// durationOf reads a duration key. Bare numbers are seconds, strings may use
// Go duration syntax ("250ms", "2s").
func durationOf(v *viper.Viper, key string) time.Duration {
	switch raw := v.Get(key).(type) {
	case nil:
		return 0
	case time.Duration:
		return raw
	case string:
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		return time.Duration(cast.ToFloat64(raw) * float64(time.Second))
	default:
		return time.Duration(cast.ToFloat64(raw) * float64(time.Second))
	}
}
