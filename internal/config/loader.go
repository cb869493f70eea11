package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Path validation
	if c.Paths.SchemaFile == "" {
		errs = append(errs, "SCHEMA_FILE is required")
	}
	if c.Paths.Output == "" {
		errs = append(errs, "OUTPUT_DIR is required")
	}

	// Format validation
	validModes := map[string]bool{"xlsx": true, "csv": true, "text": true}
	if !validModes[c.Format.Mode] {
		errs = append(errs, fmt.Sprintf("INPUT_MODE (%q) must be one of: xlsx, csv, text", c.Format.Mode))
	}
	if err := checkSeparator(c.Format.InputSeparator); err != nil {
		errs = append(errs, "INPUT_SEPARATOR "+err.Error())
	}
	if err := checkSeparator(c.Format.OutputSeparator); err != nil {
		errs = append(errs, "OUTPUT_SEPARATOR "+err.Error())
	}
	if c.Format.DecimalSeparator == "" {
		errs = append(errs, "DECIMAL_SEPARATOR must not be empty")
	} else if c.Format.DecimalSeparator == c.Format.OutputSeparator {
		errs = append(errs, fmt.Sprintf("DECIMAL_SEPARATOR (%q) must differ from OUTPUT_SEPARATOR", c.Format.DecimalSeparator))
	}
	if c.InputDir() == c.Paths.Output && c.Paths.Output != "" {
		errs = append(errs, "OUTPUT_DIR must differ from the input directory, it is emptied before each run")
	}

	// Transport validation
	if c.Transport.Enabled() {
		if c.Transport.AccessKey == "" || c.Transport.SecretKey == "" {
			errs = append(errs, "S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
		}
		if c.Transport.Bucket == "" {
			errs = append(errs, "S3_BUCKET is required when S3_ENDPOINT is set")
		}
		if c.Transport.Timeout <= 0 {
			errs = append(errs, "S3_TIMEOUT must be positive")
		}
	}

	// Database validation
	if c.Database.URL != "" {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT_PER_MINUTE must be non-negative")
	}
	if c.Server.RunWait < 0 {
		errs = append(errs, "RUN_WAIT_TIMEOUT must be non-negative")
	}

	// Watch validation
	if c.Watch.Debounce <= 0 {
		errs = append(errs, "WATCH_DEBOUNCE must be positive")
	}
	if c.Watch.PollInterval < 0 {
		errs = append(errs, "WATCH_POLL_INTERVAL must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// checkSeparator requires exactly one character that can delimit fields.
func checkSeparator(sep string) error {
	if utf8.RuneCountInString(sep) != 1 {
		return fmt.Errorf("(%q) must be exactly one character", sep)
	}
	switch sep {
	case `"`, "\r", "\n":
		return fmt.Errorf("(%q) cannot be a quote or line break", sep)
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and storage keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Paths: {InputXLSX: %q, InputCSV: %q, Output: %q, SchemaFile: %q, ReplacementsFile: %q}, ",
		c.Paths.InputXLSX, c.Paths.InputCSV, c.Paths.Output, c.Paths.SchemaFile, c.Paths.ReplacementsFile))
	b.WriteString(fmt.Sprintf("Format: {Mode: %q, InputSeparator: %q, OutputSeparator: %q, DecimalSeparator: %q, KeepInput: %v}, ",
		c.Format.Mode, c.Format.InputSeparator, c.Format.OutputSeparator, c.Format.DecimalSeparator, c.Format.KeepInput))
	b.WriteString(fmt.Sprintf("Transport: {Enabled: %v, Endpoint: %q, Bucket: %q, Keys: [MASKED]}, ",
		c.Transport.Enabled(), c.Transport.Endpoint, c.Transport.Bucket))
	if c.Database.URL != "" {
		b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
			c.Database.MaxConns, c.Database.MinConns))
	} else {
		b.WriteString("Database: {URL: none}, ")
	}
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d configured, RateLimit: %d}, ",
		c.Server.Host, c.Server.Port, len(c.Server.APIKeys), c.Server.RateLimit))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
