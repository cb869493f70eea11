// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
//
// Every setting has an English variable name. Settings inherited from the
// original batch scripts also accept their Spanish name (CARPETA_SALIDA,
// SEPARADOR_SALIDA, ...) as an alternate, so existing .env files keep working.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Paths     PathsConfig
	Format    FormatConfig
	Transport TransportConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Watch     WatchConfig
	Logging   LoggingConfig
}

// PathsConfig holds the directories and definition files of a run.
type PathsConfig struct {
	// InputXLSX is the directory scanned for spreadsheets in xlsx mode
	InputXLSX string `env:"INPUT_XLSX_DIR" envAlt:"CARPETA_ENTRADA_XLSX" default:"entrada_xlsx"`

	// InputCSV is the directory scanned for delimited files in csv and text mode
	InputCSV string `env:"INPUT_CSV_DIR" envAlt:"CARPETA_ENTRADA_CSV" default:"entrada_csv"`

	// Output is where normalized files are written; emptied before each run
	Output string `env:"OUTPUT_DIR" envAlt:"CARPETA_SALIDA" default:"salida"`

	// SchemaFile is the JSON or YAML schema registry
	SchemaFile string `env:"SCHEMA_FILE" envAlt:"ARCHIVO_ESQUEMAS" default:"config/esquemas.json"`

	// ReplacementsFile is the ordered literal replacement map (optional)
	ReplacementsFile string `env:"REPLACEMENTS_FILE" envAlt:"ARCHIVO_REEMPLAZOS" default:"config/reemplazos.json"`
}

// FormatConfig holds input and output format settings.
type FormatConfig struct {
	// Mode is the input mode: xlsx, csv or text (default: xlsx)
	Mode string `env:"INPUT_MODE" envAlt:"TIPO_ENTRADA" default:"xlsx"`

	// InputSeparator splits fields of delimited input (default: ;)
	InputSeparator string `env:"INPUT_SEPARATOR" envAlt:"SEPARADOR_ENTRADA_CSV" default:";"`

	// OutputSeparator joins fields of the normalized output (default: |)
	OutputSeparator string `env:"OUTPUT_SEPARATOR" envAlt:"SEPARADOR_SALIDA" default:"|"`

	// DecimalSeparator replaces "." in non-integral numbers (default: .)
	DecimalSeparator string `env:"DECIMAL_SEPARATOR" envAlt:"SEPARADOR_DECIMAL" default:"."`

	// KeepInput keeps successfully processed inputs in place (default: true)
	KeepInput bool `env:"KEEP_INPUT" envAlt:"CONSERVAR_ENTRADA" default:"true"`

	// CleanOutput empties the output directory before a run (default: true)
	CleanOutput bool `env:"CLEAN_OUTPUT" default:"true"`
}

// TransportConfig holds downstream object storage settings.
// When disabled or unconfigured, uploads are logged and skipped.
type TransportConfig struct {
	// Skip disables uploads even when storage is configured (default: false)
	Skip bool `env:"SKIP_UPLOAD" envAlt:"SKIP_FTP" default:"false"`

	// Endpoint is the S3-compatible host:port, empty disables uploads
	Endpoint string `env:"S3_ENDPOINT"`

	// AccessKey and SecretKey are static credentials
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	// Bucket receives the output files (default: sheetflow)
	Bucket string `env:"S3_BUCKET" default:"sheetflow"`

	// Prefix is prepended to every object name, like a remote folder
	Prefix string `env:"S3_PREFIX" envAlt:"FTP_CARPETA_REMOTA"`

	// Region is passed to the client when set
	Region string `env:"S3_REGION"`

	// UseSSL selects https (default: true)
	UseSSL bool `env:"S3_USE_SSL" default:"true"`

	// Timeout bounds a single upload (default: 30s)
	Timeout time.Duration `env:"S3_TIMEOUT" default:"30s"`
}

// Enabled reports whether uploads should reach object storage.
func (c *TransportConfig) Enabled() bool {
	return !c.Skip && c.Endpoint != ""
}

// DatabaseConfig holds database connection settings.
// The database is optional; without a URL run history is kept in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 5m, a run can be slow)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are believed
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys guard POST /api/runs; empty leaves it open
	APIKeys []string `env:"API_KEYS"`

	// RateLimit is the number of requests per minute per client, 0 disables (default: 60)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"60"`

	// RunWait is how long a triggered run waits for one already in progress (default: 30s)
	RunWait time.Duration `env:"RUN_WAIT_TIMEOUT" default:"30s"`
}

// WatchConfig holds input directory watcher settings.
type WatchConfig struct {
	// Debounce is how long the input directory must be quiet before a run (default: 2s)
	Debounce time.Duration `env:"WATCH_DEBOUNCE" default:"2s"`

	// PollInterval forces a run on a fixed schedule, 0 disables (default: 0s)
	PollInterval time.Duration `env:"WATCH_POLL_INTERVAL" default:"0s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// Dir receives one log file per process start, empty logs to stdout only
	Dir string `env:"LOG_DIR" envAlt:"CARPETA_LOGS"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// InputDir returns the directory scanned in the configured mode.
func (c *Config) InputDir() string {
	if c.Format.Mode == "xlsx" {
		return c.Paths.InputXLSX
	}
	return c.Paths.InputCSV
}
