package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults for
// unset values and validates the result. Every bad variable is reported, not
// just the first.
func Load() (*Config, error) {
	cfg := &Config{}

	if errs := loadStruct(reflect.ValueOf(cfg).Elem()); len(errs) > 0 {
		return nil, fmt.Errorf("config load: %w", errors.Join(errs...))
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

// loadStruct populates tagged fields of v from the environment, recursing
// into the section structs.
//
//	env       primary variable name
//	envAlt    fallback variable name
//	default   value used when neither is set
//	required  "true" when there is no sensible default
//	unit      "bytes" accepts KB, MB and GB suffixes
func loadStruct(v reflect.Value) []error {
	var errs []error
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			errs = append(errs, loadStruct(fieldVal)...)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}

		value := lookupEnv(name, field.Tag.Get("envAlt"))
		if value == "" {
			if field.Tag.Get("required") == "true" {
				errs = append(errs, fmt.Errorf("required environment variable %s is not set", name))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value, field.Tag.Get("unit")); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s=%q: %w", name, value, err))
		}
	}

	return errs
}

func lookupEnv(name, alt string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	if alt == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(alt))
}

// setField parses value into field according to its kind.
func setField(field reflect.Value, value, unit string) error {
	switch {
	case field.Type() == durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case unit == "bytes":
		n, err := parseByteSize(value)
		if err != nil {
			return err
		}
		field.SetInt(n)

	case field.Kind() == reflect.Int || field.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case field.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case field.Kind() == reflect.String:
		field.SetString(value)

	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String:
		field.Set(reflect.ValueOf(splitList(value)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var byteUnits = []struct {
	suffix string
	factor int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseByteSize parses "10485760", "512KB" or "10MB". Units are binary.
func parseByteSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	factor := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, factor = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.factor
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", value)
	}
	return n * factor, nil
}

// problems collects validation failures so Validate can report all of them.
type problems []string

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate checks that the configuration is valid and describes every
// failure in the returned error.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Database.URL != "", "DATABASE_URL is required")
	p.check(c.Database.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(c.Database.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
	p.check(c.Database.MaxConns >= c.Database.MinConns,
		"DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.Database.MaxConns, c.Database.MinConns)

	p.check(c.Server.Port > 0 && c.Server.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", c.Server.Port)
	p.check(c.Server.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(c.Server.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")

	p.check(c.Import.MaxFileSize > 0, "IMPORT_MAX_FILE_SIZE must be positive")
	p.check(c.Import.MaxConcurrent > 0, "IMPORT_MAX_CONCURRENT must be positive")
	p.check(c.Import.MaxWaitTime > 0, "IMPORT_MAX_WAIT_TIME must be positive")
	p.check(c.Import.Timeout > 0, "IMPORT_TIMEOUT must be positive")
	_, tzErr := time.LoadLocation(c.Import.Timezone)
	p.check(tzErr == nil, "IMPORT_TIMEZONE (%q) is not a known time zone", c.Import.Timezone)

	p.check(!c.Security.RequireAPIKey || len(c.Security.APIKeys) > 0, "REQUIRE_API_KEY is true but API_KEYS is empty")

	if c.RateLimit.Enabled {
		p.check(c.RateLimit.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive")
		p.check(c.RateLimit.ImportsPerMinute > 0, "RATE_LIMIT_IMPORTS_PER_MINUTE must be positive")
	}

	p.check(c.Audit.RetentionDays > 0, "AUDIT_RETENTION_DAYS must be positive")
	p.check(c.Audit.PurgeInterval > 0, "AUDIT_PURGE_INTERVAL must be positive")

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.check(false, "LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		p.check(false, "LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format)
	}

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

// String returns the config for logging with the database URL and API keys masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Addr: %q}, ", c.Server.Addr())
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, Timezone: %q}, ",
		c.Import.MaxFileSize, c.Import.MaxConcurrent, c.Import.Timeout, c.Import.Timezone)
	fmt.Fprintf(&b, "Security: {TrustedProxies: %d, RequireAPIKey: %v, APIKeys: [MASKED]}, ",
		len(c.Security.TrustedProxies), c.Security.RequireAPIKey)
	fmt.Fprintf(&b, "RateLimit: {Enabled: %v, RequestsPerMinute: %d, ImportsPerMinute: %d}, ",
		c.RateLimit.Enabled, c.RateLimit.RequestsPerMinute, c.RateLimit.ImportsPerMinute)
	fmt.Fprintf(&b, "Audit: {Enabled: %v, RetentionDays: %d, PurgeInterval: %s}, ",
		c.Audit.Enabled, c.Audit.RetentionDays, c.Audit.PurgeInterval)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
