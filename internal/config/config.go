// Package config loads layered configuration: built-in defaults, an optional
// YAML file, a .env file and finally the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shineum/phishtriage/internal/redact"
	"github.com/shineum/phishtriage/internal/threat"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

const defaultMaxRecent = 20

// DotEnvFile is the .env file read by Load and LoadFromFile. A missing file
// is not an error.
var DotEnvFile = ".env"

// Sink names accepted in the sinks list.
const (
	SinkStdout  = "stdout"
	SinkSES     = "ses"
	SinkHistory = "history"
)

// History backends.
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the complete application configuration.
type Config struct {
	SMTP      SMTPConfig      `yaml:"smtp"`
	TLS       TLSConfig       `yaml:"tls"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sinks     []string        `yaml:"sinks"`
	SES       SESConfig       `yaml:"ses"`
	History   HistoryConfig   `yaml:"history"`
	Redaction RedactionConfig `yaml:"redaction"`
	Rules     RulesConfig     `yaml:"rules"`
}

// SMTPConfig holds the intake server configuration.
type SMTPConfig struct {
	Listen         string `yaml:"listen"`
	Hostname       string `yaml:"hostname"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxMessageSize int64  `yaml:"max_message_size"`
}

// TLSConfig holds TLS certificate file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SESConfig configures the analyst notification sink.
type SESConfig struct {
	Region          string   `yaml:"region"`
	AccessKeyID     string   `yaml:"access_key_id"`
	SecretAccessKey string   `yaml:"secret_access_key"`
	Sender          string   `yaml:"sender"`
	Recipients      []string `yaml:"recipients"`
	MinLevel        string   `yaml:"min_level"`
	AttachSanitized bool     `yaml:"attach_sanitized"`
}

// HistoryConfig selects and configures the recent-analysis store.
type HistoryConfig struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	PostgresURL   string `yaml:"postgres_url"`
	MaxRecent     int    `yaml:"max_recent"`
}

// RedactionConfig toggles the redaction categories.
type RedactionConfig struct {
	Emails         bool     `yaml:"emails"`
	Phones         bool     `yaml:"phones"`
	CreditCards    bool     `yaml:"credit_cards"`
	SSN            bool     `yaml:"ssn"`
	Names          bool     `yaml:"names"`
	CustomPatterns []string `yaml:"custom_patterns"`
}

// RulesConfig overrides the lists used by the threat rules. Empty lists keep
// the built-in defaults.
type RulesConfig struct {
	Shorteners          []string `yaml:"shorteners"`
	DangerousExtensions []string `yaml:"dangerous_extensions"`
	ArchiveExtensions   []string `yaml:"archive_extensions"`
	Brands              []string `yaml:"brands"`
}

// Load loads configuration from the environment (and .env) with sensible
// defaults. Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with .env and environment variables. Returns an error if
// the specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SESConfigured returns true if the SES sink has a sender and recipients.
func (c *Config) SESConfigured() bool {
	return c.SES.Sender != "" && len(c.SES.Recipients) > 0
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// HasSink reports whether name appears in the sinks list.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

// RedactionOptions converts the redaction section for the redactor.
func (c *Config) RedactionOptions() redact.Options {
	return redact.Options{
		Emails:         c.Redaction.Emails,
		Phones:         c.Redaction.Phones,
		CreditCards:    c.Redaction.CreditCards,
		SSN:            c.Redaction.SSN,
		Names:          c.Redaction.Names,
		CustomPatterns: append([]string(nil), c.Redaction.CustomPatterns...),
	}
}

// ThreatConfig builds the scorer configuration, applying any list overrides.
func (c *Config) ThreatConfig() *threat.Config {
	tc := threat.DefaultConfig()
	if l := normalizeList(c.Rules.Shorteners, ""); len(l) > 0 {
		tc.Shorteners = l
	}
	if l := normalizeList(c.Rules.DangerousExtensions, "."); len(l) > 0 {
		tc.DangerousExtensions = l
	}
	if l := normalizeList(c.Rules.ArchiveExtensions, "."); len(l) > 0 {
		tc.ArchiveExtensions = l
	}
	return tc.WithBrands(c.Rules.Brands)
}

// MinLevel returns the configured SES notification threshold.
func (c *Config) MinLevel() threat.Level {
	if l, ok := threat.ParseLevel(c.SES.MinLevel); ok {
		return l
	}
	return threat.LevelMedium
}

// Validate checks the sinks and history settings for consistency.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range c.Sinks {
		switch s {
		case SinkStdout, SinkSES, SinkHistory:
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
	}
	if c.HasSink(SinkSES) && !c.SESConfigured() {
		errs = append(errs, errors.New("ses sink requires ses.sender and ses.recipients"))
	}
	if _, ok := threat.ParseLevel(c.SES.MinLevel); !ok {
		errs = append(errs, fmt.Errorf("invalid ses.min_level %q", c.SES.MinLevel))
	}
	switch c.History.Backend {
	case "", BackendSQLite, BackendRedis, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q", c.History.Backend))
	}
	if c.HasSink(SinkHistory) && c.History.Backend == "" {
		errs = append(errs, errors.New("history sink requires history.backend"))
	}
	return errors.Join(errs...)
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Listen = ":2525"
	c.SMTP.Hostname = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.Logging.Level = "info"
	c.Logging.Format = "json"
	c.Sinks = []string{SinkStdout}
	c.SES.MinLevel = string(threat.LevelMedium)
	c.History.MaxRecent = defaultMaxRecent
	c.History.RedisAddr = "localhost:6379"

	opts := redact.DefaultOptions()
	c.Redaction = RedactionConfig{
		Emails:      opts.Emails,
		Phones:      opts.Phones,
		CreditCards: opts.CreditCards,
		SSN:         opts.SSN,
		Names:       opts.Names,
	}
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty variables override existing values; the process
// environment wins over the .env file.
func (c *Config) applyEnvVars() error {
	dotenv, err := godotenv.Read(DotEnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", DotEnvFile, err)
	}
	getenv := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := getenv("SMTP_LISTEN"); v != "" {
		c.SMTP.Listen = v
	}
	if v := getenv("SMTP_HOSTNAME"); v != "" {
		c.SMTP.Hostname = v
	}
	if v := getenv("SMTP_USERNAME"); v != "" {
		c.SMTP.Username = v
	}
	if v := getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
	if v := getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SMTP.MaxMessageSize = size
		}
	}

	if v := getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	if v := getenv("SINKS"); v != "" {
		c.Sinks = splitList(v)
	}

	if v := getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}
	if v := getenv("SES_RECIPIENTS"); v != "" {
		c.SES.Recipients = splitList(v)
	}
	if v := getenv("SES_MIN_LEVEL"); v != "" {
		c.SES.MinLevel = v
	}
	if v := getenv("SES_ATTACH_SANITIZED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SES.AttachSanitized = b
		}
	}

	if v := getenv("HISTORY_BACKEND"); v != "" {
		c.History.Backend = strings.ToLower(v)
	}
	if v := getenv("HISTORY_SQLITE_PATH"); v != "" {
		c.History.SQLitePath = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.History.RedisAddr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.History.RedisPassword = v
	}
	if v := getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.History.RedisDB = db
		}
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.History.PostgresURL = v
	}
	if v := getenv("HISTORY_MAX_RECENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.History.MaxRecent = n
		}
	}

	for key, field := range map[string]*bool{
		"REDACT_EMAILS":       &c.Redaction.Emails,
		"REDACT_PHONES":       &c.Redaction.Phones,
		"REDACT_CREDIT_CARDS": &c.Redaction.CreditCards,
		"REDACT_SSN":          &c.Redaction.SSN,
		"REDACT_NAMES":        &c.Redaction.Names,
	} {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*field = b
			}
		}
	}
	if v := getenv("REDACT_CUSTOM_PATTERNS"); v != "" {
		c.Redaction.CustomPatterns = splitLines(v)
	}

	return nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitLines splits a newline-separated value, dropping blank lines. Regex
// patterns may contain commas, so they cannot share splitList.
func splitLines(v string) []string {
	var out []string
	for _, line := range strings.Split(v, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func normalizeList(in []string, trimPrefix string) []string {
	var out []string
	for _, item := range in {
		item = strings.ToLower(strings.TrimSpace(item))
		if trimPrefix != "" {
			item = strings.TrimPrefix(item, trimPrefix)
		}
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
