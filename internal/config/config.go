package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort        string        `yaml:"http_port"`
	BackendURL      string        `yaml:"backend_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	SessionDBPath   string        `yaml:"session_db_path"`
	RedisAddr       string        `yaml:"redis_addr"`
	CatalogTTL      time.Duration `yaml:"catalog_ttl"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	EventsTopic     string        `yaml:"events_topic"`
	StoreName       string        `yaml:"store_name"`
	TerminalID      string        `yaml:"terminal_id"`
	StoreTaxID      string        `yaml:"store_tax_id"`
	ReceiptDir      string        `yaml:"receipt_dir"`
	QRProvider      string        `yaml:"qr_provider"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

func Default() Config {
	terminal, err := os.Hostname()
	if err != nil || terminal == "" {
		terminal = "pos-1"
	}
	return Config{
		HTTPPort:        "8080",
		BackendURL:      "http://localhost:3000/api",
		RequestTimeout:  15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SessionDBPath:   "./dynatos-session.db",
		CatalogTTL:      5 * time.Minute,
		EventsTopic:     "pos-events",
		StoreName:       "DYNATOS",
		TerminalID:      terminal,
		QRProvider:      "QR",
		BreakerTimeout:  30 * time.Second,
	}
}

// Load builds the terminal configuration. Values come from the defaults, then
// the optional YAML file at path, then the environment (a .env file in the
// working directory is loaded first if present).
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env file: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.SessionDBPath = getEnv("SESSION_DB_PATH", cfg.SessionDBPath)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.EventsTopic = getEnv("EVENTS_TOPIC", cfg.EventsTopic)
	cfg.StoreName = getEnv("STORE_NAME", cfg.StoreName)
	cfg.TerminalID = getEnv("TERMINAL_ID", cfg.TerminalID)
	cfg.StoreTaxID = getEnv("STORE_TAX_ID", cfg.StoreTaxID)
	cfg.ReceiptDir = getEnv("RECEIPT_DIR", cfg.ReceiptDir)
	cfg.QRProvider = getEnv("QR_PROVIDER", cfg.QRProvider)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"CATALOG_TTL", &cfg.CatalogTTL},
		{"BREAKER_TIMEOUT", &cfg.BreakerTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, v, err)
		}
		*d.dst = parsed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPPort == "" {
		errs = append(errs, errors.New("http_port is required"))
	}
	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url must be an absolute URL, got %q", c.BackendURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be > 0"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be > 0"))
	}
	if c.SessionDBPath == "" {
		errs = append(errs, errors.New("session_db_path is required"))
	}
	if c.CatalogTTL <= 0 {
		errs = append(errs, errors.New("catalog_ttl must be > 0"))
	}
	if len(c.KafkaBrokers) > 0 && c.EventsTopic == "" {
		errs = append(errs, errors.New("events_topic is required when kafka_brokers is set"))
	}
	if c.StoreName == "" {
		errs = append(errs, errors.New("store_name is required"))
	}
	if c.TerminalID == "" {
		errs = append(errs, errors.New("terminal_id is required"))
	}
	if c.QRProvider == "" {
		errs = append(errs, errors.New("qr_provider is required"))
	}
	if c.BreakerTimeout <= 0 {
		errs = append(errs, errors.New("breaker_timeout must be > 0"))
	}
	return errors.Join(errs...)
}
