package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultConfigFile is read when no explicit path is given and the file exists.
const DefaultConfigFile = "config.yaml"

// Printer protocol variants.
const (
	ProtocolCloud = "cloud"
	ProtocolLAN   = "lan"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Printer PrinterConfig `yaml:"printer"`
	Storage StorageConfig `yaml:"storage"`
	Admin   AdminConfig   `yaml:"admin"`
	Log     LogConfig     `yaml:"log"`

	// Timing is not read from YAML; it comes from the baseline plus
	// STOREFRONT_TIMING_* overrides.
	Timing *TimingConfig `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	DistDir      string        `yaml:"distDir"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`

	// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For header is believed. Empty means the peer address
	// is always the client.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// ProxyPrefixes parses TrustedProxies. A bare address is a single-host prefix.
func (c ServerConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// PrinterConfig holds the telemetry broker connection parameters.
type PrinterConfig struct {
	Protocol           string `yaml:"protocol"`
	Broker             string `yaml:"broker"`
	Serial             string `yaml:"serial"`
	UserID             string `yaml:"userId"`
	AccessToken        string `yaml:"accessToken"`
	AccessCode         string `yaml:"accessCode"`
	RequestFullState   bool   `yaml:"requestFullState"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path     string `yaml:"path"`
	AuditDir string `yaml:"auditDir"`
}

// AdminConfig holds admin login settings.
type AdminConfig struct {
	Password    string        `yaml:"password"`
	TokenSecret string        `yaml:"tokenSecret"`
	TokenTTL    time.Duration `yaml:"tokenTtl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Load merges defaults + optional YAML file + environment overrides.
// An empty path falls back to DefaultConfigFile when it exists; an explicit
// path that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyTimingEnvOverrides(cfg.Timing)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":3000",
			DistDir:      "dist",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
			MaxBodyBytes: 50 << 20,
		},
		Printer: PrinterConfig{
			Protocol:           ProtocolCloud,
			RequestFullState:   true,
			InsecureSkipVerify: true,
		},
		Storage: StorageConfig{
			Path:     "data/storefront.db",
			AuditDir: "logs",
		},
		Admin: AdminConfig{
			TokenTTL: 12 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Timing: LoadTimingBaseline(),
	}
}

// loadFromFile loads configuration from a YAML file over cfg.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies server, printer, storage and admin variables.
// The printer variable names match the ones the storefront has always used.
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = GetEnvVar("STOREFRONT_ADDR", cfg.Server.Addr)
	cfg.Server.DistDir = GetEnvVar("STOREFRONT_DIST_DIR", cfg.Server.DistDir)
	if proxies := os.Getenv("STOREFRONT_TRUSTED_PROXIES"); proxies != "" {
		cfg.Server.TrustedProxies = strings.Split(proxies, ",")
	}

	cfg.Printer.Protocol = strings.ToLower(GetEnvVar("PRINTER_PROTOCOL", cfg.Printer.Protocol))
	cfg.Printer.Broker = GetEnvVar("PRINTER_BROKER", cfg.Printer.Broker)
	cfg.Printer.Serial = GetEnvVar("PRINTER_SERIAL", cfg.Printer.Serial)
	cfg.Printer.UserID = GetEnvVar("BAMBU_USER_ID", cfg.Printer.UserID)
	cfg.Printer.AccessToken = GetEnvVar("BAMBU_ACCESS_TOKEN", cfg.Printer.AccessToken)
	cfg.Printer.AccessCode = GetEnvVar("PRINTER_ACCESS_CODE", cfg.Printer.AccessCode)
	cfg.Printer.RequestFullState = GetEnvBool("PRINTER_REQUEST_FULL_STATE", cfg.Printer.RequestFullState)
	cfg.Printer.InsecureSkipVerify = GetEnvBool("PRINTER_INSECURE_SKIP_VERIFY", cfg.Printer.InsecureSkipVerify)

	cfg.Storage.Path = GetEnvVar("STOREFRONT_DB_PATH", cfg.Storage.Path)
	cfg.Storage.AuditDir = GetEnvVar("STOREFRONT_AUDIT_DIR", cfg.Storage.AuditDir)

	cfg.Admin.Password = GetEnvVar("ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.Admin.TokenSecret = GetEnvVar("ADMIN_TOKEN_SECRET", cfg.Admin.TokenSecret)
	cfg.Admin.TokenTTL = GetEnvDuration("ADMIN_TOKEN_TTL", cfg.Admin.TokenTTL)

	cfg.Log.Level = GetEnvVar("STOREFRONT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = GetEnvVar("STOREFRONT_LOG_FILE", cfg.Log.File)
}

// applyTimingEnvOverrides applies STOREFRONT_TIMING_* environment variables.
func applyTimingEnvOverrides(t *TimingConfig) {
	t.FreshnessWindow = GetEnvDuration("STOREFRONT_TIMING_FRESHNESS_WINDOW", t.FreshnessWindow)

	t.ConnectTimeout = GetEnvDuration("STOREFRONT_TIMING_CONNECT_TIMEOUT", t.ConnectTimeout)
	t.ReconnectInitial = GetEnvDuration("STOREFRONT_TIMING_RECONNECT_INITIAL", t.ReconnectInitial)
	t.ReconnectBackoff = GetEnvFloat("STOREFRONT_TIMING_RECONNECT_BACKOFF", t.ReconnectBackoff)
	t.ReconnectMax = GetEnvDuration("STOREFRONT_TIMING_RECONNECT_MAX", t.ReconnectMax)
	t.ReconnectJitter = GetEnvFloat("STOREFRONT_TIMING_RECONNECT_JITTER", t.ReconnectJitter)

	t.MessageQueueSize = GetEnvInt("STOREFRONT_TIMING_MESSAGE_QUEUE_SIZE", t.MessageQueueSize)

	t.HeartbeatInterval = GetEnvDuration("STOREFRONT_TIMING_HEARTBEAT_INTERVAL", t.HeartbeatInterval)
	t.HeartbeatJitter = GetEnvDuration("STOREFRONT_TIMING_HEARTBEAT_JITTER", t.HeartbeatJitter)

	t.CommandTimeoutRequestState = GetEnvDuration("STOREFRONT_TIMING_COMMAND_REQUEST_STATE", t.CommandTimeoutRequestState)

	t.EventBufferSize = GetEnvInt("STOREFRONT_TIMING_EVENT_BUFFER_SIZE", t.EventBufferSize)
	t.EventBufferRetention = GetEnvDuration("STOREFRONT_TIMING_EVENT_BUFFER_RETENTION", t.EventBufferRetention)
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration returns the value of an environment variable as a duration with a default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvFloat returns the value of an environment variable as a float64 with a default.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// GetEnvBool returns the value of an environment variable as a bool with a default.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// PrinterEnabled reports whether the configured protocol has every credential
// it needs. An incomplete set is a valid configuration that disables the bridge.
func (c *Config) PrinterEnabled() bool {
	p := c.Printer
	if p.Serial == "" {
		return false
	}
	switch p.Protocol {
	case ProtocolCloud:
		return p.UserID != "" && p.AccessToken != ""
	case ProtocolLAN:
		return p.Broker != "" && p.AccessCode != ""
	default:
		return false
	}
}
