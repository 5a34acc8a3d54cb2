package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"meshtastic-exporter/internal/model"
)

const (
	Version = "0.3.0"

	DefaultPath              = "./config.yaml"
	DefaultMetricsPort       = 9941
	DefaultMetricsHost       = "0.0.0.0"
	DefaultMeshtasticAddr    = "127.0.0.1:4403"
	DefaultNamespace         = "meshtastic"
	DefaultSerialBaud        = 115200
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultDeadmanTimeout    = 5 * time.Minute
	DefaultLoopPause         = 250 * time.Millisecond
	DefaultIdleTimeout       = 10 * time.Second
	DefaultQueueSendTimeout  = 5 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultLogLevel          = "info"
)

// namespacePattern is the Prometheus metric-name rule; the namespace becomes
// a metric name prefix.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

type Config struct {
	MetricsPort       uint16        `yaml:"metrics_port"`
	MetricsHost       string        `yaml:"metrics_host"`
	MeshtasticAddr    string        `yaml:"meshtastic_addr"`
	Namespace         string        `yaml:"namespace"`
	SerialPort        string        `yaml:"serial_port"`
	SerialBaud        int           `yaml:"serial_baud"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	DeadmanTimeout    time.Duration `yaml:"deadman_timeout"`
	LoopPause         time.Duration `yaml:"loop_pause"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	QueueSize         int           `yaml:"queue_size"`
	QueueSendTimeout  time.Duration `yaml:"queue_send_timeout"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	HealthAddr        string        `yaml:"health_addr"`
	LogLevel          string        `yaml:"log_level"`
	LogJSON           bool          `yaml:"log_json"`
}

// Path resolves the config file location: an explicit flag value wins over
// CONFIG_FILE_PATH, which wins over the default.
func Path(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return env("CONFIG_FILE_PATH", DefaultPath)
}

// Load reads the YAML file at path, fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	cfg.LogLevel = strings.ToLower(env("LOG_LEVEL", cfg.LogLevel))
	cfg.LogJSON = envBool("LOG_JSON", cfg.LogJSON)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = DefaultMetricsPort
	}
	if cfg.MetricsHost == "" {
		cfg.MetricsHost = DefaultMetricsHost
	}
	if cfg.MeshtasticAddr == "" {
		cfg.MeshtasticAddr = DefaultMeshtasticAddr
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.SerialBaud == 0 {
		cfg.SerialBaud = DefaultSerialBaud
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.DeadmanTimeout == 0 {
		cfg.DeadmanTimeout = DefaultDeadmanTimeout
	}
	if cfg.LoopPause == 0 {
		cfg.LoopPause = DefaultLoopPause
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = model.QueueSize
	}
	if cfg.QueueSendTimeout == 0 {
		cfg.QueueSendTimeout = DefaultQueueSendTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

func (c Config) Validate() error {
	if c.MetricsPort == 0 {
		return errors.New("metrics_port is required")
	}
	if c.SerialPort == "" {
		if _, err := c.tcpTarget(); err != nil {
			return err
		}
	}
	if !namespacePattern.MatchString(c.Namespace) {
		return fmt.Errorf("namespace %q must match %s", c.Namespace, namespacePattern)
	}
	if c.SerialBaud <= 0 {
		return errors.New("serial_baud must be > 0")
	}
	if c.HeartbeatInterval <= 0 || c.DeadmanTimeout <= 0 || c.LoopPause <= 0 {
		return errors.New("heartbeat_interval, deadman_timeout and loop_pause must be > 0")
	}
	if c.DeadmanTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("deadman_timeout %s must exceed heartbeat_interval %s", c.DeadmanTimeout, c.HeartbeatInterval)
	}
	if c.IdleTimeout < 0 {
		return errors.New("idle_timeout must be >= 0")
	}
	if c.QueueSize <= 0 {
		return errors.New("queue_size must be > 0")
	}
	if c.QueueSendTimeout <= 0 || c.DialTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("queue_send_timeout, dial_timeout and shutdown_timeout must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}

// Connection builds the device transport descriptor. A configured serial
// port takes precedence over the TCP address.
func (c Config) Connection() model.Connection {
	if c.SerialPort != "" {
		return model.SerialConnection(c.SerialPort, c.SerialBaud)
	}
	conn, err := c.tcpTarget()
	if err != nil {
		return model.Connection{Kind: model.ConnectionNone}
	}
	return conn
}

// MetricsListenAddr is the bind address of the metrics endpoint.
func (c Config) MetricsListenAddr() string {
	return net.JoinHostPort(c.MetricsHost, strconv.Itoa(int(c.MetricsPort)))
}

func (c Config) tcpTarget() (model.Connection, error) {
	host, portStr, err := net.SplitHostPort(c.MeshtasticAddr)
	if err != nil {
		return model.Connection{}, fmt.Errorf("meshtastic_addr %q: %w", c.MeshtasticAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return model.Connection{}, fmt.Errorf("meshtastic_addr %q: invalid port", c.MeshtasticAddr)
	}
	if host == "" {
		return model.Connection{}, fmt.Errorf("meshtastic_addr %q: missing host", c.MeshtasticAddr)
	}
	return model.TCPConnection(host, port), nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
