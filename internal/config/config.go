// README: Config loader with env defaults for the remote session, sampling engine, sinks, and HTTP.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid config")

type RemoteConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	KeyFile        string
	KnownHostsFile string
	RxFile         string
	FixCommand     string
	DialTimeout    time.Duration
	// KeepaliveTimeout bounds the liveness check issued after a read times out.
	KeepaliveTimeout time.Duration
}

// Addr returns host:port for dialing.
func (r RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type SamplingConfig struct {
	Interval          time.Duration
	EntryTicks        int
	ExitTicks         int
	WindowTicks       int
	RateThreshold     float64
	PacketSizeBytes   int
	ReadTimeout       time.Duration
	ReconnectAttempts int
	ReconnectBackoff  time.Duration
	// StallTicks is how many consecutive ticks with every read timed out
	// count as a lost session.
	StallTicks int
	// SinkTimeout bounds each sink write within a tick.
	SinkTimeout time.Duration
}

type MailConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.User != "" && len(m.Recipients) > 0
}

type Config struct {
	Remote   RemoteConfig
	Sampling SamplingConfig
	Output   struct {
		Dir string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	HTTP struct {
		Addr  string
		Token string
	}
	Mail MailConfig
	Log  struct {
		Level string
		File  string
	}
}

func Load() (Config, error) {
	var cfg Config
	cfg.Remote.Host = envOrDefault("RSUMON_REMOTE_HOST", "192.168.52.79")
	cfg.Remote.Port = envOrDefaultInt("RSUMON_REMOTE_PORT", 22)
	cfg.Remote.User = envOrDefault("RSUMON_REMOTE_USER", "user")
	cfg.Remote.Password = os.Getenv("RSUMON_REMOTE_PASSWORD")
	cfg.Remote.KeyFile = os.Getenv("RSUMON_REMOTE_KEY_FILE")
	cfg.Remote.KnownHostsFile = os.Getenv("RSUMON_REMOTE_KNOWN_HOSTS")
	cfg.Remote.RxFile = envOrDefault("RSUMON_REMOTE_RX_FILE", "/mnt/rw/log/current/rx.pcap")
	cfg.Remote.FixCommand = envOrDefault("RSUMON_REMOTE_FIX_CMD", "cd /mnt/rw/example1609 && kinematics-sample-client -a -n1")
	cfg.Remote.DialTimeout = envOrDefaultDuration("RSUMON_REMOTE_DIAL_TIMEOUT", 10*time.Second)
	cfg.Remote.KeepaliveTimeout = envOrDefaultDuration("RSUMON_REMOTE_KEEPALIVE_TIMEOUT", 2*time.Second)

	cfg.Sampling.Interval = envOrDefaultDuration("RSUMON_INTERVAL", time.Second)
	cfg.Sampling.EntryTicks = envOrDefaultInt("RSUMON_ENTRY_TICKS", 3)
	cfg.Sampling.ExitTicks = envOrDefaultInt("RSUMON_EXIT_TICKS", 4)
	cfg.Sampling.WindowTicks = envOrDefaultInt("RSUMON_WINDOW_TICKS", 4)
	cfg.Sampling.RateThreshold = envOrDefaultFloat("RSUMON_RATE_THRESHOLD", 0)
	cfg.Sampling.PacketSizeBytes = envOrDefaultInt("RSUMON_PACKET_SIZE_BYTES", 98)
	cfg.Sampling.ReadTimeout = envOrDefaultDuration("RSUMON_READ_TIMEOUT", 4*time.Second)
	cfg.Sampling.ReconnectAttempts = envOrDefaultInt("RSUMON_RECONNECT_ATTEMPTS", 5)
	cfg.Sampling.ReconnectBackoff = envOrDefaultDuration("RSUMON_RECONNECT_BACKOFF", 500*time.Millisecond)
	cfg.Sampling.StallTicks = envOrDefaultInt("RSUMON_STALL_TICKS", 3)
	cfg.Sampling.SinkTimeout = envOrDefaultDuration("RSUMON_SINK_TIMEOUT", 2*time.Second)

	cfg.Output.Dir = envOrDefault("RSUMON_OUTPUT_DIR", "outputs")
	cfg.DB.DSN = os.Getenv("RSUMON_DB_DSN")
	cfg.Redis.Addr = os.Getenv("RSUMON_REDIS_ADDR")
	cfg.Kafka.Brokers = envList("RSUMON_KAFKA_BROKERS")
	cfg.Kafka.Topic = envOrDefault("RSUMON_KAFKA_TOPIC", "rsu.coverage.events")
	cfg.HTTP.Addr = envOrDefault("RSUMON_HTTP_ADDR", ":8090")
	cfg.HTTP.Token = os.Getenv("RSUMON_HTTP_TOKEN")

	cfg.Mail.Host = os.Getenv("RSUMON_SMTP_HOST")
	cfg.Mail.Port = envOrDefaultInt("RSUMON_SMTP_PORT", 587)
	cfg.Mail.User = os.Getenv("RSUMON_SMTP_USER")
	cfg.Mail.Password = os.Getenv("RSUMON_SMTP_PASSWORD")
	cfg.Mail.Recipients = envList("RSUMON_SMTP_TO")

	cfg.Log.Level = envOrDefault("RSUMON_LOG_LEVEL", "info")
	cfg.Log.File = os.Getenv("RSUMON_LOG_FILE")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the sampling engine cannot run with.
func (c Config) Validate() error {
	s := c.Sampling
	switch {
	case s.Interval <= 0:
		return fmt.Errorf("%w: sampling interval must be positive, got %s", ErrInvalidConfig, s.Interval)
	case s.EntryTicks < 1:
		return fmt.Errorf("%w: entry debounce must be at least 1 tick, got %d", ErrInvalidConfig, s.EntryTicks)
	case s.ExitTicks < 1:
		return fmt.Errorf("%w: exit debounce must be at least 1 tick, got %d", ErrInvalidConfig, s.ExitTicks)
	case s.WindowTicks < 1:
		return fmt.Errorf("%w: smoothing window must be at least 1 tick, got %d", ErrInvalidConfig, s.WindowTicks)
	case s.RateThreshold < 0:
		return fmt.Errorf("%w: rate threshold must not be negative, got %g", ErrInvalidConfig, s.RateThreshold)
	case s.PacketSizeBytes <= 0:
		return fmt.Errorf("%w: packet size must be positive, got %d", ErrInvalidConfig, s.PacketSizeBytes)
	case s.ReadTimeout <= 0:
		return fmt.Errorf("%w: read timeout must be positive, got %s", ErrInvalidConfig, s.ReadTimeout)
	case s.ReconnectAttempts < 1:
		return fmt.Errorf("%w: reconnect attempts must be at least 1, got %d", ErrInvalidConfig, s.ReconnectAttempts)
	case s.StallTicks < 1:
		return fmt.Errorf("%w: stall ticks must be at least 1, got %d", ErrInvalidConfig, s.StallTicks)
	case s.SinkTimeout <= 0:
		return fmt.Errorf("%w: sink timeout must be positive, got %s", ErrInvalidConfig, s.SinkTimeout)
	case c.Remote.Host == "":
		return fmt.Errorf("%w: remote host is required", ErrInvalidConfig)
	case c.Remote.RxFile == "":
		return fmt.Errorf("%w: remote rx file is required", ErrInvalidConfig)
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
