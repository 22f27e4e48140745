package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	TLS        TLSConfig     `mapstructure:"tls"`
	Signal     SignalConfig  `mapstructure:"signal"`
	Backend    BackendConfig `mapstructure:"backend"`
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// Enabled reports whether both halves of the key pair are configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

type SignalConfig struct {
	ReadLimit   int64         `mapstructure:"read_limit"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	WriteWait   time.Duration `mapstructure:"write_wait"`
	SendBuffer  int           `mapstructure:"send_buffer"`
	StartBurst  int           `mapstructure:"start_burst"`
	StartWindow time.Duration `mapstructure:"start_window"`
}

type BackendConfig struct {
	Kind         string        `mapstructure:"kind"`
	KurentoWSURL string        `mapstructure:"kurento_ws_url"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	Keepalive    time.Duration `mapstructure:"keepalive"`
	DialAttempts int           `mapstructure:"dial_attempts"`
	DialWait     time.Duration `mapstructure:"dial_wait"`
	STUNURLs     []string      `mapstructure:"stun_urls"`
}

const (
	BackendKurento  = "kurento"
	BackendLoopback = "loopback"
)

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "debug")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8443)
	v.SetDefault("static_path", "./static")
	v.SetDefault("secret", "mosaic-dev-secret")
	v.SetDefault("log_level", "info")
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("signal.read_limit", 65536)
	v.SetDefault("signal.ping_period", "30s")
	v.SetDefault("signal.write_wait", "5s")
	v.SetDefault("signal.send_buffer", 64)
	v.SetDefault("signal.start_burst", 5)
	v.SetDefault("signal.start_window", "1m")
	v.SetDefault("backend.kind", BackendKurento)
	v.SetDefault("backend.kurento_ws_url", "ws://localhost:8888/kurento")
	v.SetDefault("backend.call_timeout", "0s")
	v.SetDefault("backend.keepalive", "20s")
	v.SetDefault("backend.dial_attempts", 3)
	v.SetDefault("backend.dial_wait", "2s")
	v.SetDefault("backend.stun_urls", []string{"stun:stun.l.google.com:19302"})

	// Environment variables of existing deployments.
	for key, envVar := range map[string]string{
		"mode":                   "GIN_MODE",
		"host":                   "HOST",
		"port":                   "PORT",
		"static_path":            "CLIENT_DIR",
		"secret":                 "SESSION_SECRET",
		"log_level":              "LOG_LEVEL",
		"tls.cert_file":          "TLS_CERT_FILE",
		"tls.key_file":           "TLS_KEY_FILE",
		"backend.kind":           "MEDIA_BACKEND",
		"backend.kurento_ws_url": "KURENTO_WS_URL",
	} {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Backend.Kind != BackendKurento && cfg.Backend.Kind != BackendLoopback {
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend.Kind)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Str("addr", cfg.Addr()).
		Str("static", cfg.StaticPath).
		Str("backend", cfg.Backend.Kind).
		Bool("tls", cfg.TLS.Enabled()).
		Msg("config ready")
	return &cfg, nil
}
