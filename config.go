package ollama

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultPort is the port an Ollama server listens on unless told otherwise.
const DefaultPort = 11434

// Config holds client settings read from the environment or a config file.
type Config struct {
	Host    string            `mapstructure:"host"`
	APIKey  string            `mapstructure:"api_key"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Host:    fmt.Sprintf("http://127.0.0.1:%d", DefaultPort),
		Timeout: DefaultTimeout,
	}
}

// LoadConfig reads OLLAMA_HOST, OLLAMA_API_KEY and OLLAMA_TIMEOUT, layered
// over the file at path when path is non-empty. A v may be passed to share
// flag bindings; nil creates a fresh one.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	def := DefaultConfig()
	v.SetDefault("host", def.Host)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("api_key", "")
	v.SetEnvPrefix("OLLAMA")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("timeout must not be negative")
	}
	cfg.Host = ParseHost(cfg.Host)
	return &cfg, nil
}

// ParseHost normalizes a host string such as "localhost:8080" into a base URL.
//
// A missing scheme means http with the default Ollama port. An explicit
// http or https scheme without a port gets 80 or 443. A path suffix is kept
// so servers behind a reverse proxy prefix can be reached.
func ParseHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return fmt.Sprintf("http://127.0.0.1:%d", DefaultPort)
	}

	scheme, rest, found := strings.Cut(host, "://")
	port := DefaultPort
	switch {
	case !found:
		scheme, rest = "http", host
	case scheme == "http":
		port = 80
	case scheme == "https":
		port = 443
	}

	hostport, path, _ := strings.Cut(rest, "/")
	path = strings.TrimRight(path, "/")

	name := hostport
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		name = h
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	} else {
		name = strings.Trim(hostport, "[]")
	}
	if name == "" {
		name = "127.0.0.1"
	}

	u := fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(name, strconv.Itoa(port)))
	if path != "" {
		u += "/" + path
	}
	return u
}
