package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Cookies CookieConfig  `yaml:"cookies"`
	Tokens  TokenConfig   `yaml:"tokens"`
	OIDC    OIDCConfig    `yaml:"oidc"`
	Web     WebConfig     `yaml:"web"`
	CORS    CORSConfig    `yaml:"cors"`
	SignIn  SignInConfig  `yaml:"signin"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GatewayConfig points at the API gateway that owns all business logic.
type GatewayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type CookieConfig struct {
	Domain string `yaml:"domain"`
	// ForceSecure marks auth cookies Secure even when the request did not
	// arrive over TLS (e.g. behind a terminating proxy that strips
	// X-Forwarded-Proto).
	ForceSecure bool `yaml:"force_secure"`
}

// TokenConfig controls the durable fallback token store that backs up the
// auth cookies.
type TokenConfig struct {
	Fallback   string `yaml:"fallback"` // "memory" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
	SealSecret string `yaml:"seal_secret"` // empty disables sealing at rest
}

// OIDCConfig enables direct code exchange against an identity provider
// instead of delegating the exchange to the gateway.
type OIDCConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type WebConfig struct {
	// Dir is the SPA build directory. Empty serves the embedded shell.
	Dir string `yaml:"dir"`
	// Origin is the externally visible origin of this server, used to build
	// redirect_to URLs handed to the gateway (e.g. "https://app.example.com").
	Origin string `yaml:"origin"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"` // default: [] (same-origin only when empty; ["*"] for dev)
}

// SignInConfig bounds credential-guessing traffic against the sign-in and
// contact endpoints.
type SignInConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Window    time.Duration `yaml:"window"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Tokens.Fallback != "memory" && cfg.Tokens.Fallback != "sqlite" {
		return nil, fmt.Errorf("tokens.fallback must be \"memory\" or \"sqlite\", got %q", cfg.Tokens.Fallback)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 30 * time.Second,
		},
		Tokens: TokenConfig{
			Fallback:   "memory",
			SQLitePath: "wayfinder-tokens.db",
		},
		Web: WebConfig{
			Origin: "http://localhost:3000",
		},
		SignIn: SignInConfig{
			RateLimit: 20,
			Window:    time.Minute,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAYFINDER_GATEWAY_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("WAYFINDER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WAYFINDER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WAYFINDER_ORIGIN"); v != "" {
		cfg.Web.Origin = v
	}
	if v := os.Getenv("WAYFINDER_SEAL_SECRET"); v != "" {
		cfg.Tokens.SealSecret = v
	}
	if v := os.Getenv("WAYFINDER_SQLITE_PATH"); v != "" {
		cfg.Tokens.SQLitePath = v
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
