package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"brewpulse/internal/order"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Store      StoreConfig      `yaml:"store"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	Events     EventsConfig     `yaml:"events"`
	Menu       []MenuItem       `yaml:"menu"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"` // silent, error, warn, info
}

// StoreConfig tunes the order store.
type StoreConfig struct {
	WriteTimeoutSeconds int           `yaml:"write_timeout_seconds"`
	WriteTimeout        time.Duration `yaml:"-"`
}

// AuthConfig holds the shared admin password and session signing settings.
type AuthConfig struct {
	AdminPassword   string        `yaml:"admin_password"`
	SigningKey      string        `yaml:"signing_key"`
	SessionTTLHours int           `yaml:"session_ttl_hours"`
	SessionTTL      time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Push is disabled when the keys are empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// SuggestionConfig configures the barista suggestion backend.
type SuggestionConfig struct {
	APIKey         string        `yaml:"api_key"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
}

// EventsConfig configures publishing of order lifecycle events to Kafka.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MenuItem is one configured coffee.
type MenuItem struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
	Milky       bool   `yaml:"milky"`
	DefaultMilk string `yaml:"default_milk"`
	ComingSoon  bool   `yaml:"coming_soon"`
}

// OrderMenu converts the configured menu, falling back to the built-in one.
func (c *Config) OrderMenu() order.Menu {
	if len(c.Menu) == 0 {
		return order.DefaultMenu()
	}
	menu := make(order.Menu, 0, len(c.Menu))
	for _, item := range c.Menu {
		coffee := order.Coffee{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Image:       item.Image,
			Milk:        order.NonMilky{},
			ComingSoon:  item.ComingSoon,
		}
		if coffee.Name == "" {
			coffee.Name = item.ID
		}
		if item.Milky {
			coffee.Milk = order.Milky{Default: order.MilkLevel(item.DefaultMilk)}
		}
		menu = append(menu, coffee)
	}
	return menu
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BREWPULSE_ADMIN_PASSWORD"); v != "" {
		cfg.Auth.AdminPassword = v
	}
	if v := os.Getenv("BREWPULSE_SIGNING_KEY"); v != "" {
		cfg.Auth.SigningKey = v
	}
	if v := os.Getenv("BREWPULSE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("API_KEY"); v != "" && cfg.Suggestion.APIKey == "" {
		cfg.Suggestion.APIKey = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "brewpulse.db"
	}

	if cfg.Store.WriteTimeoutSeconds <= 0 {
		cfg.Store.WriteTimeoutSeconds = 5
	}
	cfg.Store.WriteTimeout = time.Duration(cfg.Store.WriteTimeoutSeconds) * time.Second

	if cfg.Auth.SessionTTLHours <= 0 {
		cfg.Auth.SessionTTLHours = 12
	}
	cfg.Auth.SessionTTL = time.Duration(cfg.Auth.SessionTTLHours) * time.Hour
	if cfg.Auth.AdminPassword == "" {
		log.Printf("auth.admin_password is not set; admin sign-in is disabled")
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Suggestion.TimeoutSeconds <= 0 {
		cfg.Suggestion.TimeoutSeconds = 10
	}
	cfg.Suggestion.Timeout = time.Duration(cfg.Suggestion.TimeoutSeconds) * time.Second

	if cfg.Events.Topic == "" {
		cfg.Events.Topic = "brewpulse.orders"
	}
}
