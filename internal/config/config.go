package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type AppConfig struct {
	Engine  Engine  `yaml:"engine"`
	Session Session `yaml:"session"`
	Store   Store   `yaml:"store"`
	Log     Log     `yaml:"log"`
	Web     Web     `yaml:"web"`

	// MessagesDir holds optional YAML overrides for the message catalog.
	MessagesDir string `yaml:"messages-dir" env:"MESSAGES_DIR"`
}

type Engine struct {
	BaseURL          string        `yaml:"base-url" env:"ENGINE_BASE_URL" env-default:"http://localhost:8000"`
	// RequestTimeout bounds health, roster and validation calls; move requests use MoveTimeout.
	RequestTimeout   time.Duration `yaml:"request-timeout" env:"ENGINE_REQUEST_TIMEOUT" env-default:"10s"`
	ReadinessTimeout time.Duration `yaml:"readiness-timeout" env:"ENGINE_READINESS_TIMEOUT" env-default:"10s"`
	MoveTimeout      time.Duration `yaml:"move-timeout" env:"ENGINE_MOVE_TIMEOUT" env-default:"30s"`
	MoveDelay        time.Duration `yaml:"move-delay" env:"ENGINE_MOVE_DELAY" env-default:"500ms"`
	MaxConnsPerHost  int           `yaml:"max-conns-per-host" env:"ENGINE_MAX_CONNS" env-default:"16"`
	Retry            int           `yaml:"retry" env:"ENGINE_RETRY" env-default:"3"`
	APIKey           string        `yaml:"api-key" env:"ENGINE_API_KEY"`
}

type Session struct {
	// ProgressionGating locks levels until the previous one is won.
	ProgressionGating bool          `yaml:"progression-gating" env:"PROGRESSION_GATING" env-default:"false"`
	NoticeTTL         time.Duration `yaml:"notice-ttl" env:"NOTICE_TTL" env-default:"2s"`
}

type Store struct {
	Backend     string `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
	RedisURL    string `yaml:"redis-url" env:"REDIS_URL"`
	RedisPrefix string `yaml:"redis-prefix" env:"REDIS_PREFIX" env-default:"checkmate:"`
	DatabaseURL string `yaml:"database-url" env:"DATABASE_URL"`
}

type Log struct {
	Level     string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format    string `yaml:"format" env:"LOG_FORMAT" env-default:"legacy"`
	ToConsole bool   `yaml:"to-console" env:"LOG_TO_CONSOLE" env-default:"true"`
	ToFile    bool   `yaml:"to-file" env:"LOG_TO_FILE" env-default:"false"`
	File      string `yaml:"file" env:"LOG_FILE" env-default:"logs/checkmate.log"`
	Caller    bool   `yaml:"caller" env:"LOG_CALLER" env-default:"false"`
}

type Web struct {
	Addr string `yaml:"addr" env:"WEB_ADDR" env-default:":8080"`
	// AllowedOrigins are passed to the websocket handshake; empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed-origins" env:"WEB_ALLOWED_ORIGINS" env-separator:","`
}

// Load reads CONFIG_PATH (if set) and environment variables, then validates.
func Load() (*AppConfig, error) {
	return LoadFrom(strings.TrimSpace(os.Getenv("CONFIG_PATH")))
}

// LoadFrom reads the YAML file at path (environment still wins) or env only when path is empty.
func LoadFrom(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	if c.Engine.BaseURL == "" {
		return errors.New("ENGINE_BASE_URL is required")
	}
	if c.Engine.ReadinessTimeout <= 0 {
		return errors.New("ENGINE_READINESS_TIMEOUT must be positive")
	}
	if c.Engine.MoveTimeout <= 0 {
		return errors.New("ENGINE_MOVE_TIMEOUT must be positive")
	}
	if c.Engine.MoveDelay < 0 {
		c.Engine.MoveDelay = 0
	}
	if c.Session.NoticeTTL <= 0 {
		c.Session.NoticeTTL = 2 * time.Second
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "", StoreMemory:
		c.Store.Backend = StoreMemory
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisURL) == "" {
			return errors.New("REDIS_URL is required for redis store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}
	return nil
}
