package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string `yaml:"env" env:"ENV" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort   int    `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost   string `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	HTTP      `yaml:"http"`
	Storage   `yaml:"storage"`
	Auth      `yaml:"auth"`
	RateLimit `yaml:"rate_limit"`
	CORS      `yaml:"cors"`
	Inventory `yaml:"inventory"`
}

type HTTP struct {
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

type Storage struct {
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres" env-description:"postgres or sqlite"`
	SQLitePath   string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"sweetshop.db"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	Postgres     `yaml:"postgres"`
}

type Postgres struct {
	Host    string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port    string `yaml:"port" env:"POSTGRES_PORT" env-default:"5433"`
	User    string `yaml:"user" env:"POSTGRES_USER" env-default:"test"`
	Pass    string `yaml:"pass" env:"POSTGRES_PASSWORD" env-default:"12345"`
	Db      string `yaml:"db" env:"POSTGRES_DB" env-default:"test_db"`
	SSLMode string `yaml:"ssl_mode" env:"POSTGRES_SSL_MODE" env-default:"disable"`
}

type Auth struct {
	JWTSecret  string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL   time.Duration `yaml:"token_ttl" env:"JWT_EXPIRES_IN" env-default:"24h"`
	BcryptCost int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

type RateLimit struct {
	Enabled    bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	RedisAddr  string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPass  string        `yaml:"redis_pass" env:"REDIS_PASSWORD"`
	RedisDB    int           `yaml:"redis_db" env:"REDIS_DB" env-default:"0"`
	AuthWindow time.Duration `yaml:"auth_window" env:"RATE_LIMIT_AUTH_WINDOW" env-default:"15m"`
	AuthMax    int           `yaml:"auth_max" env:"RATE_LIMIT_AUTH_MAX" env-default:"5"`
	APIWindow  time.Duration `yaml:"api_window" env:"RATE_LIMIT_API_WINDOW" env-default:"1m"`
	APIMax     int           `yaml:"api_max" env:"RATE_LIMIT_API_MAX" env-default:"100"`
}

type CORS struct {
	AllowedOrigin string `yaml:"allowed_origin" env:"FRONTEND_URL" env-default:"http://localhost:3000"`
}

type Inventory struct {
	ReportSchedule    string `yaml:"report_schedule" env:"INVENTORY_REPORT_SCHEDULE" env-default:"@every 5m"`
	LowStockThreshold int    `yaml:"low_stock_threshold" env:"INVENTORY_LOW_STOCK_THRESHOLD" env-default:"10"`
}

func (p Postgres) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User,
		p.Pass,
		p.Host,
		p.Port,
		p.Db,
		p.SSLMode,
	)
}

func MustLoad() *Config {
	// .env is optional; variables already in the environment win
	_ = godotenv.Load()

	path := fetchConfigPath()

	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg, err = LoadEnv()
	} else {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			panic("config file does not exist: " + path)
		}
		cfg, err = Load(path)
	}
	if err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return cfg
}

// Load reads a YAML config file, lets environment variables override it and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, cfg.Validate()
}

// LoadEnv builds the config from environment variables and defaults only.
func LoadEnv() (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.RateLimit.AuthMax <= 0 || c.RateLimit.APIMax <= 0 {
		return errors.New("rate limit maximums must be positive")
	}
	return nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
