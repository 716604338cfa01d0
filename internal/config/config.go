// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Окружения, в которых может быть запущен сервис.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Бэкенды хранения аватаров пользователей.
const (
	UploadsLocal = "local"
	UploadsS3    = "s3"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	GRPCAddress             string `yaml:"grpc_address" env:"GRPC_ADDRESS"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Auth                    `yaml:"auth"`
	Uploads                 `yaml:"uploads"`
	RabbitMQ                `yaml:"rabbitmq"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	APIPrefix   string        `yaml:"api_prefix" env:"HTTP_API_PREFIX" env-default:"/api/v1"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кэш и список отозванных токенов.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env-default:"0"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"200ms"`
	ProfileTTL   time.Duration `yaml:"profile_ttl" env-default:"1h"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY" env-required:"true"`
	Algorithm    string        `yaml:"algorithm" env:"JWT_ALGORITHM" env-default:"HS256"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"15m"`
}

// Auth содержит политику регистрации и входа.
type Auth struct {
	MinPasswordLength int           `yaml:"min_password_length" env:"AUTH_MIN_PASSWORD_LENGTH" env-default:"6"`
	LoginTokenTTL     time.Duration `yaml:"login_token_ttl" env:"AUTH_LOGIN_TOKEN_TTL" env-default:"30m"`
	BcryptCost        int           `yaml:"bcrypt_cost" env:"AUTH_BCRYPT_COST" env-default:"10"`
	RateLimit         float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst         int           `yaml:"rate_burst" env-default:"10"`
}

// Uploads описывает, куда сохраняются аватары пользователей.
type Uploads struct {
	Backend    string `yaml:"backend" env:"UPLOADS_BACKEND" env-default:"local"`
	Dir        string `yaml:"dir" env:"UPLOADS_DIR" env-default:"uploads"`
	MaxBytes   int64  `yaml:"max_bytes" env-default:"5242880"`
	S3Bucket   string `yaml:"s3_bucket" env:"UPLOADS_S3_BUCKET"`
	S3Region   string `yaml:"s3_region" env:"UPLOADS_S3_REGION" env-default:"us-east-1"`
	S3Endpoint string `yaml:"s3_endpoint" env:"UPLOADS_S3_ENDPOINT"`
	S3User     string `yaml:"s3_user" env:"UPLOADS_S3_USER"`
	S3Password string `yaml:"s3_password" env:"UPLOADS_S3_PASSWORD"`
}

// RabbitMQ настройки публикации событий. Пустой URL отключает публикацию.
// PublishTimeout ограничивает ожидание брокера на пути регистрации.
type RabbitMQ struct {
	URL            string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange       string        `yaml:"exchange" env-default:"users"`
	RoutingKey     string        `yaml:"routing_key" env-default:"user.registered"`
	Retries        int           `yaml:"retries" env-default:"5"`
	RetryDelay     time.Duration `yaml:"retry_delay" env-default:"2s"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env-default:"2s"`
}

// MustLoad функция для загрузки конфига по пути из CONFIG_PATH, завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает YAML-файл, накладывает переменные окружения и проверяет значения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// Validate проверяет значения, которые нельзя выразить тегами cleanenv.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return errors.New("jwt_secret_key must not be empty")
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported jwt algorithm %q", c.Algorithm)
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("min_password_length must be positive, got %d", c.MinPasswordLength)
	}
	if c.TokenTTL <= 0 || c.LoginTokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	switch c.Backend {
	case UploadsLocal:
	case UploadsS3:
		if c.S3Bucket == "" {
			return errors.New("uploads.s3_bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("unknown uploads backend %q", c.Backend)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"GRPCAddress: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  Timeout: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  APIPrefix: %s\n"+
			"  Timeout: %s\n"+
			"JWTToken:\n"+
			"  Algorithm: %s\n"+
			"  TokenTTL: %s\n"+
			"Auth:\n"+
			"  MinPasswordLength: %d\n"+
			"  LoginTokenTTL: %s\n"+
			"Uploads:\n"+
			"  Backend: %s\n",
		c.Env,
		maskDSN(c.StorageConnectionString),
		c.GRPCAddress,
		c.AddressRedis,
		c.DB,
		c.TimeoutRedis,
		c.AddressHTTP,
		c.APIPrefix,
		c.TimeoutHTTP,
		c.Algorithm,
		c.TokenTTL,
		c.MinPasswordLength,
		c.LoginTokenTTL,
		c.Backend,
	)
}

// maskDSN скрывает пароль в строке подключения перед выводом в лог.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":***" + dsn[at:]
	}
	return dsn
}
