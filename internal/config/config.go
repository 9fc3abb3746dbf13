// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                            string `yaml:"env" env-default:"local"`
	StorageConnectionString        string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	ServiceStorageConnectionString string `yaml:"service_storage_connection_string" env:"SERVICE_STORAGE_CONNECTION_STRING"`
	MigrationsPath                 string `yaml:"migrations_path" env-default:"./migrations"`
	RedisConnection                `yaml:"redis_connection"`
	HTTPServer                     `yaml:"http_server"`
	Auth                           `yaml:"auth"`
	Stripe                         `yaml:"stripe"`
	Reconcile                      `yaml:"reconcile"`
	RabbitMQ                       `yaml:"rabbitmq"`
	CRM                            `yaml:"crm"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"5"`
	RateBurst   int           `yaml:"rate_burst" env-default:"10"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis    string        `yaml:"addressredis"`
	Password        string        `yaml:"password"`
	User            string        `yaml:"user"`
	DB              int           `yaml:"db"`
	MaxRetries      int           `yaml:"max_retries"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	TimeoutRedis    time.Duration `yaml:"timeoutredis"`
	EntitlementsTTL time.Duration `yaml:"entitlements_ttl" env-default:"5m"`
}

// Auth структура для проверки токенов провайдера идентификации
type Auth struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"AUTH_JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// Stripe структура для настройки платёжного провайдера
type Stripe struct {
	SecretKey           string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret       string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	APIURL              string `yaml:"api_url"`
	SuccessURL          string `yaml:"success_url"`
	CancelURL           string `yaml:"cancel_url"`
	Currency            string `yaml:"currency" env-default:"usd"`
	WealthPriceID       string `yaml:"wealth_price_id"`
	ProductivityPriceID string `yaml:"productivity_price_id"`
	ToolPriceCents      int64  `yaml:"tool_price_cents" env-default:"900"`
}

// Reconcile структура для настройки отложенной сверки доступа после оплаты
type Reconcile struct {
	Grace time.Duration `yaml:"grace" env-default:"2s"`
}

// RabbitMQ структура для настройки подключения к брокеру
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// CRM структура для настройки синхронизации с CRM
type CRM struct {
	CRMAPIURL string        `yaml:"api_url" env:"CRM_API_URL"`
	CRMAPIKey string        `yaml:"api_key" env:"CRM_API_KEY"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.go
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	if cfg.ServiceStorageConnectionString == "" {
		cfg.ServiceStorageConnectionString = cfg.StorageConnectionString
	}
	return &cfg
}

// Warnings возвращает список некритичных проблем конфигурации.
// Отсутствие секрета вебхука не останавливает запуск: обработчик сам отвечает 503.
func (c *Config) Warnings() []string {
	var res []string
	if c.WebhookSecret == "" {
		res = append(res, "stripe webhook secret is not set, webhook events will be rejected")
	}
	if c.SecretKey == "" {
		res = append(res, "stripe secret key is not set, checkout creation will fail")
	}
	if !c.CRMEnabled() {
		res = append(res, "crm credentials are not set, crm sync is skipped")
	}
	if c.AddressRedis == "" {
		res = append(res, "redis address is not set, entitlement cache is disabled")
	}
	return res
}

// CRMEnabled сообщает, заданы ли реквизиты CRM.
func (c *Config) CRMEnabled() bool {
	return c.CRMAPIURL != "" && c.CRMAPIKey != ""
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"ServiceStorageConnectionString: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  EntitlementsTTL: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Stripe:\n"+
			"  SecretKey: %s\n"+
			"  WebhookSecret: %s\n"+
			"  Currency: %s\n"+
			"Reconcile:\n"+
			"  Grace: %s\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"CRM:\n"+
			"  URL: %s\n"+
			"  APIKey: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		mask(c.ServiceStorageConnectionString),
		c.AddressRedis,
		c.DB,
		c.EntitlementsTTL,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		mask(c.SecretKey),
		mask(c.WebhookSecret),
		c.Currency,
		c.Grace,
		mask(c.RabbitMQURL),
		c.CRMAPIURL,
		mask(c.CRMAPIKey),
	)
}
