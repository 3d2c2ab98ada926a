package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración del servicio (Viper: archivo opcional + variables de entorno).
type Config struct {
	App     AppConfig
	DB      DBConfig
	JWT     JWTConfig
	HTTP    HTTPConfig
	Ledger  LedgerConfig
	Billing BillingConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

// AppConfig configuración general.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL y Host están vacíos el servicio arranca con el store en memoria.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
}

// Enabled indica si hay una base configurada.
func (c DBConfig) Enabled() bool {
	return c.DatabaseURL != "" || c.Host != ""
}

// ConnectionString devuelve DATABASE_URL si está definido, si no el DSN construido.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN connection string con la contraseña codificada.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// JWTConfig verificación de tokens emitidos por el servicio de identidad.
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig servidor HTTP.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LedgerConfig reintentos de las escrituras optimistas.
type LedgerConfig struct {
	MaxAttempts int
}

// BillingConfig parámetros de liquidación.
type BillingConfig struct {
	LoyaltyPointValue int64 // VND por punto
	InvoicePrefix     string
}

// RedisConfig caché de idempotencia de facturas. Addr vacío = deshabilitado.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

// Enabled indica si Redis está configurado.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MetricsConfig exposición de /metrics.
type MetricsConfig struct {
	Enabled bool
}

// Load lee la configuración. Las variables de entorno tienen prioridad sobre .env / config.env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // opcional

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.MergeInConfig() // opcional

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetInt("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		Ledger: LedgerConfig{
			MaxAttempts: v.GetInt("LEDGER_MAX_ATTEMPTS"),
		},
		Billing: BillingConfig{
			LoyaltyPointValue: v.GetInt64("LOYALTY_POINT_VALUE"),
			InvoicePrefix:     v.GetString("INVOICE_PREFIX"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("REDIS_ADDR"),
			Password:       v.GetString("REDIS_PASSWORD"),
			DB:             v.GetInt("REDIS_DB"),
			IdempotencyTTL: time.Duration(v.GetInt("IDEMPOTENCY_TTL_MINUTES")) * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}

	if cfg.Ledger.MaxAttempts < 1 {
		return nil, fmt.Errorf("config: LEDGER_MAX_ATTEMPTS debe ser >= 1, es %d", cfg.Ledger.MaxAttempts)
	}
	if cfg.Billing.LoyaltyPointValue <= 0 {
		return nil, fmt.Errorf("config: LOYALTY_POINT_VALUE debe ser > 0")
	}
	if cfg.App.Env == "production" && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET requerido en production")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "spa-ledger-api")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "spa_ledger")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 25)
	v.SetDefault("JWT_ISSUER", "spa-identity")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("LEDGER_MAX_ATTEMPTS", 3)
	v.SetDefault("LOYALTY_POINT_VALUE", 1000)
	v.SetDefault("INVOICE_PREFIX", "HD")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("IDEMPOTENCY_TTL_MINUTES", 1440)
	v.SetDefault("METRICS_ENABLED", true)
}
