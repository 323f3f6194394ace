package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	Payment    PaymentConfig
	Escrow     EscrowConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

// PaymentConfig for the hosted checkout gateway used for deposits and
// escrow funding.
type PaymentConfig struct {
	BaseURL        string
	APIKey         string
	WebhookSecret  string
	WebhookBaseURL string // callback will be WebhookBaseURL + /api/v1/webhooks/payment
	PaymentExpiry  time.Duration
}

// EscrowConfig holds the delivery-phase payment parameters.
type EscrowConfig struct {
	DefaultDepositPercent int64 // of phase value, charged up front
	ReminderDays          int   // upcoming-delivery reminder horizon
}

// Load reads configuration from buildmart.yaml (working directory or
// /etc/buildmart) with BUILDMART_ prefixed environment overrides, e.g.
// BUILDMART_DATABASE_DSN.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("buildmart")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/buildmart")
	v.SetEnvPrefix("BUILDMART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		JWT: JWTConfig{
			AccessSecret:  v.GetString("jwt.access_secret"),
			RefreshSecret: v.GetString("jwt.refresh_secret"),
			AccessExpiry:  v.GetDuration("jwt.access_expiry"),
			RefreshExpiry: v.GetDuration("jwt.refresh_expiry"),
			Issuer:        v.GetString("jwt.issuer"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: v.GetString("firebase.service_account_path"),
		},
		Payment: PaymentConfig{
			BaseURL:        v.GetString("payment.base_url"),
			APIKey:         v.GetString("payment.api_key"),
			WebhookSecret:  v.GetString("payment.webhook_secret"),
			WebhookBaseURL: v.GetString("payment.webhook_base_url"),
			PaymentExpiry:  v.GetDuration("payment.payment_expiry"),
		},
		Escrow: EscrowConfig{
			DefaultDepositPercent: v.GetInt64("escrow.default_deposit_percent"),
			ReminderDays:          v.GetInt("escrow.reminder_days"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "buildmart:buildmart@tcp(localhost:3306)/buildmart?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.refresh_secret", "change-me-refresh")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.refresh_expiry", 168*time.Hour)
	v.SetDefault("jwt.issuer", "buildmart")

	v.SetDefault("payment.payment_expiry", 30*time.Minute)

	v.SetDefault("escrow.default_deposit_percent", 20)
	v.SetDefault("escrow.reminder_days", 3)
}
