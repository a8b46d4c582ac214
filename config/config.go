package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// EnvProduction is the ENV value that switches on production behavior:
	// secure cookies and the mandatory JWT secret check.
	EnvProduction = "production"

	// devJWTSecret signs tokens when JWT_SECRET is unset outside production.
	devJWTSecret = "dev-secret-key-for-local-development-only"

	minJWTSecretLen = 32
)

type Config struct {
	Env        string
	ServerPort int
	StaticDir  string
	Database   DatabaseConfig
	JWT        JWTConfig
	Admin      AdminConfig
	Storage    StorageConfig
	Minio      MinioConfig
	GCS        GCSConfig
	MQ         MQConfig
	RabbitMQ   RabbitMQConfig
	PubSub     PubSubConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type JWTConfig struct {
	Secret string
}

// AdminConfig holds the commission login credentials. PasswordHash is a
// bcrypt hash; plain passwords are never configured.
type AdminConfig struct {
	Login        string
	PasswordHash string
}

// StorageConfig selects the object-storage backend for uploaded images.
type StorageConfig struct {
	// Backend is "minio" or "gcs".
	Backend string

	// PublicBaseURL prefixes object keys to form the URL returned to clients.
	PublicBaseURL string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

// MQConfig selects the broker for order lifecycle events.
// An empty Backend disables publishing.
type MQConfig struct {
	// Backend is "rabbitmq", "pubsub" or "".
	Backend string

	// OrdersChannel is the queue/topic order events are published to.
	OrdersChannel string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

// Load reads configuration from the environment. In production a JWT secret
// of at least 32 bytes is mandatory and Load fails without one, so the
// process refuses to start rather than sign sessions with the dev key.
func Load() (Config, error) {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	cfg := Config{
		Env:        getEnv("ENV", "development"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		StaticDir:  getEnv("STATIC_DIR", "web"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "shkola"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "shkola_db"),
			UseSSL:   getEnvBool("DB_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		},
		Admin: AdminConfig{
			Login:        getEnv("ADMIN_LOGIN", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "minio"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_URL", "/uploads"),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "uploads"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		MQ: MQConfig{
			Backend:       getEnv("MQ_BACKEND", ""),
			OrdersChannel: getEnv("MQ_ORDERS_CHANNEL", "orders"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTODELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	if cfg.Env == EnvProduction {
		if len(cfg.JWT.Secret) < minJWTSecretLen {
			return Config{}, fmt.Errorf("JWT_SECRET must be set and at least %d bytes in production", minJWTSecretLen)
		}
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = devJWTSecret
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "1" || strings.EqualFold(valueStr, "true")
	}
	return defaultValue
}
