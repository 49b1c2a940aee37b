package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Branch   BranchConfig
	Pricing  PricingConfig
	Payment  PaymentConfig
	Realtime RealtimeConfig
	View     ViewConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	MigrateOnStart  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	GroupID     string
}

type BranchConfig struct {
	ID string
}

// PricingConfig is handed to every cart at construction.
type PricingConfig struct {
	TaxRate           float64
	ServiceChargeRate float64
}

type PaymentConfig struct {
	Timeout time.Duration
}

type RealtimeConfig struct {
	Schema            string
	Collections       []string
	SubscribeTimeout  time.Duration
	ReconnectBackoff  time.Duration
	ReconcileInterval time.Duration
	DedupeCapacity    int
}

type ViewConfig struct {
	TTL time.Duration
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8084"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_order"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			MigrateOnStart:  getEnvBool("POSTGRES_MIGRATE_ON_START", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "omnipos.changes"),
			GroupID:     getEnv("KAFKA_GROUP_TERMINAL", "order-terminal"),
		},
		Branch: BranchConfig{
			ID: getEnv("BRANCH_ID", ""),
		},
		Pricing: PricingConfig{
			TaxRate:           getEnvFloat("PRICING_TAX_RATE", 0.08),
			ServiceChargeRate: getEnvFloat("PRICING_SERVICE_CHARGE_RATE", 0.10),
		},
		Payment: PaymentConfig{
			Timeout: getEnvDuration("PAYMENT_TIMEOUT", 30*time.Second),
		},
		Realtime: RealtimeConfig{
			Schema: getEnv("REALTIME_SCHEMA", "public"),
			Collections: getEnvSlice("REALTIME_COLLECTIONS", []string{
				"orders", "order_items", "payments", "stock_movements", "products", "restaurant_tables",
			}),
			SubscribeTimeout:  getEnvDuration("REALTIME_SUBSCRIBE_TIMEOUT", 10*time.Second),
			ReconnectBackoff:  getEnvDuration("REALTIME_RECONNECT_BACKOFF", 2*time.Second),
			ReconcileInterval: getEnvDuration("REALTIME_RECONCILE_INTERVAL", 5*time.Minute),
			DedupeCapacity:    getEnvInt("REALTIME_DEDUPE_CAPACITY", 10000),
		},
		View: ViewConfig{
			TTL: getEnvDuration("VIEW_TTL", 10*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
