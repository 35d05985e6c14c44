package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the compliance engine
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Elasticsearch ElasticsearchConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	S3            S3Config
	Encryption    EncryptionConfig
	Auth          AuthConfig
	Logging       LoggingConfig
	Screening     ScreeningConfig
	Risk          RiskConfig
	Velocity      VelocityConfig
	Reporting     ReportingConfig
	Worker        WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ElasticsearchConfig holds Elasticsearch configuration
type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	DecisionIndex string   `mapstructure:"decision_index"`
	ReportIndex   string   `mapstructure:"report_index"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
	AlertTopic       string   `mapstructure:"alert_topic"`
	DecisionTopic    string   `mapstructure:"decision_topic"`
	EnableIdempotent bool     `mapstructure:"enable_idempotent"`
}

// S3Config holds AWS S3 configuration for filed-report archival
type S3Config struct {
	Region        string `mapstructure:"region"`
	ReportsBucket string `mapstructure:"reports_bucket"`
	Endpoint      string `mapstructure:"endpoint"` // For local testing with MinIO
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
}

// EncryptionConfig holds encryption settings for subject PII at rest
type EncryptionConfig struct {
	EncryptionKeysBase64 []string `mapstructure:"keys"`
	CurrentKeyVersion    int      `mapstructure:"current_key_version"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	JWTPublicKeyPath string `mapstructure:"jwt_public_key_path"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
	ServiceAPIKey    string `mapstructure:"service_api_key"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ScreeningConfig holds sanctions screening settings
type ScreeningConfig struct {
	MatchThreshold float64 `mapstructure:"match_threshold"`
	MaxMatches     int     `mapstructure:"max_matches"`
	// BlockConfidence is the match confidence at which screening blocks
	// outright instead of routing the decision through risk scoring.
	BlockConfidence float64 `mapstructure:"block_confidence"`
}

// RiskConfig holds risk scoring weights and decision thresholds
type RiskConfig struct {
	KYCWeight         float64 `mapstructure:"kyc_weight"`
	SanctionsWeight   float64 `mapstructure:"sanctions_weight"`
	TransactionWeight float64 `mapstructure:"transaction_weight"`
	GeographicWeight  float64 `mapstructure:"geographic_weight"`
	VelocityWeight    float64 `mapstructure:"velocity_weight"`
	ReviewThreshold   int     `mapstructure:"review_threshold"`
}

// VelocityConfig holds velocity monitoring settings
type VelocityConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// ReportingConfig holds evaluation and review timing settings
type ReportingConfig struct {
	EvaluationTimeout time.Duration `mapstructure:"evaluation_timeout"`
	ReviewCheckTTL    time.Duration `mapstructure:"review_check_ttl"`
}

// WorkerConfig holds reconciliation worker settings
type WorkerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	LeaseTTL      time.Duration `mapstructure:"lease_ttl"`
	SweepLookback time.Duration `mapstructure:"sweep_lookback"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("COMPLIANCE")
	v.AutomaticEnv()

	// Read config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "compliance_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Elasticsearch
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "elastic")
	v.SetDefault("elasticsearch.password", "changeme")
	v.SetDefault("elasticsearch.decision_index", "compliance-decisions")
	v.SetDefault("elasticsearch.report_index", "regulatory-reports")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 3)
	v.SetDefault("redis.default_ttl", "15m")

	// Kafka
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "compliance-engine")
	v.SetDefault("kafka.transaction_topic", "banking.transactions")
	v.SetDefault("kafka.alert_topic", "banking.compliance.alerts")
	v.SetDefault("kafka.decision_topic", "banking.compliance.decisions")
	v.SetDefault("kafka.enable_idempotent", true)

	// S3
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.reports_bucket", "banking-regulatory-reports")
	v.SetDefault("s3.use_ssl", true)

	// Encryption
	v.SetDefault("encryption.current_key_version", 1)

	// Auth
	v.SetDefault("auth.jwt_public_key_path", "./keys/jwt_public.pem")
	v.SetDefault("auth.jwt_issuer", "banking-auth-service")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")

	// Screening
	v.SetDefault("screening.match_threshold", 0.80)
	v.SetDefault("screening.max_matches", 10)
	v.SetDefault("screening.block_confidence", 0.95)

	// Risk
	v.SetDefault("risk.kyc_weight", 0.25)
	v.SetDefault("risk.sanctions_weight", 0.30)
	v.SetDefault("risk.transaction_weight", 0.20)
	v.SetDefault("risk.geographic_weight", 0.15)
	v.SetDefault("risk.velocity_weight", 0.10)
	v.SetDefault("risk.review_threshold", 75)

	// Velocity
	v.SetDefault("velocity.window", "24h")

	// Reporting
	v.SetDefault("reporting.evaluation_timeout", "5s")
	v.SetDefault("reporting.review_check_ttl", "24h")

	// Worker
	v.SetDefault("worker.interval", "10m")
	v.SetDefault("worker.lease_ttl", "5m")
	v.SetDefault("worker.sweep_lookback", "48h")
}
