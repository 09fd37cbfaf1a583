// Package config defines all configuration structures for the ADScan
// platform.  No I/O or parsing logic lives here, only plain data types and
// validation.
package config

import (
	"fmt"
	"time"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	ScanJobsTopic   string        `mapstructure:"scan_jobs_topic"`
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ScanConfig holds platform-level scan execution limits and the default
// schedule applied when a request omits its own.
type ScanConfig struct {
	DefaultSteps           int           `mapstructure:"default_steps"`
	DefaultCompressEnd     int           `mapstructure:"default_compress_end"`
	DefaultDecompressStart int           `mapstructure:"default_decompress_start"`
	SyncInstanceLimit      int           `mapstructure:"sync_instance_limit"`
	StepTimeout            time.Duration `mapstructure:"step_timeout"`
}

// Config is the root configuration object for every ADScan process.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Redis    RedisConfig       `mapstructure:"redis"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Scan     ScanConfig        `mapstructure:"scan"`
	Log      logging.LogConfig `mapstructure:"log"`
}

// Validate checks cross-field consistency of the loaded configuration.
// Defaults are applied before validation, so empty required fields indicate a
// genuinely broken deployment.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host must not be empty")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database.db_name must not be empty")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if c.Kafka.ScanJobsTopic == "" {
		return fmt.Errorf("kafka.scan_jobs_topic must not be empty")
	}
	if c.MinIO.Endpoint == "" {
		return fmt.Errorf("minio.endpoint must not be empty")
	}
	if c.MinIO.Bucket == "" {
		return fmt.Errorf("minio.bucket must not be empty")
	}
	if c.Scan.DefaultSteps < 1 {
		return fmt.Errorf("scan.default_steps must be >= 1, got %d", c.Scan.DefaultSteps)
	}
	if c.Scan.DefaultCompressEnd >= c.Scan.DefaultDecompressStart {
		return fmt.Errorf("scan.default_compress_end (%d) must be below scan.default_decompress_start (%d)",
			c.Scan.DefaultCompressEnd, c.Scan.DefaultDecompressStart)
	}
	if c.Scan.DefaultDecompressStart > c.Scan.DefaultSteps {
		return fmt.Errorf("scan.default_decompress_start (%d) must not exceed scan.default_steps (%d)",
			c.Scan.DefaultDecompressStart, c.Scan.DefaultSteps)
	}
	return nil
}
