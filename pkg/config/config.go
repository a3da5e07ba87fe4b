package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the rollback engine
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	AWS       AWSConfig
	Artifacts ArtifactsConfig
	Alarms    AlarmsConfig
	Notify    NotifyConfig
	Infra     InfraConfig
	Rollback  RollbackConfig
	LogLevel  string
}

// DatabaseConfig holds PostgreSQL configuration for the deployment history store
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for the per-environment rollback lock
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	LockTTL  time.Duration
}

// AWSConfig holds shared AWS client configuration
type AWSConfig struct {
	Region string
}

// ArtifactsConfig holds the S3 artifact store layout
type ArtifactsConfig struct {
	Bucket string
	Prefix string
}

// AlarmsConfig holds CloudWatch alarm scoping
type AlarmsConfig struct {
	NamePrefix string
}

// NotifyConfig holds webhook notification configuration
type NotifyConfig struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
}

// InfraConfig holds Pulumi reverter configuration
type InfraConfig struct {
	Enabled       bool
	Project       string
	Backend       string
	WorkDir       string
	RevertTimeout time.Duration
}

// RollbackConfig holds orchestrator tuning
type RollbackConfig struct {
	StabilizationInterval time.Duration
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars only
	}

	// Override with environment variables
	viper.AutomaticEnv()

	config := &Config{
		Database: DatabaseConfig{
			Host:            viper.GetString("database.host"),
			Port:            viper.GetInt("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:      viper.GetString("redis.url"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			LockTTL:  viper.GetDuration("redis.lock_ttl"),
		},
		AWS: AWSConfig{
			Region: viper.GetString("aws.region"),
		},
		Artifacts: ArtifactsConfig{
			Bucket: viper.GetString("artifacts.bucket"),
			Prefix: viper.GetString("artifacts.prefix"),
		},
		Alarms: AlarmsConfig{
			NamePrefix: viper.GetString("alarms.name_prefix"),
		},
		Notify: NotifyConfig{
			WebhookURL: viper.GetString("notify.webhook_url"),
			Channel:    viper.GetString("notify.channel"),
			Username:   viper.GetString("notify.username"),
			Timeout:    viper.GetDuration("notify.timeout"),
		},
		Infra: InfraConfig{
			Enabled:       viper.GetBool("infra.enabled"),
			Project:       viper.GetString("infra.project"),
			Backend:       viper.GetString("infra.backend"),
			WorkDir:       viper.GetString("infra.work_dir"),
			RevertTimeout: viper.GetDuration("infra.revert_timeout"),
		},
		Rollback: RollbackConfig{
			StabilizationInterval: viper.GetDuration("rollback.stabilization_interval"),
		},
		LogLevel: viper.GetString("log_level"),
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "127.0.0.1")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "rollback")
	viper.SetDefault("database.password", "rollback_dev_password")
	viper.SetDefault("database.dbname", "rollback_engine")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	viper.SetDefault("redis.url", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.lock_ttl", 30*time.Minute)

	// AWS defaults
	viper.SetDefault("aws.region", "us-east-1")

	// Artifact store defaults
	viper.SetDefault("artifacts.bucket", "")
	viper.SetDefault("artifacts.prefix", "releases")

	// Alarm defaults
	viper.SetDefault("alarms.name_prefix", "deploy")

	// Notification defaults
	viper.SetDefault("notify.webhook_url", "")
	viper.SetDefault("notify.channel", "#deployments")
	viper.SetDefault("notify.username", "rollback-engine")
	viper.SetDefault("notify.timeout", 10*time.Second)

	// Infrastructure reverter defaults
	viper.SetDefault("infra.enabled", false)
	viper.SetDefault("infra.project", "rollback-engine")
	viper.SetDefault("infra.backend", "")
	viper.SetDefault("infra.work_dir", "")
	viper.SetDefault("infra.revert_timeout", 20*time.Minute)

	// Rollback defaults
	viper.SetDefault("rollback.stabilization_interval", 60*time.Second)

	// Logging defaults
	viper.SetDefault("log_level", "info")
}
