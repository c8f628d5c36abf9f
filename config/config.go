package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Media     MediaConfig     `mapstructure:"media"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig selects and configures the task store backend
type StoreConfig struct {
	// Driver is one of "mongo", "postgres", "memory".
	Driver string `mapstructure:"driver"`

	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`

	PostgresURL    string `mapstructure:"postgres_url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// WorkspaceConfig holds transient artifact storage configuration
type WorkspaceConfig struct {
	ScratchDir string `mapstructure:"scratch_dir"`
}

// ArchiveConfig holds upload archive configuration
type ArchiveConfig struct {
	Type     string `mapstructure:"type"` // "local" or "s3"
	BasePath string `mapstructure:"base_path"`

	S3Bucket          string `mapstructure:"s3_bucket"`
	S3Region          string `mapstructure:"s3_region"`
	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
}

// MediaConfig holds media normalization configuration
type MediaConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SweepMinAge     time.Duration `mapstructure:"sweep_min_age"`
}

// AnalyzerConfig holds remote analyzer client configuration
type AnalyzerConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v.AutomaticEnv()
	v.SetEnvPrefix("ANALYSIS_SERVICE")

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// bindEnvVars binds environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")

	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.mongo_uri", "MONGODB_URI")
	v.BindEnv("store.postgres_url", "DATABASE_URL")

	v.BindEnv("workspace.scratch_dir", "SCRATCH_DIR")
	v.BindEnv("archive.base_path", "ARCHIVE_PATH")
	v.BindEnv("archive.s3_bucket", "S3_BUCKET")
	v.BindEnv("archive.s3_region", "S3_REGION")
	v.BindEnv("archive.s3_endpoint", "S3_ENDPOINT")
	v.BindEnv("archive.s3_access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("archive.s3_secret_access_key", "S3_SECRET_ACCESS_KEY")

	v.BindEnv("media.ffmpeg_path", "FFMPEG_PATH")

	v.BindEnv("analyzer.endpoint", "ANALYZER_ENDPOINT")

	v.BindEnv("logging.level", "LOG_LEVEL")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "speech_db")
	v.SetDefault("store.mongo_collection", "tasks")
	v.SetDefault("store.max_connections", 25)
	v.SetDefault("store.min_connections", 5)

	v.SetDefault("workspace.scratch_dir", "./data/scratch")

	v.SetDefault("archive.type", "local")
	v.SetDefault("archive.base_path", "./data/uploads")
	v.SetDefault("archive.s3_region", "us-east-1")

	v.SetDefault("media.ffmpeg_path", "ffmpeg")

	v.SetDefault("worker.max_concurrent", 10)
	v.SetDefault("worker.analysis_timeout", 0)
	v.SetDefault("worker.sweep_interval", 5*time.Minute)
	v.SetDefault("worker.sweep_min_age", 10*time.Minute)

	v.SetDefault("analyzer.endpoint", "http://localhost:9000/analyze")
	v.SetDefault("analyzer.timeout", 5*time.Minute)
	v.SetDefault("analyzer.max_retries", 2)
	v.SetDefault("analyzer.requests_per_second", 2)

	v.SetDefault("rate_limit.requests_per_second", 10)
	v.SetDefault("rate_limit.burst_size", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)
}
