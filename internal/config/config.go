package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Exam      ExamConfig      `mapstructure:"exam"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
	// 单个学习者每分钟允许的心跳次数
	HeartbeatsPerMinute int `mapstructure:"heartbeats_per_minute"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	// sqlite 文件路径或 DSN
	Path string
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type ExamConfig struct {
	RetestDefaultSize  int `mapstructure:"retest_default_size"`
	// 非管理员同时可持有的开放或待开放自建试卷数
	SelfServiceMaxOpen int `mapstructure:"self_service_max_open"`
}

type ProgressConfig struct {
	TimeCapMultiplier float64 `mapstructure:"time_cap_multiplier"`
	MaxDeltaSec       int     `mapstructure:"max_delta_sec"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

type AnalyticsConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("rate_limit.max_requests", 100000)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("rate_limit.heartbeats_per_minute", 30)
	v.SetDefault("exam.retest_default_size", 20)
	v.SetDefault("exam.self_service_max_open", 1)
	v.SetDefault("progress.time_cap_multiplier", 1.5)
	v.SetDefault("progress.max_delta_sec", 60)
	v.SetDefault("analytics.cache_ttl_seconds", 300)
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.console", true)
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LEARNHUB")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Progress
	v.BindEnv("progress.time_cap_multiplier", "PROGRESS_TIME_CAP_MULTIPLIER")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置中会直接影响判分与计时的关键参数
func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Progress.TimeCapMultiplier <= 0 {
		return fmt.Errorf("progress.time_cap_multiplier must be positive, got %v", c.Progress.TimeCapMultiplier)
	}
	if c.Progress.MaxDeltaSec <= 0 {
		return fmt.Errorf("progress.max_delta_sec must be positive, got %d", c.Progress.MaxDeltaSec)
	}
	if c.Exam.SelfServiceMaxOpen <= 0 {
		return fmt.Errorf("exam.self_service_max_open must be positive, got %d", c.Exam.SelfServiceMaxOpen)
	}
	if c.Exam.RetestDefaultSize <= 0 {
		return fmt.Errorf("exam.retest_default_size must be positive, got %d", c.Exam.RetestDefaultSize)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Default 返回带默认值的配置，供测试与脚本使用
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8080", Mode: "debug"},
		Database:  DatabaseConfig{Driver: "sqlite", Path: "learnhub.db"},
		RateLimit: RateLimitConfig{MaxRequests: 100000, WindowMinutes: 1, HeartbeatsPerMinute: 30},
		Exam:      ExamConfig{RetestDefaultSize: 20, SelfServiceMaxOpen: 1},
		Progress:  ProgressConfig{TimeCapMultiplier: 1.5, MaxDeltaSec: 60},
		Analytics: AnalyticsConfig{CacheTTLSeconds: 300},
		Log:       LogConfig{File: "logs/app.log", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30, Console: true},
	}
}
