package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"db"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Log          LogConfig          `mapstructure:"log"`
	Substitution SubstitutionConfig `mapstructure:"substitution"`
	Notify       NotifyConfig       `mapstructure:"notify"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）

	// 超过该耗时的 SQL 记 warn；批准流程持有行锁，慢查询直接拖慢竞争方
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"` // 为空时输出到 stderr
}

// SubstitutionConfig 代课协调配置
type SubstitutionConfig struct {
	LockBackend      string        `mapstructure:"lock_backend"` // local | redis
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	LockWait         time.Duration `mapstructure:"lock_wait"`
	RespondRateLimit int           `mapstructure:"respond_rate_limit"` // 每分钟每 IP
}

// NotifyConfig 通知投递配置
type NotifyConfig struct {
	QueueSize        int           `mapstructure:"queue_size"`
	Workers          int           `mapstructure:"workers"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryCron        string        `mapstructure:"retry_cron"`
	AbsenceSweepCron string        `mapstructure:"absence_sweep_cron"`
	TelegramToken    string        `mapstructure:"telegram_token"`
	TelegramTimeout  time.Duration `mapstructure:"telegram_timeout"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "cadenza")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Shanghai")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)
	v.SetDefault("db.slow_threshold", "200ms")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// 无默认值的键也要登记，AutomaticEnv 才能在 Unmarshal 时覆盖
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_paths", []string{})

	v.SetDefault("substitution.lock_backend", "local")
	v.SetDefault("substitution.lock_ttl", "10s")
	v.SetDefault("substitution.lock_wait", "5s")
	v.SetDefault("substitution.respond_rate_limit", 30)

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.workers", 4)
	v.SetDefault("notify.max_attempts", 5)
	v.SetDefault("notify.retry_cron", "*/5 * * * *")
	v.SetDefault("notify.absence_sweep_cron", "0 * * * *")
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_timeout", "10s")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("CADENZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Substitution.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("配置校验失败: substitution.lock_backend 仅支持 local 或 redis，当前为 %q", c.Substitution.LockBackend)
	}
	if c.Substitution.LockTTL <= 0 || c.Substitution.LockWait <= 0 {
		return fmt.Errorf("配置校验失败: substitution.lock_ttl 与 lock_wait 必须大于 0")
	}
	if c.Notify.Workers <= 0 || c.Notify.QueueSize <= 0 {
		return fmt.Errorf("配置校验失败: notify.workers 与 notify.queue_size 必须大于 0")
	}
	if c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("配置校验失败: notify.max_attempts 必须大于 0")
	}
	for key, spec := range map[string]string{
		"notify.retry_cron":         c.Notify.RetryCron,
		"notify.absence_sweep_cron": c.Notify.AbsenceSweepCron,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("配置校验失败: %s 无效: %w", key, err)
		}
	}
	return nil
}
