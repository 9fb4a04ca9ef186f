package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Allocation AllocationConfig `mapstructure:"allocation"`
	Karma      KarmaConfig      `mapstructure:"karma"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Feature    FeatureConfig    `mapstructure:"feature"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	CORS         CORSConfig `mapstructure:"cors"`
	RateLimit    int        `mapstructure:"rate_limit"`     // 每分钟每 IP 每路由允许的请求数
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"` // 请求体上限
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
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置（可选，用于窗口锁、Token 黑名单与限流）
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AllocationConfig 分配引擎配置
type AllocationConfig struct {
	WaitingListTitle    string   `mapstructure:"waiting_list_title"`
	WaitingListCapacity int      `mapstructure:"waiting_list_capacity"`
	Rooms               []string `mapstructure:"rooms"`
}

// KarmaConfig 声望结算规则配置
type KarmaConfig struct {
	Baseline               int           `mapstructure:"baseline"`
	CreatorBonus           int           `mapstructure:"creator_bonus"`
	NoShowPenalty          int           `mapstructure:"no_show_penalty"`
	WaitingListAppeared    int           `mapstructure:"waiting_list_appeared"`
	WaitingListAbsent      int           `mapstructure:"waiting_list_absent"`
	PreferenceBonus        []int         `mapstructure:"preference_bonus"` // 下标 0 对应第 1 志愿
	LateCancellation       int           `mapstructure:"late_cancellation"`
	LateCancellationCutoff time.Duration `mapstructure:"late_cancellation_cutoff"`
}

// ScheduleConfig 定时任务配置
type ScheduleConfig struct {
	Location       string        `mapstructure:"location"`
	AssignmentCron string        `mapstructure:"assignment_cron"`
	ReleaseCron    string        `mapstructure:"release_cron"`
	RetentionCron  string        `mapstructure:"retention_cron"`
	Retention      time.Duration `mapstructure:"retention"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

// FeatureConfig 功能开关配置
type FeatureConfig struct {
	SchedulerEnabled bool `mapstructure:"scheduler_enabled"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "session_board")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Berlin")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "session-board")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("allocation.waiting_list_title", "Waiting List")
	v.SetDefault("allocation.waiting_list_capacity", 128)
	v.SetDefault("allocation.rooms", []string{"A", "B", "C", "D", "E", "Comp", "Hall"})

	v.SetDefault("karma.baseline", 1000)
	v.SetDefault("karma.creator_bonus", 500)
	v.SetDefault("karma.no_show_penalty", -500)
	v.SetDefault("karma.waiting_list_appeared", 200)
	v.SetDefault("karma.waiting_list_absent", 180)
	v.SetDefault("karma.preference_bonus", []int{100, 120, 140, 150})
	v.SetDefault("karma.late_cancellation", -300)
	v.SetDefault("karma.late_cancellation_cutoff", "48h")

	v.SetDefault("schedule.location", "Europe/Berlin")
	v.SetDefault("schedule.assignment_cron", "0 12 * * 0") // 周日 12:00
	v.SetDefault("schedule.release_cron", "0 12 * * 1")    // 周一 12:00
	v.SetDefault("schedule.retention_cron", "30 3 * * *")
	v.SetDefault("schedule.retention", "2160h") // 90 天
	v.SetDefault("schedule.lock_ttl", "10m")

	v.SetDefault("feature.scheduler_enabled", true)

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
	v.SetEnvPrefix("BOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
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
	if c.Allocation.WaitingListCapacity <= 0 {
		return fmt.Errorf("配置校验失败: allocation.waiting_list_capacity 必须大于 0")
	}
	if _, err := time.LoadLocation(c.Schedule.Location); err != nil {
		return fmt.Errorf("配置校验失败: schedule.location 无效: %w", err)
	}
	return nil
}

// MustLocation 返回排班所用时区；Validate 已保证其可加载
func (c *ScheduleConfig) MustLocation() *time.Location {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
