// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	LINE     LINEConfig     `mapstructure:"line"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
// DSN 为空时由 Host/User/Password/Name 拼接。
type MySQLConfig struct {
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储管理后台 JWT 的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置，仅在 chat.dispatch=kafka 时使用。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// BrokerList 将逗号分隔的 brokers 拆分为地址列表。
func (c KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// LINEConfig 存储 LINE Messaging API 的配置。
type LINEConfig struct {
	ChannelSecret      string `mapstructure:"channel_secret"`
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	APIBaseURL         string `mapstructure:"api_base_url"`
	LoadingSeconds     int    `mapstructure:"loading_seconds"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChatConfig 存储会话与历史管理的配置。
type ChatConfig struct {
	// HistoryLimit 为送入模型的历史消息条数（不是轮数）
	HistoryLimit            int    `mapstructure:"history_limit"`
	DefaultLanguage         string `mapstructure:"default_language"`
	CompletionTimeoutSecond int    `mapstructure:"completion_timeout_seconds"`
	// Dispatch 取值 inline 或 kafka
	Dispatch         string `mapstructure:"dispatch"`
	Locker           string `mapstructure:"locker"`
	LockTTLSeconds   int    `mapstructure:"lock_ttl_seconds"`
	DedupeTTLSeconds int    `mapstructure:"dedupe_ttl_seconds"`
}

// CompletionTimeout 返回单次模型调用的超时时长。
func (c ChatConfig) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutSecond) * time.Second
}

// LockTTL 返回用户锁的存活时长。
func (c ChatConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DedupeTTL 返回 webhook 事件去重记录的存活时长。
func (c ChatConfig) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.user", "root")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.name", "linebot")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)

	v.SetDefault("database.redis.enabled", false)
	v.SetDefault("database.redis.addr", "127.0.0.1:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.brokers", "127.0.0.1:9092")
	v.SetDefault("kafka.topic", "line-inbound-events")
	v.SetDefault("kafka.group_id", "linebot-relay")

	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.channel_access_token", "")
	v.SetDefault("line.api_base_url", "https://api.line.me")
	v.SetDefault("line.loading_seconds", 20)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "o4-mini")
	v.SetDefault("llm.generation.temperature", 0)
	v.SetDefault("llm.generation.top_p", 0)
	v.SetDefault("llm.generation.max_tokens", 0)

	v.SetDefault("chat.history_limit", 20)
	v.SetDefault("chat.default_language", "zh")
	v.SetDefault("chat.completion_timeout_seconds", 60)
	v.SetDefault("chat.dispatch", "inline")
	v.SetDefault("chat.locker", "local")
	v.SetDefault("chat.lock_ttl_seconds", 120)
	v.SetDefault("chat.dedupe_ttl_seconds", 600)
}

// 与原 .env 约定保持一致的环境变量名
var legacyEnv = map[string]string{
	"line.channel_secret":       "LINE_CHANNEL_SECRET",
	"line.channel_access_token": "LINE_CHANNEL_ACCESS_TOKEN",
	"llm.api_key":               "OPENAI_API_KEY",
	"database.mysql.host":       "MYSQL_HOST",
	"database.mysql.user":       "MYSQL_USER",
	"database.mysql.password":   "MYSQL_PASSWORD",
	"database.mysql.name":       "MYSQL_DB",
}

// Load 依次加载 .env、YAML 配置文件与环境变量。
// 配置文件不存在时仅使用默认值和环境变量。
func Load(configPath string) (Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "RELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}

	if cfg.Database.MySQL.DSN == "" {
		m := cfg.Database.MySQL
		cfg.Database.MySQL.DSN = fmt.Sprintf("%s:%s@tcp(%s:3306)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			m.User, m.Password, m.Host, m.Name)
	}
	cfg.Chat.Dispatch = strings.ToLower(strings.TrimSpace(cfg.Chat.Dispatch))
	cfg.Chat.Locker = strings.ToLower(strings.TrimSpace(cfg.Chat.Locker))
	return cfg, nil
}

// Validate 检查服务运行所必需的配置项。
func (c Config) Validate() error {
	if c.LINE.ChannelSecret == "" || c.LINE.ChannelAccessToken == "" {
		return errors.New("LINE credentials are not set")
	}
	if c.LLM.APIKey == "" {
		return errors.New("LLM API key is not set")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is not set")
	}
	switch c.Chat.Dispatch {
	case "inline", "kafka":
	default:
		return fmt.Errorf("unsupported chat.dispatch=%q", c.Chat.Dispatch)
	}
	switch c.Chat.Locker {
	case "local":
	case "redis":
		if !c.Database.Redis.Enabled {
			return errors.New("chat.locker=redis requires database.redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported chat.locker=%q", c.Chat.Locker)
	}
	return nil
}
