package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像里可能没有 zoneinfo

	"gopkg.in/yaml.v3"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis 配置（真值标注反馈流）
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

// MQTTConfig MQTT 配置（告警状态变更通知，默认禁用）
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`    // 如 "tcp://localhost:1883"
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// ClientConfig 调用告警服务的客户端配置
type ClientConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// Config heartguard-alerts 配置
type Config struct {
	HTTP struct {
		Addr         string `yaml:"addr"`
		MaxBodyBytes int64  `yaml:"max_body_bytes"`
	} `yaml:"http"`
	DBEnabled bool           `yaml:"db_enabled"`
	Database  DatabaseConfig `yaml:"database"`
	Redis     RedisConfig    `yaml:"redis"`
	MQTT      MQTTConfig     `yaml:"mqtt"`
	Log       struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Auth struct {
		// Tokens bearer token -> org id
		Tokens map[string]string `yaml:"tokens"`
	} `yaml:"auth"`
	Ingest struct {
		// Timezone legacy XML 时间戳的时区（IANA 名称）
		Timezone string `yaml:"timezone"`
	} `yaml:"ingest"`
	Client ClientConfig `yaml:"client"`
}

func defaults() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.MaxBodyBytes = 1 << 20

	// Default to true: if DB is unavailable the service falls back to in-memory repositories.
	cfg.DBEnabled = true
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "heartguard",
		SSLMode:  "disable",
		MaxConns: 20,
		MaxIdle:  5,
	}
	cfg.Redis = RedisConfig{Addr: "localhost:6379", Stream: "heartguard:ground-truth"}
	cfg.MQTT = MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "heartguard-alerts", QoS: 1}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.Auth.Tokens = map[string]string{}
	cfg.Ingest.Timezone = "UTC"
	cfg.Client = ClientConfig{BaseURL: "http://localhost:8080", Timeout: 10 * time.Second, RetryCount: 3}
	return cfg
}

// Load 加载配置：默认值 -> CONFIG_FILE（yaml，可选）-> 环境变量
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.MaxBodyBytes = int64(parseInt(getEnv("HTTP_MAX_BODY_BYTES", ""), int(cfg.HTTP.MaxBodyBytes)))

	cfg.DBEnabled = parseBool(getEnv("DB_ENABLED", ""), cfg.DBEnabled)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = parseInt(getEnv("DB_PORT", ""), cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("DB_NAME", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", ""), cfg.Database.MaxConns)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", ""), cfg.Database.MaxIdle)

	cfg.Redis.Enabled = parseBool(getEnv("REDIS_ENABLED", ""), cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", ""), cfg.Redis.DB)
	cfg.Redis.Stream = getEnv("REDIS_GROUND_TRUTH_STREAM", cfg.Redis.Stream)

	cfg.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", ""), cfg.MQTT.Enabled)
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", cfg.MQTT.Broker)
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTT.ClientID)
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", cfg.MQTT.Username)
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", cfg.MQTT.Password)
	cfg.MQTT.QoS = parseInt(getEnv("MQTT_QOS", ""), cfg.MQTT.QoS)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	// AUTH_TOKENS="token1:org-1,token2:org-2"
	if raw := os.Getenv("AUTH_TOKENS"); raw != "" {
		tokens, err := parseTokens(raw)
		if err != nil {
			return nil, err
		}
		cfg.Auth.Tokens = tokens
	}

	cfg.Ingest.Timezone = getEnv("INGEST_TIMEZONE", cfg.Ingest.Timezone)
	if _, err := cfg.IngestLocation(); err != nil {
		return nil, err
	}

	cfg.Client.BaseURL = getEnv("CLIENT_BASE_URL", cfg.Client.BaseURL)
	if v := os.Getenv("CLIENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLIENT_TIMEOUT %q: %w", v, err)
		}
		cfg.Client.Timeout = d
	}
	cfg.Client.RetryCount = parseInt(getEnv("CLIENT_RETRY_COUNT", ""), cfg.Client.RetryCount)

	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return nil, fmt.Errorf("invalid MQTT qos %d", cfg.MQTT.QoS)
	}
	return cfg, nil
}

// IngestLocation 解析 legacy XML 时间戳所用时区
func (c *Config) IngestLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Ingest.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest timezone %q: %w", c.Ingest.Timezone, err)
	}
	return loc, nil
}

func parseTokens(raw string) (map[string]string, error) {
	tokens := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, org, ok := strings.Cut(pair, ":")
		if !ok || token == "" || org == "" {
			return nil, fmt.Errorf("invalid AUTH_TOKENS entry %q, want token:org", pair)
		}
		tokens[token] = org
	}
	return tokens, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
