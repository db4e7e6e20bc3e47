package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 10000
	defaultCodec          = "protobuf"
	defaultConnPerMinute  = 60
	defaultMsgPerSecond   = 20
	defaultRedisAddr      = "localhost:6379"
	defaultStorageDriver  = "redis"
	defaultTokenTTL       = 86400
	defaultTurnTimeout    = 30
	defaultGrabTimeout    = 15
	defaultBaseCoin       = 10
	defaultInitialCoin    = 1000
	defaultShutdownTime   = 30
	defaultLogLevel       = "info"

	// envPrefix 环境变量前缀
	envPrefix = "DDZ_"
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Game     GameConfig     `yaml:"game"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxConnections int      `yaml:"max_connections"`
	Codec          string   `yaml:"codec"`           // protobuf | json
	AllowedOrigins []string `yaml:"allowed_origins"` // 为空或包含 * 时放行所有来源

	ConnPerMinute     int `yaml:"conn_per_minute"`     // 单 IP 每分钟建立连接数上限
	MessagesPerSecond int `yaml:"messages_per_second"` // 单连接每秒消息数上限
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig Postgres 配置
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig 账号存储后端
type StorageConfig struct {
	Driver string `yaml:"driver"` // redis | postgres
}

// AuthConfig 重连令牌配置
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // 秒
}

// GameConfig 游戏配置
type GameConfig struct {
	TurnTimeout     int   `yaml:"turn_timeout"`   // 出牌超时（秒）
	GrabTimeout     int   `yaml:"grab_timeout"`   // 抢地主超时（秒）
	BaseCoin        int64 `yaml:"base_coin"`      // 底分
	InitialCoin     int64 `yaml:"initial_coin"`   // 新用户初始金币
	ValidatePlays   bool  `yaml:"validate_plays"` // 服务端校验出牌
	RedealOnAllPass *bool `yaml:"redeal_on_all_pass"`
	ShutdownTimeout int   `yaml:"shutdown_timeout"` // 优雅关闭等待（秒）
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// TurnTimeoutDuration 返回出牌超时时长
func (c *GameConfig) TurnTimeoutDuration() time.Duration {
	return time.Duration(c.TurnTimeout) * time.Second
}

// GrabTimeoutDuration 返回抢地主超时时长
func (c *GameConfig) GrabTimeoutDuration() time.Duration {
	return time.Duration(c.GrabTimeout) * time.Second
}

// ShutdownTimeoutDuration 返回优雅关闭等待时长
func (c *GameConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// Redeal 无人抢地主时是否重新发牌，未配置时为 true
func (c *GameConfig) Redeal() bool {
	return c.RedealOnAllPass == nil || *c.RedealOnAllPass
}

// TokenTTLDuration 返回令牌有效期
func (c *AuthConfig) TokenTTLDuration() time.Duration {
	return time.Duration(c.TokenTTL) * time.Second
}

// Load 加载配置文件，随后叠加环境变量
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置（同样叠加环境变量）
func Default() *Config {
	var cfg Config
	cfg.ApplyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}
	if c.Server.Codec == "" {
		c.Server.Codec = defaultCodec
	}
	if c.Server.ConnPerMinute == 0 {
		c.Server.ConnPerMinute = defaultConnPerMinute
	}
	if c.Server.MessagesPerSecond == 0 {
		c.Server.MessagesPerSecond = defaultMsgPerSecond
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaultStorageDriver
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Game.TurnTimeout == 0 {
		c.Game.TurnTimeout = defaultTurnTimeout
	}
	if c.Game.GrabTimeout == 0 {
		c.Game.GrabTimeout = defaultGrabTimeout
	}
	if c.Game.BaseCoin == 0 {
		c.Game.BaseCoin = defaultBaseCoin
	}
	if c.Game.InitialCoin == 0 {
		c.Game.InitialCoin = defaultInitialCoin
	}
	if c.Game.ShutdownTimeout == 0 {
		c.Game.ShutdownTimeout = defaultShutdownTime
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}

// LoadDotEnv 读取 .env 文件到进程环境，已存在的变量不会被覆盖；文件不存在不算错误
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv 使用 DDZ_* 环境变量覆盖配置
func (c *Config) ApplyEnv() {
	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")
	setInt(&c.Server.MaxConnections, "SERVER_MAX_CONNECTIONS")
	setString(&c.Server.Codec, "SERVER_CODEC")
	setInt(&c.Server.ConnPerMinute, "SERVER_CONN_PER_MINUTE")
	setInt(&c.Server.MessagesPerSecond, "SERVER_MESSAGES_PER_SECOND")
	if v, ok := lookup("SERVER_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setString(&c.Postgres.DSN, "POSTGRES_DSN")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")

	setString(&c.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setInt(&c.Auth.TokenTTL, "AUTH_TOKEN_TTL")

	setInt(&c.Game.TurnTimeout, "GAME_TURN_TIMEOUT")
	setInt(&c.Game.GrabTimeout, "GAME_GRAB_TIMEOUT")
	setInt64(&c.Game.BaseCoin, "GAME_BASE_COIN")
	setInt64(&c.Game.InitialCoin, "GAME_INITIAL_COIN")
	setBool(&c.Game.ValidatePlays, "GAME_VALIDATE_PLAYS")
	if v, ok := lookup("GAME_REDEAL_ON_ALL_PASS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Game.RedealOnAllPass = &b
		}
	}
	setInt(&c.Game.ShutdownTimeout, "GAME_SHUTDOWN_TIMEOUT")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.File, "LOG_FILE")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
