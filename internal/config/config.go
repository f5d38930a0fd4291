// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Wechat   WechatConfig   `mapstructure:"wechat"`
	CogVideo CogVideoConfig `mapstructure:"cogvideo"`
	Bot      BotConfig      `mapstructure:"bot"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

// ServerConfig 存储 HTTP 服务器相关的配置。
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
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// WechatConfig 存储微信网关相关的配置。
// 网关负责真正的收发消息，本服务通过 HTTP 发送、通过 WebSocket 接收事件。
type WechatConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WSURL   string `mapstructure:"ws_url"`
	Token   string `mapstructure:"token"`
}

// CogVideoConfig 存储智谱 CogVideoX 视频生成服务的配置。
type CogVideoConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	WithAudio bool   `mapstructure:"with_audio"`
	FPS       int    `mapstructure:"fps"`
}

// BotConfig 存储机器人命令与会话行为相关的配置。
type BotConfig struct {
	GenerateCommands      []string `mapstructure:"generate_commands"`
	ImageGenerateCommands []string `mapstructure:"image_generate_commands"`
	QueryCommands         []string `mapstructure:"query_commands"`
	ExitCommands          []string `mapstructure:"exit_commands"`

	EnablePoints bool     `mapstructure:"enable_points"`
	GenerateCost int64    `mapstructure:"generate_cost"`
	Admins       []string `mapstructure:"admins"`

	DefaultSize  string `mapstructure:"default_size"`
	DefaultRatio string `mapstructure:"default_ratio"`

	SessionExpireSeconds int `mapstructure:"session_expire_seconds"`
	PollIntervalSeconds  int `mapstructure:"poll_interval_seconds"`
	PollMaxAttempts      int `mapstructure:"poll_max_attempts"`
	VideoTimeoutSeconds  int `mapstructure:"video_timeout_seconds"`
	CoverTimeoutSeconds  int `mapstructure:"cover_timeout_seconds"`
}

// MinIOConfig 存储 MinIO 对象存储的配置（用于归档已送达的视频）。
type MinIOConfig struct {
	Enable          bool   `mapstructure:"enable"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置（用于下发生成结果事件）。
type KafkaConfig struct {
	Enable  bool   `mapstructure:"enable"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// JWTConfig 存储管理接口 JWT 相关的配置。
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// AdminConfig 存储管理接口登录凭据。密码以 bcrypt 哈希形式存放。
type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

// setDefaults 注册与原插件行为一致的默认值，缺省配置也能跑通核心流程。
func setDefaults() {
	viper.SetDefault("cogvideo.base_url", "https://open.bigmodel.cn/api/paas/v4")
	viper.SetDefault("cogvideo.model", "cogvideox-2")
	viper.SetDefault("cogvideo.with_audio", true)
	viper.SetDefault("cogvideo.fps", 30)

	viper.SetDefault("bot.generate_commands", []string{"#生成视频"})
	viper.SetDefault("bot.image_generate_commands", []string{"#图生视频"})
	viper.SetDefault("bot.query_commands", []string{"#查询视频"})
	viper.SetDefault("bot.exit_commands", []string{"#结束对话", "#退出对话"})
	viper.SetDefault("bot.enable_points", true)
	viper.SetDefault("bot.generate_cost", 20)
	viper.SetDefault("bot.default_size", "1920x1080")
	viper.SetDefault("bot.default_ratio", "16:9")
	viper.SetDefault("bot.session_expire_seconds", 3600)
	viper.SetDefault("bot.poll_interval_seconds", 10)
	viper.SetDefault("bot.poll_max_attempts", 60)
	viper.SetDefault("bot.video_timeout_seconds", 30)
	viper.SetDefault("bot.cover_timeout_seconds", 10)

	viper.SetDefault("jwt.expire_hours", 12)
}
