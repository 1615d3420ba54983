package config

import (
	"os"
	"strconv"

	commoncfg "github.com/ericalderman-safeloop/safeloop-care/internal/common/config"
)

// Config safeloop-care（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database commoncfg.DatabaseConfig
	Redis    commoncfg.RedisConfig
	Log      struct {
		Level  string
		Format string
	}
	Auth AuthConfig
	Push PushConfig
	MQTT MQTTConfig
}

// AuthConfig 联合登录配置
// 两个外部身份提供方；通过各自 tokeninfo 端点校验 ID token
type AuthConfig struct {
	GoogleTokenInfoURL string // Google tokeninfo 端点
	AppleTokenInfoURL  string // Apple tokeninfo 端点
	SessionTTLHours    int    // 会话有效期（小时，默认 720 = 30 天）
}

// PushConfig 推送网关配置
type PushConfig struct {
	Enabled    bool   // 是否启用推送分发（默认 false）
	GatewayURL string // 推送网关地址
	APIKey     string // 网关 API Key
}

// MQTTConfig MQTT 配置（设备上报通道）
type MQTTConfig struct {
	Enabled     bool   // 是否启用设备上报消费（默认 false）
	Broker      string // MQTT Broker 地址（如 "tcp://localhost:1883"）
	ClientID    string // 客户端 ID
	Username    string // 用户名（可选）
	Password    string // 密码（可选）
	StatusTopic string // 设备状态主题（如 "safeloop/device/+/status"）
	AlertTopic  string // 告警主题（如 "safeloop/device/+/alert"）
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "safeloop")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// 联合登录配置
	cfg.Auth.GoogleTokenInfoURL = getEnv("AUTH_GOOGLE_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo")
	cfg.Auth.AppleTokenInfoURL = getEnv("AUTH_APPLE_TOKENINFO_URL", "https://appleid.apple.com/auth/tokeninfo")
	cfg.Auth.SessionTTLHours = parseInt(getEnv("AUTH_SESSION_TTL_HOURS", "720"), 720)

	// 推送网关配置（默认禁用）
	cfg.Push.Enabled = getEnv("PUSH_ENABLED", "false") == "true"
	cfg.Push.GatewayURL = getEnv("PUSH_GATEWAY_URL", "")
	cfg.Push.APIKey = getEnv("PUSH_API_KEY", "")

	// MQTT 配置（设备上报通道，默认禁用）
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "safeloop-care")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.StatusTopic = getEnv("MQTT_STATUS_TOPIC", "safeloop/device/+/status")
	cfg.MQTT.AlertTopic = getEnv("MQTT_ALERT_TOPIC", "safeloop/device/+/alert")

	return cfg
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
