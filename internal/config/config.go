package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Instance      InstanceConfig      `mapstructure:"instance"`
	Channel       ChannelConfig       `mapstructure:"channel"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	WebSocket     WebSocketConfig     `mapstructure:"websocket"`
	Log           LogConfig           `mapstructure:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Leader        LeaderConfig        `mapstructure:"leader"`
	Session       SessionConfig       `mapstructure:"session"`
	API           APIConfig           `mapstructure:"api"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Host           string   `mapstructure:"host"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// ChannelConfig controls cross-instance event mirroring. With Enabled false
// every bus delivers locally only.
type ChannelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
}

type NotificationsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type WebSocketConfig struct {
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type LeaderConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// APIConfig holds the credential backend producers present to publish events.
// Left empty, the publish route refuses every request.
type APIConfig struct {
	ServiceToken string `mapstructure:"service_token"`
}

var envBindings = map[string]string{
	"api.service_token":             "API_SERVICE_TOKEN",
	"server.port":                   "SERVER_PORT",
	"server.host":                   "SERVER_HOST",
	"server.allowed_origins":        "SERVER_ALLOWED_ORIGINS",
	"redis.address":                 "REDIS_ADDRESS",
	"redis.password":                "REDIS_PASSWORD",
	"redis.db":                      "REDIS_DB",
	"mysql.dsn":                     "MYSQL_DSN",
	"mysql.max_open_conns":          "MYSQL_MAX_OPEN_CONNS",
	"mysql.max_idle_conns":          "MYSQL_MAX_IDLE_CONNS",
	"mysql.conn_max_lifetime":       "MYSQL_CONN_MAX_LIFETIME",
	"instance.id":                   "INSTANCE_ID",
	"channel.enabled":               "CHANNEL_ENABLED",
	"channel.name":                  "CHANNEL_NAME",
	"notifications.base_url":        "NOTIFICATIONS_BASE_URL",
	"notifications.poll_interval":   "NOTIFICATIONS_POLL_INTERVAL",
	"notifications.request_timeout": "NOTIFICATIONS_REQUEST_TIMEOUT",
	"websocket.messages_per_second": "WEBSOCKET_MESSAGES_PER_SECOND",
	"websocket.burst":               "WEBSOCKET_BURST",
	"log.level":                     "LOG_LEVEL",
	"metrics.namespace":             "METRICS_NAMESPACE",
	"leader.key":                    "LEADER_KEY",
	"leader.ttl":                    "LEADER_TTL",
	"session.ttl":                   "SESSION_TTL",
}

const (
	GatewayService      = "gateway"
	NotificationService = "notification-service"
)

// defaultPorts keeps the services apart when run side by side with defaults.
var defaultPorts = map[string]int{
	GatewayService:      8080,
	NotificationService: 8081,
}

func setDefaults(v *viper.Viper, service string) {
	port, ok := defaultPorts[service]
	if !ok {
		port = defaultPorts[GatewayService]
	}
	v.SetDefault("server.port", port)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "fanzone_user:fanzone_pass@tcp(localhost:3306)/fanzone_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("instance.id", service+"-1")
	v.SetDefault("channel.enabled", true)
	v.SetDefault("channel.name", "fanzone_events")
	v.SetDefault("notifications.base_url", fmt.Sprintf("http://localhost:%d", defaultPorts[NotificationService]))
	v.SetDefault("notifications.poll_interval", 30*time.Second)
	v.SetDefault("notifications.request_timeout", 10*time.Second)
	v.SetDefault("websocket.messages_per_second", 5.0)
	v.SetDefault("websocket.burst", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.namespace", "fanzone")
	v.SetDefault("leader.key", "fanzone:notifier_leader")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("session.ttl", 24*time.Hour)
}

// Load reads configuration for the named service from defaults, an optional
// config file, a .env file and the environment, in increasing precedence.
func Load(service string) (*Config, error) {
	// .env is optional; real environment variables still win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fanzone/")

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(service, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)
	v.SetConfigFile(configPath)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Channel.Enabled && c.Channel.Name == "" {
		return errors.New("channel.name must be set when the channel is enabled")
	}
	if c.Notifications.PollInterval < time.Second {
		return fmt.Errorf("notifications.poll_interval must be at least 1s, got %s", c.Notifications.PollInterval)
	}
	if c.Leader.TTL < 3*time.Second {
		return fmt.Errorf("leader.ttl must be at least 3s, got %s", c.Leader.TTL)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Channel: %s (enabled=%t), Notifications: %s every %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Channel.Name,
		c.Channel.Enabled,
		c.Notifications.BaseURL,
		c.Notifications.PollInterval,
		c.Instance.ID,
	)
}
