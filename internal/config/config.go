package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CORSConfig holds configuration for CORS on the relay REST surface.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for the relay history cache.
type RedisConfig struct {
	Enabled    bool          `mapstructure:"ENABLED"`
	Addr       string        `mapstructure:"ADDR"`
	Password   string        `mapstructure:"PASSWORD"`
	DB         int           `mapstructure:"DB"`
	HistoryTTL time.Duration `mapstructure:"HISTORY_TTL"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string          `mapstructure:"APP_NAME"`
	AppVersion string          `mapstructure:"APP_VERSION"`
	LogLevel   string          `mapstructure:"LOG_LEVEL"`
	LogPretty  bool            `mapstructure:"LOG_PRETTY"`
	Client     ClientConfig    `mapstructure:"CLIENT"`
	Server     ServerConfig    `mapstructure:"SERVER"`
	WebSocket  WebSocketConfig `mapstructure:"WEBSOCKET"`
	Kafka      KafkaConfig     `mapstructure:"KAFKA"`
	Database   DatabaseConfig  `mapstructure:"DATABASE"`
	Auth       AuthConfig      `mapstructure:"AUTH"`
	Redis      RedisConfig     `mapstructure:"REDIS"`
}

// ClientConfig holds configuration for the chat client core.
type ClientConfig struct {
	Scheme       string        `mapstructure:"SCHEME"` // "wss" or "ws"
	Host         string        `mapstructure:"HOST"`
	APIBaseURL   string        `mapstructure:"API_BASE_URL"`
	Token        string        `mapstructure:"TOKEN"`
	PingPeriod   time.Duration `mapstructure:"PING_PERIOD"`
	TypingExpiry time.Duration `mapstructure:"TYPING_EXPIRY"`
	DialTimeout  time.Duration `mapstructure:"DIAL_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	HTTPTimeout  time.Duration `mapstructure:"HTTP_TIMEOUT"`
	User         UserConfig    `mapstructure:"USER"`
}

// UserConfig is the identity of the local user as known to the client.
type UserConfig struct {
	ID        string `mapstructure:"ID"`
	Name      string `mapstructure:"NAME"`
	Number    string `mapstructure:"NUMBER"`
	Thumbnail string `mapstructure:"THUMBNAIL"`
	Region    string `mapstructure:"REGION"` // default region for parsing Number, e.g. "US"
}

// ServerConfig holds configuration for the relay HTTP server.
type ServerConfig struct {
	Host          string        `mapstructure:"HOST"`
	Port          string        `mapstructure:"PORT"`
	WebSocketPath string        `mapstructure:"WEBSOCKET_PATH"`
	ReadTimeout   time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `mapstructure:"WRITE_TIMEOUT"`
	CORS          CORSConfig    `mapstructure:"CORS"`
}

// KafkaConfig holds configuration for cross-instance room fan-out.
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"ENABLED"`
	Brokers       []string `mapstructure:"BROKERS"`
	ClientID      string   `mapstructure:"CLIENT_ID"`
	RoomTopic     string   `mapstructure:"ROOM_TOPIC"`     // room frames produced by every relay instance
	ConsumerGroup string   `mapstructure:"CONSUMER_GROUP"` // must be unique per instance so each hub sees every frame
	Protocol      string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"` // "postgres" or "sqlite"
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
	Path     string `mapstructure:"PATH"` // sqlite file, ":memory:" allowed
	LogSQL   bool   `mapstructure:"LOG_SQL"`
}

// AuthConfig holds configuration for bearer tokens.
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
	Required     bool          `mapstructure:"REQUIRED"`
}

// WebSocketConfig holds relay-side configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// WebSocketURL returns the base room endpoint, without query parameters.
func (c ClientConfig) WebSocketURL() string {
	return c.Scheme + "://" + c.Host + "/websockets/room"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "meandu")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)

	// Client Defaults
	v.SetDefault("CLIENT.SCHEME", "wss")
	v.SetDefault("CLIENT.HOST", "localhost:8080")
	v.SetDefault("CLIENT.API_BASE_URL", "https://localhost:8080")
	v.SetDefault("CLIENT.TOKEN", "")
	v.SetDefault("CLIENT.PING_PERIOD", 40*time.Second)
	v.SetDefault("CLIENT.TYPING_EXPIRY", 15*time.Second)
	v.SetDefault("CLIENT.DIAL_TIMEOUT", 10*time.Second)
	v.SetDefault("CLIENT.WRITE_TIMEOUT", 10*time.Second)
	v.SetDefault("CLIENT.HTTP_TIMEOUT", 15*time.Second)
	v.SetDefault("CLIENT.USER.ID", "")
	v.SetDefault("CLIENT.USER.NAME", "")
	v.SetDefault("CLIENT.USER.NUMBER", "")
	v.SetDefault("CLIENT.USER.THUMBNAIL", "none")
	v.SetDefault("CLIENT.USER.REGION", "US")

	// Relay server Defaults
	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.WEBSOCKET_PATH", "/websockets/room")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.CORS.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("SERVER.CORS.ALLOW_CREDENTIALS", false)
	v.SetDefault("SERVER.CORS.MAX_AGE", 300)

	// Kafka Defaults (off unless several relay instances share rooms)
	v.SetDefault("KAFKA.ENABLED", false)
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "meandu-relay")
	v.SetDefault("KAFKA.ROOM_TOPIC", "meandu-room-frames")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "meandu-relay")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	// Database Defaults
	v.SetDefault("DATABASE.TYPE", "sqlite")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "meandu")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.PATH", "meandu.db")
	v.SetDefault("DATABASE.LOG_SQL", false)

	// Auth Defaults
	v.SetDefault("AUTH.JWT_SECRET_KEY", "")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)
	v.SetDefault("AUTH.REQUIRED", false)

	// Redis Defaults
	v.SetDefault("REDIS.ENABLED", false)
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.HISTORY_TTL", 10*time.Minute)

	// WebSocket Defaults
	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 90)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54)
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 16*1024)
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if any, is loaded into the
// environment first; variables already set are not overridden.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// CLIENT_USER_ID overrides Client.User.ID
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
