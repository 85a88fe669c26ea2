// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is every setting the server and the historian read from the environment.
type Config struct {
	Port            string
	TickInterval    time.Duration
	PinyinTablePath string
	UsersPath       string
	TokenExpiry     time.Duration

	// raw ed25519 keys; when either is empty a key pair is generated at startup
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string

	RedisAddr string
	RedisDB   int
	QueueName string

	BatchSize  int
	FlushDelay time.Duration

	PostgresUser     string
	PostgresPassword string
	PGHost           string
	PGPort           string
	PGDatabase       string

	// inbound websocket messages per second and burst per connection
	MessageRate  float64
	MessageBurst int
}

// Load reads the environment. Unset or malformed values fall back to defaults.
func Load() Config {
	return Config{
		Port:            getEnv("PORT", "8080"),
		TickInterval:    time.Duration(getEnvInt("TICK_INTERVAL_MS", 100)) * time.Millisecond,
		PinyinTablePath: getEnv("PINYIN_TABLE_PATH", "data/pinyin.csv"),
		UsersPath:       getEnv("USERS_PATH", "data/users.json"),
		TokenExpiry:     time.Duration(getEnvInt("TOKEN_EXPIRE_TIME", 86400)) * time.Second,

		JWTPrivateKeyPath: os.Getenv("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  os.Getenv("JWT_PUBLIC_KEY_PATH"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvInt("REDIS_DB", 0),
		QueueName: getEnv("HISTORIAN_QUEUE_NAME", "wordrelay_games"),

		BatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PGHost:           getEnv("PG_HOST", "localhost"),
		PGPort:           getEnv("PG_PORT", "5432"),
		PGDatabase:       getEnv("PG_DATABASE", "wordrelay"),

		MessageRate:  getEnvFloat("MESSAGE_RATE", 10),
		MessageBurst: getEnvInt("MESSAGE_BURST", 10),
	}
}

// PostgresURL builds the pgx connection string.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
