package bridge

import (
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "taskboard:realtime:"

// RedisConfig holds connection settings for the cross-instance relay.
// URL, when set, takes precedence over Addr, Password and DB.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Prefix   string // channel namespace shared by all instances of one deployment
}

// DefaultRedisConfig targets a local Redis.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: defaultPrefix,
	}
}

// RedisConfigFromEnv reads REDIS_URL, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
// and REDIS_REALTIME_PREFIX over the defaults.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.URL = os.Getenv("REDIS_URL")

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.DB = db
	}
	if prefix := os.Getenv("REDIS_REALTIME_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	return cfg
}

// Channel is the pub/sub channel events travel on.
func (c *RedisConfig) Channel() string {
	prefix := c.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return prefix + "events"
}

// Options builds go-redis client options.
func (c *RedisConfig) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}, nil
}
