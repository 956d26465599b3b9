package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds configuration sourced from config/config.json, an optional
// .env file and the environment. Secrets have no defaults in code.
type AppConfig struct {
	AppPort        string
	AllowedOrigins []string
	StaticDir      string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis list cache; disabled unless RedisEnabled is set
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Comments
	CommentsPageLimit    int
	CommentsPollInterval time.Duration
	CommentsCacheTTL     time.Duration
	ServerURL            string
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// envBindings maps config keys onto the environment variables that override them.
var envBindings = map[string]string{
	"app.port":               "APP_PORT",
	"app.static_dir":         "STATIC_DIR",
	"gin.mode":               "GIN_MODE",
	"gin.log_path":           "GIN_PATH",
	"database.uri":           "DATABASE_URI",
	"database.host":          "DB_HOST",
	"database.port":          "DB_PORT",
	"database.user":          "DB_USER",
	"database.password":      "DB_PASSWORD",
	"database.name":          "DB_NAME",
	"redis.enabled":          "REDIS_ENABLED",
	"redis.host":             "REDIS_HOST",
	"redis.port":             "REDIS_PORT",
	"redis.db":               "REDIS_DB",
	"redis.password":         "REDIS_PASSWORD",
	"log.level":              "LOG_LEVEL",
	"log.path":               "LOG_PATH",
	"log.max_size_mb":        "LOG_MAX_SIZE_MB",
	"log.max_backups":        "LOG_MAX_BACKUPS",
	"log.max_age_days":       "LOG_MAX_AGE_DAYS",
	"log.compress":           "LOG_COMPRESS",
	"comments.page_limit":    "COMMENTS_PAGE_LIMIT",
	"comments.poll_interval": "COMMENTS_POLL_INTERVAL",
	"comments.cache_ttl":     "COMMENTS_CACHE_TTL",
	"comments.server_url":    "COMMENTS_SERVER_URL",
}

// Load reads configuration once and caches it. path may be empty, in which
// case config/config.json and ./config.json are tried.
func Load(path string) (AppConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg, nil
	}
	c, err := Read(path)
	if err != nil {
		return AppConfig{}, err
	}
	cfg = c
	loaded = true
	return cfg, nil
}

// Get returns the cached configuration, loading defaults if Load was never called.
func Get() AppConfig {
	mu.Lock()
	ok := loaded
	mu.Unlock()
	if !ok {
		c, _ := Load("")
		return c
	}
	return cfg
}

// Read builds a fresh configuration without touching the cache.
// Precedence: defaults -> config file -> .env -> environment variables.
func Read(path string) (AppConfig, error) {
	if err := loadDotEnv(".env"); err != nil {
		return AppConfig{}, err
	}

	v := viper.New()
	applyDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return AppConfig{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return AppConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	c := AppConfig{
		AppPort:              v.GetString("app.port"),
		AllowedOrigins:       v.GetStringSlice("app.allowed_origins"),
		StaticDir:            v.GetString("app.static_dir"),
		GinMode:              v.GetString("gin.mode"),
		GinPath:              v.GetString("gin.log_path"),
		DatabaseURI:          v.GetString("database.uri"),
		DBHost:               v.GetString("database.host"),
		DBPort:               v.GetString("database.port"),
		DBUser:               v.GetString("database.user"),
		DBPassword:           v.GetString("database.password"),
		DBName:               v.GetString("database.name"),
		RedisEnabled:         v.GetBool("redis.enabled"),
		RedisHost:            v.GetString("redis.host"),
		RedisPort:            v.GetInt("redis.port"),
		RedisDB:              v.GetInt("redis.db"),
		RedisPassword:        v.GetString("redis.password"),
		LogLevel:             v.GetString("log.level"),
		LogPath:              v.GetString("log.path"),
		LogMaxSizeMB:         v.GetInt("log.max_size_mb"),
		LogMaxBackups:        v.GetInt("log.max_backups"),
		LogMaxAgeDays:        v.GetInt("log.max_age_days"),
		LogCompress:          v.GetBool("log.compress"),
		CommentsPageLimit:    v.GetInt("comments.page_limit"),
		CommentsPollInterval: v.GetDuration("comments.poll_interval"),
		CommentsCacheTTL:     v.GetDuration("comments.cache_ttl"),
		ServerURL:            v.GetString("comments.server_url"),
	}
	// Comma separated list; viper would split on whitespace.
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	return c, nil
}

// applyDefaults sets sane defaults for every key.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.static_dir", "./static")
	v.SetDefault("gin.mode", "release")
	v.SetDefault("gin.log_path", "logs/go_gin.log")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "portfolio")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("comments.page_limit", 20)
	v.SetDefault("comments.poll_interval", 5*time.Second)
	v.SetDefault("comments.cache_ttl", 10*time.Second)
	v.SetDefault("comments.server_url", "http://localhost:8080")
}

// loadDotEnv loads KEY=VALUE pairs from path when the file exists. Variables
// already present in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
