package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	App      AppSection      `mapstructure:"app"`
	Database DatabaseSection `mapstructure:"database"`
	Redis    RedisSection    `mapstructure:"redis"`
	SMTP     SMTPSection     `mapstructure:"smtp"`
	Log      LogSection      `mapstructure:"log"`
	Blog     BlogSection     `mapstructure:"blog"`
	Search   SearchSection   `mapstructure:"search"`
}

type AppSection struct {
	Port               string   `mapstructure:"port"`
	JWTSecret          string   `mapstructure:"jwt_secret"`
	SiteURL            string   `mapstructure:"site_url"`
	GinMode            string   `mapstructure:"gin_mode"`
	GinPath            string   `mapstructure:"gin_path"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	// Usernames treated as staff even when the user row is not flagged.
	AdminUsernames []string `mapstructure:"admin_usernames"`
}

type DatabaseSection struct {
	Driver      string `mapstructure:"driver"` // mysql, postgres or sqlite
	URI         string `mapstructure:"uri"`
	Host        string `mapstructure:"host"`
	Port        string `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisSection struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

type SMTPSection struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
	TLS      bool   `mapstructure:"tls"`
}

type LogSection struct {
	Level      string `mapstructure:"level"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type BlogSection struct {
	Title            string `mapstructure:"title"`
	Description      string `mapstructure:"description"`
	PostsPerPage     int    `mapstructure:"posts_per_page"`
	SimilarPosts     int    `mapstructure:"similar_posts"`
	FeedSize         int    `mapstructure:"feed_size"`
	ModerateComments bool   `mapstructure:"moderate_comments"`
	ShareCaptcha     bool   `mapstructure:"share_captcha"`
	TimeZone         string `mapstructure:"time_zone"`
}

// Location resolves TimeZone, falling back to UTC for unknown zones.
func (b BlogSection) Location() *time.Location {
	if b.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type SearchSection struct {
	// Empty path keeps the index in memory.
	IndexPath  string `mapstructure:"index_path"`
	MaxResults int    `mapstructure:"max_results"`
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// envBindings maps config keys onto the environment variables that override them.
var envBindings = map[string]string{
	"app.port":                  "APP_PORT",
	"app.jwt_secret":            "JWT_SECRET",
	"app.site_url":              "SITE_URL",
	"app.gin_mode":              "GIN_MODE",
	"app.gin_path":              "GIN_PATH",
	"app.rate_limit_per_minute": "RATE_LIMIT_PER_MINUTE",
	"app.allowed_origins":       "CORS_ALLOWED_ORIGINS",
	"app.admin_usernames":       "ADMIN_USERNAMES",
	"database.driver":           "DB_DRIVER",
	"database.uri":              "DATABASE_URI",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.name":             "DB_NAME",
	"database.auto_migrate":     "DB_AUTO_MIGRATE",
	"redis.host":                "REDIS_HOST",
	"redis.port":                "REDIS_PORT",
	"redis.db":                  "REDIS_DB",
	"redis.password":            "REDIS_PASSWORD",
	"smtp.host":                 "SMTP_HOST",
	"smtp.port":                 "SMTP_PORT",
	"smtp.username":             "SMTP_USERNAME",
	"smtp.password":             "SMTP_PASSWORD",
	"smtp.from":                 "SMTP_FROM",
	"smtp.from_name":            "SMTP_FROM_NAME",
	"smtp.tls":                  "SMTP_TLS",
	"log.level":                 "LOG_LEVEL",
	"log.path":                  "LOG_PATH",
	"log.max_size_mb":           "LOG_MAX_SIZE_MB",
	"log.max_backups":           "LOG_MAX_BACKUPS",
	"log.max_age_days":          "LOG_MAX_AGE_DAYS",
	"log.compress":              "LOG_COMPRESS",
	"blog.title":                "BLOG_TITLE",
	"blog.posts_per_page":       "BLOG_POSTS_PER_PAGE",
	"blog.similar_posts":        "BLOG_SIMILAR_POSTS",
	"blog.feed_size":            "BLOG_FEED_SIZE",
	"blog.moderate_comments":    "BLOG_MODERATE_COMMENTS",
	"blog.share_captcha":        "BLOG_SHARE_CAPTCHA",
	"blog.time_zone":            "BLOG_TIME_ZONE",
	"search.index_path":         "SEARCH_INDEX_PATH",
	"search.max_results":        "SEARCH_MAX_RESULTS",
}

// Load reads configuration once during boot.
// Precedence: defaults -> config file (config/config.json unless path is given) -> environment variables.
func Load(path string) (AppConfig, error) {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg, nil
	}

	// .env is optional; real environment variables always win over it.
	_ = godotenv.Load()

	v := newViper()
	if path == "" {
		path = filepath.Join("config", "config.json")
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var out AppConfig
	if err := v.Unmarshal(&out); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if out.App.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set in the config file or environment")
	}

	cfg = out
	loaded = true
	return cfg, nil
}

// Get returns the cached configuration, or the defaults when Load has not run.
func Get() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	if !loaded {
		return Default()
	}
	return cfg
}

// Set replaces the cached configuration. Used by the CLI for flag overrides and by tests.
func Set(c AppConfig) {
	mu.Lock()
	cfg = c
	loaded = true
	mu.Unlock()
}

// Default returns the configuration built from defaults alone.
func Default() AppConfig {
	var out AppConfig
	_ = newViper().Unmarshal(&out)
	return out
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	applyDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// applyDefaults sets sane defaults for every key.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.gin_mode", "release")
	v.SetDefault("app.gin_path", "logs/go_gin.log")
	v.SetDefault("app.rate_limit_per_minute", 60)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("app.admin_usernames", []string{})

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.name", "myblog")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "admin@myblog.com")
	v.SetDefault("smtp.from_name", "My Blog")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("blog.title", "My Blog")
	v.SetDefault("blog.description", "New posts of my blog.")
	v.SetDefault("blog.posts_per_page", 3)
	v.SetDefault("blog.similar_posts", 4)
	v.SetDefault("blog.feed_size", 5)
	v.SetDefault("blog.moderate_comments", true)
	v.SetDefault("blog.time_zone", "UTC")

	v.SetDefault("search.index_path", "data/posts.bleve")
	v.SetDefault("search.max_results", 100)
}
