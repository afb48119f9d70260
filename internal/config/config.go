package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLitePath = "./booktracker.db"
	DefaultTasksPath  = "./booktracker-tasks.db"
)

type (
	Config struct {
		HTTP
		Database
		OpenLibrary
		Tasks
		Global
	}

	HTTP struct {
		Addr           string
		AllowedOrigins []string
		ReadTimeout    time.Duration
		WriteTimeout   time.Duration
	}
	Database struct {
		Driver          string
		URL             string // DSN for postgres, file path for sqlite
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
		LogLevel        string
		AutoMigrate     bool
	}
	OpenLibrary struct {
		BaseURL   string
		CoversURL string
		Timeout   time.Duration
	}
	Tasks struct {
		Enabled         bool
		DBPath          string
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
		EnrichSchedule  string // cron format; "off" disables the scheduler
	}
	Global struct {
		ShutdownTimeout time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("cors_allowed_origins", "http://localhost:8081,exp://localhost:19000,http://localhost:3000")
	v.SetDefault("http_read_timeout", "15s")
	v.SetDefault("http_write_timeout", "15s")

	v.SetDefault("database_driver", DriverPostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 10)
	v.SetDefault("db_conn_max_lifetime", "1h")
	v.SetDefault("db_log_level", "warn")
	v.SetDefault("auto_migrate", true)

	v.SetDefault("openlibrary_base_url", "https://openlibrary.org")
	v.SetDefault("openlibrary_covers_url", "https://covers.openlibrary.org")
	v.SetDefault("openlibrary_timeout", "10s")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_db_path", DefaultTasksPath)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("enrich_schedule", "0 */6 * * *") // every 6 hours

	v.SetDefault("shutdown_timeout", "10s")

	driver := strings.ToLower(v.GetString("DATABASE_DRIVER"))
	url := v.GetString("DATABASE_URL")
	if driver == DriverSQLite && url == "" {
		url = DefaultSQLitePath
	}

	return &Config{
		HTTP: HTTP{
			Addr:           v.GetString("SERVER_ADDR"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			ReadTimeout:    v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("HTTP_WRITE_TIMEOUT"),
		},
		Database: Database{
			Driver:          driver,
			URL:             url,
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			LogLevel:        v.GetString("DB_LOG_LEVEL"),
			AutoMigrate:     v.GetBool("AUTO_MIGRATE"),
		},
		OpenLibrary: OpenLibrary{
			BaseURL:   strings.TrimRight(v.GetString("OPENLIBRARY_BASE_URL"), "/"),
			CoversURL: strings.TrimRight(v.GetString("OPENLIBRARY_COVERS_URL"), "/"),
			Timeout:   v.GetDuration("OPENLIBRARY_TIMEOUT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			DBPath:          v.GetString("TASKS_DB_PATH"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
			EnrichSchedule:  v.GetString("ENRICH_SCHEDULE"),
		},
		Global: Global{
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
