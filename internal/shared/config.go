package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type DBConfig struct {
	Driver      string // mysql | postgres
	DSN         string
	PoolSize    int
	MaxOverflow int
	PoolTimeout time.Duration
	PoolRecycle time.Duration
}

type Config struct {
	AppEnv      string
	LogFile     string
	HTTPAddr    string
	MetricsAddr string
	DB          DBConfig

	WBBase     string
	WBToken    string
	WBTimeout  time.Duration
	WBRPS      int
	MaxRetries int
	RetryDelay time.Duration

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration
}

func Load() Config {
	// .env is optional; real env vars win since godotenv never overrides them
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		}
		return def
	}
	seconds := func(k string, def int) time.Duration {
		return time.Duration(atoi(k, def)) * time.Second
	}

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogFile:     env("LOG_FILE", "wb_reviews.log"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		DB: DBConfig{
			Driver:      env("DB_DRIVER", "mysql"),
			DSN:         env("DB_DSN", env("DATABASE_URL", "root:root@tcp(localhost:3306)/wb_reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC")),
			PoolSize:    atoi("DB_POOL_SIZE", 10),
			MaxOverflow: atoi("DB_MAX_OVERFLOW", 20),
			PoolTimeout: seconds("DB_POOL_TIMEOUT_SECONDS", 30),
			PoolRecycle: seconds("DB_POOL_RECYCLE_SECONDS", 1800),
		},
		WBBase:     env("WB_API_BASE_URL", "https://feedbacks-api.wildberries.ru/api/v1/feedbacks"),
		WBToken:    env("WB_API_TOKEN", ""),
		WBTimeout:  seconds("REQUEST_TIMEOUT_SECONDS", 30),
		WBRPS:      atoi("WB_API_RPS", 5),
		MaxRetries: atoi("MAX_RETRIES", 3),
		RetryDelay: seconds("RETRY_DELAY_SECONDS", 2),
		RedisAddr:  env("REDIS_ADDR", ""),
		RedisPass:  env("REDIS_PASSWORD", ""),
		RedisDB:    atoi("REDIS_DB", 0),
		CacheTTL:   seconds("CACHE_TTL_SECONDS", 300),
	}
	if c.WBToken == "" {
		log.Debug().Msg("WB_API_TOKEN is empty; requests go out unauthenticated")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
