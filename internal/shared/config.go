package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	SQLitePath    string
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	DocstoreBase  string
	DocstoreKey   string
	DocstoreRPS   int
	Backend       string // local | remote
	MirrorWorkers int
	OpWorkers     int
	CacheTTL      time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:        env("APP_ENV", "prod"),
		HTTPAddr:      env("HTTP_ADDR", ":8080"),
		SQLitePath:    env("SQLITE_PATH", "winemap.db"),
		RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
		RedisPass:     env("REDIS_PASSWORD", ""),
		RedisDB:       atoi("REDIS_DB", 0),
		DocstoreBase:  env("DOCSTORE_BASE_URL", "https://docstore.winemap.app/v1"),
		DocstoreKey:   env("DOCSTORE_API_KEY", ""),
		DocstoreRPS:   atoi("DOCSTORE_RPS", 5),
		Backend:       env("REPORT_BACKEND", "remote"),
		MirrorWorkers: atoi("MIRROR_WORKERS", 8),
		OpWorkers:     atoi("OP_WORKERS", 4),
		CacheTTL:      time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
	}
	// auth always goes through the document store, so the key is needed
	// regardless of which report backend is selected
	if c.DocstoreKey == "" {
		log.Warn().Msg("DOCSTORE_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
