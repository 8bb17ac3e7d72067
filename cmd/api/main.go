package main

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"winemap/internal/adapters/docstore"
	server "winemap/internal/adapters/http_server"
	"winemap/internal/adapters/observability"
	redisad "winemap/internal/adapters/redis"
	"winemap/internal/app"
	"winemap/internal/domain"
	"winemap/internal/shared"
	"winemap/internal/storage/sqlite"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	client, err := docstore.New(cfg.DocstoreBase, cfg.DocstoreKey, cfg.DocstoreRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("docstore client init failed")
	}

	// The repository facade: one backend per process, chosen by config.
	// There is no fail-over or merge between the two.
	var repo domain.ReportRepository = client
	if cfg.Backend == "local" {
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("sqlite open failed")
		}
		defer db.Close()
		repo = app.NewLocalReportRepository(sqlite.New(db))
		log.Info().Str("path", cfg.SQLitePath).Msg("using local record store")
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	q := app.NewQueryService(repo, cache, cfg.CacheTTL)
	orch := app.NewOrchestrator(repo, int64(cfg.OpWorkers))
	defer orch.Close()

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Orch: orch, Auth: client})

	log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.Backend).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
