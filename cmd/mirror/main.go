// Command mirror refreshes the local record store from the remote document
// store for the user ids given as arguments. Remote is authoritative; each
// user's local rows are replaced wholesale.
package main

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"winemap/internal/adapters/docstore"
	"winemap/internal/adapters/observability"
	"winemap/internal/app"
	"winemap/internal/shared"
	"winemap/internal/storage/sqlite"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	userIDs := os.Args[1:]
	if len(userIDs) == 0 {
		log.Fatal().Msg("usage: mirror <userId> [userId...]")
	}

	log.Info().
		Str("base", cfg.DocstoreBase).
		Int("workers", cfg.MirrorWorkers).
		Int("users", len(userIDs)).
		Msg("mirror starting")

	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("sqlite open failed")
	}
	defer db.Close()

	client, err := docstore.New(cfg.DocstoreBase, cfg.DocstoreKey, cfg.DocstoreRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("docstore client init failed")
	}

	svc := app.NewMirrorService(client, sqlite.New(db))
	sem := semaphore.NewWeighted(int64(cfg.MirrorWorkers))
	var wg sync.WaitGroup

	for _, id := range userIDs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := svc.MirrorUser(ctx, userID)
			if err != nil {
				log.Warn().Str("user", userID).Err(err).Msg("mirror failed")
				return
			}
			log.Info().Str("user", userID).Int("reports", n).Msg("mirror ok")
		}(id)
	}

	wg.Wait()
	log.Info().Msg("mirror completed")
}
