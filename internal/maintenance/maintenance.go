// Package maintenance provide tools for clean and update database
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mcping/internal/config"
	"github.com/woozymasta/mcping/internal/game"
	"github.com/woozymasta/mcping/internal/models"
	"github.com/woozymasta/mcping/internal/storage"
)

const workers = 10

// Querier runs one resolved status query.
type Querier interface {
	Query(ctx context.Context, input string) (*models.Report, error)
}

// Run executes the maintenance tasks selected in cfg.
// It reports whether any task was selected and run.
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository, q Querier) bool {
	ran := false

	if cfg.Storage.PruneHistory > 0 {
		ran = true
		before := time.Now().Add(-cfg.Storage.PruneHistory)
		log.Info().Time("before", before).Msg("Pruning query history...")

		count, err := store.DeleteHistoryBefore(before)
		if err != nil {
			log.Error().Err(err).Msg("Failed to prune history")
		} else {
			log.Info().Int64("deleted", count).Msg("Prune finished")
		}
	}

	if cfg.Storage.Recheck {
		ran = true
		Recheck(ctx, store, q)
	}

	return ran
}

// Recheck queries the server of every saved default once and records the results.
func Recheck(ctx context.Context, store *storage.Repository, q Querier) {
	defaults, err := store.GetDefaults()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch default servers")
		return
	}
	if len(defaults) == 0 {
		log.Info().Msg("No default servers saved")
		return
	}

	// scopes often share a server
	seen := make(map[string]struct{}, len(defaults))
	addresses := make([]string, 0, len(defaults))
	for _, d := range defaults {
		if _, ok := seen[d.Address]; ok {
			continue
		}
		seen[d.Address] = struct{}{}
		addresses = append(addresses, d.Address)
	}

	log.Info().Int("count", len(addresses)).Msgf("Re-checking default servers with %d workers...", workers)
	runWorkerPool(ctx, addresses, store, q)
	log.Info().Msg("Maintenance task completed")
}

func runWorkerPool(ctx context.Context, addresses []string, store *storage.Repository, q Querier) {
	jobs := make(chan string, len(addresses))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				if ctx.Err() != nil {
					continue
				}
				processAddress(ctx, addr, store, q)
			}
		}()
	}

	for _, a := range addresses {
		jobs <- a
	}
	close(jobs)

	wg.Wait()
}

func processAddress(ctx context.Context, addr string, store *storage.Repository, q Querier) {
	logCtx := log.With().Str("address", addr).Logger()

	report, err := q.Query(ctx, addr)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Server unreachable")
	} else {
		logCtx.Trace().Int("online", report.Online).Int("max", report.MaxPlayers).Msg("Server up")
	}

	if err := store.InsertHistory(game.History(addr, report, err)); err != nil {
		logCtx.Error().Err(err).Msg("Failed to record history")
	}
}
