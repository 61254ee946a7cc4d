package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"diecastpro/internal/car"
	"diecastpro/internal/config"
	"diecastpro/internal/credit"
	"diecastpro/internal/currency"
	"diecastpro/internal/listing"
	"diecastpro/internal/market"
	"diecastpro/internal/platform/crawler"
	"diecastpro/internal/platform/gemini"
	"diecastpro/internal/quote"
	"diecastpro/internal/relevance"
	"diecastpro/internal/search"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pricefetch refreshes market quotes for a user's collection from the
// command line, one credit per car, same pipeline as the API.
func main() {
	var (
		userID   = flag.String("user", "", "User whose cars to fetch (required)")
		carID    = flag.String("car-id", "", "Fetch a single car instead of the whole collection")
		simulate = flag.Bool("simulate", false, "Fabricate quotes instead of live fetching")
	)
	flag.Parse()

	if *userID == "" {
		log.Fatal("-user is required")
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	const repoTimeout = 5 * time.Second
	carRepo := car.NewPostgresRepo(pool, repoTimeout)
	gen := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiRPS, 1)

	orchestrator := market.NewOrchestrator(market.Deps{
		Cars:                 carRepo,
		Quotes:               quote.NewPostgresRepo(pool, repoTimeout),
		Credits:              credit.NewService(credit.NewPostgresRepo(pool, repoTimeout), cfg.DailyFetchLimit),
		Query:                search.NewQueryBuilder(gen),
		Search:               search.NewBackend(cfg.SearchMaxResults),
		Extract:              listing.NewExtractor(crawler.New(cfg.ChromeBin), gen, time.Duration(cfg.PerURLTimeoutSec)*time.Second),
		Validate:             relevance.NewValidator(gen),
		Convert:              currency.NewRateCache(),
		Concurrency:          cfg.FetchConcurrency,
		PortfolioConcurrency: cfg.PortfolioConcurrency,
		ModelConfigured:      cfg.GeminiAPIKey != "",
	})

	carIDs := []string{*carID}
	if *carID == "" {
		cars, err := carRepo.ListByUser(ctx, *userID)
		if err != nil {
			log.Fatalf("Failed to list cars: %v", err)
		}
		if len(cars) == 0 {
			log.Printf("No cars found for user %s", *userID)
			return
		}
		carIDs = carIDs[:0]
		for _, c := range cars {
			carIDs = append(carIDs, c.ID)
		}
	}

	fetched, failed := 0, 0
	for _, id := range carIDs {
		stats, err := orchestrator.Fetch(ctx, id, *userID, *simulate)
		switch {
		case errors.Is(err, credit.ErrExhausted):
			log.Printf("Daily fetch credits exhausted, stopping (%d fetched, %d failed)", fetched, failed)
			return
		case errors.Is(err, market.ErrModelUnavailable):
			log.Fatal("GEMINI_API_KEY not set; use -simulate or configure a key")
		case err != nil:
			failed++
			log.Printf("car %s: %v", id, err)
			continue
		}
		fetched++
		log.Printf("car %s: %d quotes, average %s INR (credits left %d)",
			id, stats.Count, stats.AverageINR.StringFixed(2), stats.CreditsRemaining)
	}
	log.Printf("Done: %d fetched, %d failed", fetched, failed)
}
