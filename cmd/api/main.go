package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"diecastpro/internal/car"
	"diecastpro/internal/config"
	"diecastpro/internal/credit"
	"diecastpro/internal/currency"
	"diecastpro/internal/httpx"
	"diecastpro/internal/listing"
	"diecastpro/internal/market"
	"diecastpro/internal/platform/crawler"
	"diecastpro/internal/platform/gemini"
	"diecastpro/internal/quote"
	"diecastpro/internal/relevance"
	"diecastpro/internal/search"

	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("missing required environment variable: JWT_SECRET")
	}

	dbPool := mustOpenDB(cfg.DSN)
	defer dbPool.Close()

	carRepo := car.NewPostgresRepo(dbPool, repoTimeout)
	quoteRepo := quote.NewPostgresRepo(dbPool, repoTimeout)
	creditRepo := credit.NewPostgresRepo(dbPool, repoTimeout)

	carService := car.NewService(carRepo)
	creditService := credit.NewService(creditRepo, cfg.DailyFetchLimit)

	gen := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiRPS, 1)
	pages := crawler.New(cfg.ChromeBin)

	orchestrator := market.NewOrchestrator(market.Deps{
		Cars:                 carRepo,
		Quotes:               quoteRepo,
		Credits:              creditService,
		Query:                search.NewQueryBuilder(gen),
		Search:               search.NewBackend(cfg.SearchMaxResults),
		Extract:              listing.NewExtractor(pages, gen, time.Duration(cfg.PerURLTimeoutSec)*time.Second),
		Validate:             relevance.NewValidator(gen),
		Convert:              currency.NewRateCache(),
		Concurrency:          cfg.FetchConcurrency,
		PortfolioConcurrency: cfg.PortfolioConcurrency,
		ModelConfigured:      cfg.GeminiAPIKey != "",
	})
	if cfg.GeminiAPIKey == "" {
		log.Println("GEMINI_API_KEY not set, live market fetches disabled")
	}

	carHandler := car.NewHTTPHandler(carService)
	marketHandler := market.NewHTTPHandler(orchestrator, creditService)

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := dbPool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	protected := http.NewServeMux()
	protected.HandleFunc("POST /cars", carHandler.Create)
	protected.HandleFunc("GET /cars", carHandler.List)
	protected.HandleFunc("GET /cars/{id}", carHandler.Get)
	protected.HandleFunc("PUT /cars/{id}", carHandler.Update)
	protected.HandleFunc("DELETE /cars/{id}", carHandler.Delete)
	protected.HandleFunc("POST /cars/{id}/shipped", carHandler.MarkShipped)
	protected.HandleFunc("POST /cars/{id}/delivered", carHandler.MarkDelivered)

	protected.HandleFunc("GET /cars/{id}/market", marketHandler.History)
	protected.HandleFunc("DELETE /cars/{id}/market", marketHandler.ClearHistory)
	protected.HandleFunc("GET /cars/{id}/market/fetch", marketHandler.Fetch)
	protected.HandleFunc("GET /portfolio", marketHandler.Portfolio)
	protected.HandleFunc("GET /market/credits", marketHandler.Credits)

	router.Handle("/", httpx.AuthMiddleware(cfg.JWTSecret)(protected))

	rateLimit := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := httpx.RequestIDMiddleware(
		httpx.RecoveryMiddleware(
			httpx.AccessLogMiddleware(
				rateLimit.Middleware(router))))

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 5 * time.Second,
		// A fetch run crawls several pages, so writes stay generous.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting server on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func mustOpenDB(dsn string) *pgxpool.Pool {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("cannot create db pool: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Fatalf("cannot ping database (%s): %v", redactDSN(dsn), err)
	}
	log.Println("database connection OK")
	return pool
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
