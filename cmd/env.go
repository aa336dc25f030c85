package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/geoleads/leadgen-cli/internal/enrich"
	"github.com/geoleads/leadgen-cli/internal/geosearch"
	"github.com/geoleads/leadgen-cli/internal/jobs"
	"github.com/geoleads/leadgen-cli/internal/store"
	"github.com/geoleads/leadgen-cli/pkg/hunter"
	"github.com/geoleads/leadgen-cli/pkg/places"
	"github.com/geoleads/leadgen-cli/pkg/scraperfn"
	"github.com/geoleads/leadgen-cli/pkg/snov"
)

// appEnv bundles the wired subsystems shared by the commands.
type appEnv struct {
	store        store.Store
	runner       *geosearch.Runner
	waterfall    *enrich.Waterfall
	orchestrator *enrich.Orchestrator
	tracker      jobs.Tracker
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the search and enrichment subsystems from config.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Google.Key == "" {
		st.Close()
		return nil, eris.New("google places API key is required (LEADGEN_GOOGLE_KEY)")
	}
	placesClient := places.NewClient(cfg.Google.Key,
		places.WithBaseURL(cfg.Google.BaseURL),
		places.WithPageTokenDelay(time.Duration(cfg.Google.PageTokenDelaySecs)*time.Second),
	)

	mapping, err := geosearch.LoadTypeMapping(cfg.Search.CategoryMapping)
	if err != nil {
		st.Close()
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Search.RatePerSec), 1)
	engine := geosearch.NewEngine(placesClient, mapping, limiter)
	resolver := geosearch.NewResolver(placesClient)
	runner := geosearch.NewRunner(engine, resolver, st)

	hunterClient := hunter.NewClient(cfg.Hunter.Key, hunter.WithBaseURL(cfg.Hunter.BaseURL))

	var providers []enrich.Provider
	if cfg.Scraper.Endpoint != "" {
		providers = append(providers, enrich.NewScraperProvider(
			scraperfn.NewClient(cfg.Scraper.Endpoint, cfg.Scraper.AuthToken)))
	}
	if cfg.Hunter.Key != "" {
		providers = append(providers, enrich.NewHunterProvider(hunterClient))
	}
	if cfg.Snov.ClientID != "" && cfg.Snov.ClientSecret != "" {
		providers = append(providers, enrich.NewSnovProvider(
			snov.NewClient(cfg.Snov.ClientID, cfg.Snov.ClientSecret, snov.WithBaseURL(cfg.Snov.BaseURL))))
	}

	waterfall := enrich.NewWaterfall(providers, hunterClient,
		enrich.WithThreshold(cfg.Enrich.VerifiedThreshold),
		enrich.WithProviderDelay(time.Duration(cfg.Enrich.ProviderDelaySecs)*time.Second),
	)

	tracker := jobs.NewMemoryTracker()
	orchestrator := enrich.NewOrchestrator(waterfall, st, tracker,
		enrich.WithChunkSize(cfg.Enrich.ChunkSize),
		enrich.WithLeadDelay(time.Duration(cfg.Enrich.LeadDelaySecs)*time.Second),
	)

	return &appEnv{
		store:        st,
		runner:       runner,
		waterfall:    waterfall,
		orchestrator: orchestrator,
		tracker:      tracker,
	}, nil
}

func (e *appEnv) Close() {
	e.store.Close()
}
