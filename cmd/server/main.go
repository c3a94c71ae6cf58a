package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aidesk/backend/internal/config"
	"github.com/aidesk/backend/internal/db"
	httpapi "github.com/aidesk/backend/internal/http"
	"github.com/aidesk/backend/internal/oracle"
	"github.com/aidesk/backend/internal/pipeline"
	"github.com/aidesk/backend/internal/search"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "aidesk-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var oracleClient oracle.Client
	if cfg.OracleURL == "" {
		oracleClient = oracle.MockClient{}
		logger.Info().Msg("using mock oracle client")
	} else {
		oracleClient = oracle.HTTPClient{BaseURL: cfg.OracleURL, Model: cfg.OracleModel, APIKey: cfg.OracleAPIKey}
	}

	var searcher search.Searcher
	if cfg.SearchURL == "" {
		searcher = search.MockSearcher{}
		logger.Info().Msg("using mock semantic searcher")
	} else {
		searcher = search.HTTPSearcher{BaseURL: cfg.SearchURL}
	}

	p := pipeline.New(store, oracleClient, searcher, logger)
	p.SearchLimit = cfg.SearchLimit
	p.SearchThreshold = cfg.SearchThreshold

	router := httpapi.Router(cfg, p, store, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
