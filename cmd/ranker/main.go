package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/signalrank/config"
	"github.com/Alias1177/signalrank/internal/database"
	"github.com/Alias1177/signalrank/internal/export"
	"github.com/Alias1177/signalrank/internal/fundamentals"
	"github.com/Alias1177/signalrank/internal/loader"
	"github.com/Alias1177/signalrank/internal/marketdata"
	"github.com/Alias1177/signalrank/internal/pipeline"
	"github.com/Alias1177/signalrank/internal/registry"
	"github.com/Alias1177/signalrank/models"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := loader.LoadFile(cfg.PredictionsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.PredictionsFile).Msg("Loading predictions failed")
	}
	log.Info().
		Int("valid", len(loaded.Predictions)).
		Int("rejected", len(loaded.Rejected)).
		Msg("Predictions loaded")

	market := marketdata.NewCache(marketdata.NewClient(marketdata.ClientOptions{
		APIKey:         cfg.MarketAPIKey,
		BaseURL:        cfg.MarketAPIURL,
		RequestTimeout: cfg.RequestTimeout,
	}))

	funds := fundamentals.NewClient(fundamentals.ClientOptions{
		ServiceURL:     cfg.FundamentalsURL,
		RequestTimeout: cfg.RequestTimeout,
	})

	book := marketdata.NewBookClient(marketdata.BookClientOptions{
		RequestTimeout: cfg.RequestTimeout,
	})

	runner := pipeline.New(cfg, pipeline.Deps{
		Resolver:     registry.New(),
		Market:       market,
		Fundamentals: funds,
		Book:         book,
	})

	res, err := runner.Run(ctx, loaded.Predictions)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline run failed")
	}
	rejected := append(loaded.Rejected, res.Rejected...)

	paths, err := export.NewWriter(cfg.OutputDir).WriteAll(res.Ranked, res.Selected())
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	for _, p := range paths {
		log.Info().Str("path", p).Msg("Wrote output")
	}

	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("Database connection failed, skipping store")
		} else {
			defer db.Close()
			runID, err := db.StoreRun(ctx, res.Ranked, len(rejected))
			if err != nil {
				log.Error().Err(err).Msg("Storing run failed")
			} else {
				log.Info().Str("run_id", runID).Msg("Run stored")
			}
		}
	}

	printResults(res.Ranked, rejected)
}

func printResults(ranked []models.RankedResult, rejected []models.RejectedPrediction) {
	fmt.Printf("\n===== RANKED PREDICTIONS =====\n")
	fmt.Printf("%-4s %-12s %-8s %-6s %-6s %-6s %-6s %-9s %s\n",
		"#", "SOURCE", "ASSET", "DIR", "CONF", "STRUCT", "FINAL", "LABEL", "STATUS")

	for _, row := range ranked {
		status := "selected"
		if !row.Selected {
			status = row.GateReason
		}
		fmt.Printf("%-4d %-12s %-8s %-6s %-6.2f %-6.3f %-6.3f %-9s %s\n",
			row.Rank,
			row.Prediction.Source,
			row.Prediction.Asset,
			row.Prediction.Direction,
			row.Prediction.Confidence,
			row.Breakdown.StructuralReliability,
			row.Breakdown.FinalScore,
			row.Breakdown.Reliability,
			status,
		)
	}

	if len(rejected) > 0 {
		fmt.Printf("\n===== REJECTED =====\n")
		for _, r := range rejected {
			fmt.Printf("- %s (%s, %s): %s\n", r.SubmissionID, r.Source, r.Asset, r.Reason)
		}
	}
}
