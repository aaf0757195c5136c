package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"sim-broker/internal/config"
	"sim-broker/internal/engine"
	"sim-broker/internal/engine/offset"
	"sim-broker/internal/engine/tickfeed"
	"sim-broker/internal/handlers"
	"sim-broker/internal/metrics"
	"sim-broker/pkg/utils"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*envPath)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to load configuration")
	}
	utils.SetLevel(cfg.LogLevel)

	// Initialize matching engine
	matchingEngine := engine.NewMatchingEngine(cfg.Engine())

	// Offsets follow positions through engine fills and cancels
	tracker := offset.NewTracker(cfg.DefaultAccount)
	tracker.SetSender(matchingEngine)
	tracker.SetCanceller(matchingEngine)
	if cfg.OffsetsFile != "" {
		offs, err := config.LoadOffsets(cfg.OffsetsFile)
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to load offsets")
		}
		offs.Apply(tracker)
	}

	hub := attach(matchingEngine, tracker)

	h := handlers.NewHandler(matchingEngine, tracker, hub)
	r := mux.NewRouter()
	h.SetupRoutes(r)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           cors.New(cors.Options{AllowedOrigins: cfg.CORSOrigins, AllowedMethods: []string{"GET", "POST", "DELETE"}}).Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TicksFile != "" {
		go replay(ctx, cfg.TicksFile, h)
	}

	go func() {
		utils.Logger.WithField("addr", cfg.HTTPAddr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.LogError(err)
	}
}

// attach registers the engine listeners. Observers come before the tracker so a
// fill is published ahead of the offset orders it causes.
func attach(e *engine.MatchingEngine, tracker *offset.Tracker) *handlers.Hub {
	metrics.Attach(e)
	hub := handlers.NewHub()
	hub.Attach(e)
	e.OnFill(tracker)
	e.OnCancel(tracker)
	return hub
}

func replay(ctx context.Context, path string, exec tickfeed.Executor) {
	src, err := tickfeed.Open(path)
	if err != nil {
		utils.LogError(err)
		return
	}
	defer src.Close()
	ticks, fills, err := tickfeed.Run(ctx, src, exec)
	if err != nil {
		utils.Logger.WithFields(logrus.Fields{"ticks": ticks, "fills": fills}).WithError(err).Error("Replay stopped")
	}
}
