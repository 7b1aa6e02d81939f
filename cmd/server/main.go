package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/baryshev/examroom/internal/adapters/http"
	"github.com/baryshev/examroom/internal/adapters/engine"
	sig "github.com/baryshev/examroom/internal/adapters/signal"
	"github.com/baryshev/examroom/internal/adapters/store"
	"github.com/baryshev/examroom/internal/config"
	"github.com/baryshev/examroom/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var sink core.SubmissionSink
	switch cfg.Store {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres sink")
		}
		defer pg.Close()
		sink = pg
	default:
		sink = store.LogSink{}
	}

	reg := core.NewRegistry(engine.New(engine.DefaultConfig()), sink, core.Options{
		TeacherRejoin: core.TeacherRejoinPolicy(cfg.TeacherRejoin),
		Tick:          cfg.Tick,
	})
	catalog := core.NewCatalog()
	ctl := sig.NewController(ctx, cfg, reg)

	r := router.SetupRouter(ctx, cfg, ctl, reg, catalog)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Examroom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
