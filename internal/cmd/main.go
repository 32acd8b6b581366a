package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/cowork-labs/focusroom/internal/gateway"
	"github.com/cowork-labs/focusroom/internal/history"
	"github.com/cowork-labs/focusroom/internal/relay"
	"github.com/cowork-labs/focusroom/internal/room"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(config.Server.AllowedOrigin))

	var broadcaster room.Broadcaster = cm
	if config.NATS.URL != "" {
		relayConfig := relay.DefaultConfig()
		relayConfig.URL = config.NATS.URL
		relayConfig.SubjectPrefix = config.NATS.SubjectPrefix
		publisher, err := relay.NewPublisher(relayConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect NATS event publisher")
		}
		defer publisher.Close()
		broadcaster = relay.NewTee(cm, publisher)
	}

	var archiver room.SessionArchiver
	if config.Database.URL != "" {
		pg, err := history.NewPostgresArchiver(ctx, config.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect session history archiver")
		}
		defer pg.Close()
		archiver = pg
	}

	store := room.NewStore(broadcaster, clockwork.NewRealClock(), archiver)
	cm.SetRoomService(store)

	go cm.Start(ctx)

	srv := setupServer(config, cm, store)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("port", config.Server.Port).Msg("focusroom server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("focusroom server stopped")
}
