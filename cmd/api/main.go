package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/app"
	"github.com/aquatracking/aquatracking/internal/config"
	httpHandlers "github.com/aquatracking/aquatracking/internal/http"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	app.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Build(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	server := httpHandlers.NewApp(rt.Services, rt.Metrics)
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("store", config.StoreBackend()).Msg("api listening")
	if err := server.Listen(addr); err != nil {
		log.Error().Err(err).Msg("server exit")
	}
}
