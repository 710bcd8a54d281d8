package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mayankSinghx/QuickShow/internal/api"
	"github.com/mayankSinghx/QuickShow/internal/config"
	"github.com/mayankSinghx/QuickShow/internal/logging"
	"github.com/mayankSinghx/QuickShow/internal/room"
	"github.com/mayankSinghx/QuickShow/internal/store"
	"github.com/mayankSinghx/QuickShow/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	log := logging.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	registry := room.NewRegistry(st, log)

	wsCfg := ws.DefaultConfig()
	wsCfg.MessagesPerSecond = cfg.MessagesPerSecond
	wsCfg.MessageBurst = cfg.MessageBurst
	if cfg.AllowedOrigin != "" && cfg.AllowedOrigin != "*" {
		allowed := cfg.AllowedOrigin
		wsCfg.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == allowed
		}
	}
	gateway := ws.NewGateway(registry, wsCfg, log)

	apiHandler := api.New(registry, st, log)
	router := apiHandler.Router()
	router.HandleFunc("/ws", gateway.ServeWS)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.CORSMiddleware(router),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("db", cfg.DBPath).
		Msg("quickshow server starting")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
