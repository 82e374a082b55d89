package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ai"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/api"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/config"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/exec"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/logging"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ratelimit"
	"github.com/Gooichand/JustCoding-ECWoC-26/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.Init(cfg.Env, "justcoding")

	hub := ws.NewHub(log)
	go hub.Run()

	execClient := exec.NewClient(cfg.ExecURL, cfg.ExecTimeout, log)
	aiClient := ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout, log)
	execLimiters := ratelimit.NewPerKey(cfg.ExecRate, cfg.ExecBurst)
	apiHandler := api.New(hub, execClient, aiClient, execLimiters, log)

	r := chi.NewRouter()
	r.Use(api.CORS(cfg.AllowedOrigins))
	r.Get("/ws", ws.Handler(hub, ws.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxMessageSize: cfg.MaxMessageSize,
		MessageRate:    cfg.MessageRate,
		MessageBurst:   cfg.MessageBurst,
	}))
	r.Mount("/", apiHandler.Routes())

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("http shutdown", "err", err)
		}
		if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
			log.Warn("hub shutdown", "err", err)
		}
	}()

	select {
	case <-shutdownDone:
		log.Info("shutdown complete")
	case <-time.After(2 * cfg.ShutdownTimeout):
		log.Warn("shutdown timed out, exiting")
	}
}
