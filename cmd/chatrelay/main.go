package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daylit/chatrelay/internal/config"
	"github.com/daylit/chatrelay/internal/llm"
	"github.com/daylit/chatrelay/internal/logger"
	"github.com/daylit/chatrelay/internal/server"
	"github.com/daylit/chatrelay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing database URL is not fatal: conversation routes degrade
	// per-endpoint and the relay keeps working.
	var st store.Store
	if cfg.Database.URL != "" {
		pg, err := store.Open(ctx, cfg.Database.URL)
		if err != nil {
			logger.L.Error("failed to open conversation store", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		st = pg
	} else {
		logger.L.Warn("database.url not set; conversation store disabled")
	}

	var client llm.Client
	switch {
	case cfg.LLM.Mock:
		logger.L.Info("using fixture stream instead of the model provider")
		client = llm.NewFixture()
	case cfg.LLM.APIKey != "":
		client = llm.NewOpenAI(cfg.LLM)
	default:
		logger.L.Warn("llm.api_key not set; chat relay disabled")
	}

	srv := server.New(st, client)
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(addr) }()

	select {
	case err := <-errc:
		logger.L.Error("server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("shutdown failed", "error", err)
	}
	logger.L.Info("server stopped")
}
