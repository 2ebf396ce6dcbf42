package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/YKarmar/JobMail/internal/client"
	"github.com/YKarmar/JobMail/internal/config"
	"github.com/YKarmar/JobMail/internal/logger"
)

// mcp-server exposes the configured IMAP mailbox as a JSON-RPC mail bridge.
func main() {
	var configPath, addr string
	pflag.StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to config file")
	pflag.StringVarP(&addr, "addr", "a", ":8080", "Listen address")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("load config")
	}
	lg := logger.Init(cfg.Log)

	if cfg.IMAP.Email == "" || cfg.IMAP.Host == "" {
		lg.Fatal().Msg("imap.email and imap.host are required")
	}

	source := client.NewIMAPSource(client.IMAPConfig{
		Host:     cfg.IMAP.Host,
		Email:    cfg.IMAP.Email,
		Password: cfg.IMAP.Password,
		UseTLS:   cfg.IMAP.UseTLS,
		Folders:  cfg.IMAP.Folders,
		Since:    cfg.SinceDate(),
	})

	mux := http.NewServeMux()
	mux.Handle("/mcp", client.NewMCPHandler(source, cfg.MCP.APIKey, lg.With().Str("component", "mcp").Logger()))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	lg.Info().
		Str("addr", addr).
		Str("mailbox", cfg.IMAP.Email).
		Strs("folders", cfg.IMAP.Folders).
		Msg("mail bridge listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal().Err(err).Msg("serve")
	}
	if err := source.Close(); err != nil {
		lg.Warn().Err(err).Msg("imap logout")
	}
}
