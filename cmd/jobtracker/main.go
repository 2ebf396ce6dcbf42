package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/YKarmar/JobMail/internal/analyzer"
	"github.com/YKarmar/JobMail/internal/api"
	"github.com/YKarmar/JobMail/internal/client"
	"github.com/YKarmar/JobMail/internal/config"
	"github.com/YKarmar/JobMail/internal/exporter"
	"github.com/YKarmar/JobMail/internal/logger"
	"github.com/YKarmar/JobMail/internal/store"
	"github.com/YKarmar/JobMail/internal/tracker"
	"github.com/YKarmar/JobMail/internal/types"
)

const usage = `Usage: jobtracker [flags] [serve|sync|export]

Commands:
  serve   run the HTTP API (default)
  sync    fetch new job mail once and print a summary
  export  write stored applications and statistics to CSV

Flags:
`

func main() {
	var configPath, exportFile string
	pflag.StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to config file")
	pflag.StringVarP(&exportFile, "export", "o", "", "CSV file written by the export command (default export.file)")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	command := "serve"
	if pflag.NArg() > 0 {
		command = pflag.Arg(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("load config")
	}
	logger.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize")
	}

	switch command {
	case "serve":
		err = a.serve(ctx)
	case "sync":
		err = a.sync(ctx)
	case "export":
		if exportFile == "" {
			exportFile = cfg.Export.File
		}
		err = a.export(ctx, exportFile)
	default:
		pflag.Usage()
		os.Exit(2)
	}
	a.close()
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

type app struct {
	cfg     *config.Config
	db      *gorm.DB
	jobs    store.JobRepository
	tokens  store.TokenRepository
	oauth   *oauth2.Config
	tracker *tracker.Tracker
	log     zerolog.Logger
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	db, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		db:     db,
		jobs:   store.NewJobRepository(db),
		tokens: store.NewTokenRepository(db),
		log:    log,
	}
	if cfg.Gmail.ClientID != "" && cfg.Gmail.ClientSecret != "" {
		a.oauth = client.NewOAuthConfig(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret, cfg.Gmail.RedirectURI)
	}

	ja := analyzer.NewJobAnalyzer(analyzer.Config{Workers: cfg.Sync.Workers}, log)
	a.tracker = tracker.New(tracker.Config{
		Query:      cfg.Sync.Query,
		MaxResults: cfg.Sync.MaxResults,
	}, ja, a.jobs, log)
	return a, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// openSource builds the mailbox reader for the configured provider.
func (a *app) openSource(ctx context.Context) (client.MailSource, error) {
	switch a.cfg.Mail.Provider {
	case config.ProviderIMAP:
		return client.NewIMAPSource(client.IMAPConfig{
			Host:     a.cfg.IMAP.Host,
			Email:    a.cfg.IMAP.Email,
			Password: a.cfg.IMAP.Password,
			UseTLS:   a.cfg.IMAP.UseTLS,
			Folders:  a.cfg.IMAP.Folders,
			Since:    a.cfg.SinceDate(),
		}), nil
	case config.ProviderMCP:
		return client.NewMCPSource(client.MCPConfig{
			Endpoint: a.cfg.MCP.Endpoint,
			APIKey:   a.cfg.MCP.APIKey,
		}), nil
	default:
		return a.gmailSource(ctx)
	}
}

func (a *app) gmailSource(ctx context.Context) (client.MailSource, error) {
	if a.oauth == nil {
		return nil, errors.New("gmail.client_id and gmail.client_secret are not configured")
	}

	stored, err := a.tokens.Latest(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, api.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
	}
	if stored.TokenExpiry != nil {
		token.Expiry = *stored.TokenExpiry
	}

	return client.NewGmailSource(ctx, a.oauth, token, func(t *oauth2.Token) error {
		refreshed := &types.UserToken{
			Email:        stored.Email,
			AccessToken:  t.AccessToken,
			RefreshToken: t.RefreshToken,
		}
		if !t.Expiry.IsZero() {
			expiry := t.Expiry.UTC()
			refreshed.TokenExpiry = &expiry
		}
		a.log.Debug().Str("email", stored.Email).Msg("access token refreshed")
		return a.tokens.Save(ctx, refreshed)
	})
}

func (a *app) serve(ctx context.Context) error {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	h := api.NewHandler(api.Options{
		Jobs:        a.jobs,
		Tokens:      a.tokens,
		Tracker:     a.tracker,
		Sources:     a.openSource,
		OAuth:       a.oauth,
		FrontendURL: a.cfg.Server.FrontendURL,
		Log:         a.log,
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("provider", a.cfg.Mail.Provider).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) sync(ctx context.Context) error {
	source, err := a.openSource(ctx)
	if err != nil {
		if errors.Is(err, api.ErrNotAuthenticated) {
			return fmt.Errorf("%w: run serve and open /auth/login first", err)
		}
		return err
	}
	if c, ok := source.(io.Closer); ok {
		defer c.Close()
	}

	res, err := a.tracker.Sync(ctx, source)
	if err != nil {
		return err
	}
	fmt.Println(res.Message())
	if res.Failed > 0 {
		fmt.Printf("%d messages could not be fetched\n", res.Failed)
	}

	apps, _, err := a.jobs.List(ctx, store.ListFilter{})
	if err != nil {
		return err
	}
	exporter.PrintJobStatistics(os.Stdout, apps)
	return nil
}

func (a *app) export(ctx context.Context, filename string) error {
	apps, _, err := a.jobs.List(ctx, store.ListFilter{})
	if err != nil {
		return err
	}

	exporter.PrintJobStatistics(os.Stdout, apps)
	if len(apps) == 0 {
		return nil
	}

	ce := exporter.NewCSVExporter(filename)
	if err := ce.ExportJobApplications(apps); err != nil {
		return err
	}
	if err := ce.ExportStatistics(apps); err != nil {
		return err
	}
	fmt.Printf("\nExported %d applications to %s\n", len(apps), ce.Filename())
	fmt.Printf("Statistics written to %s\n", ce.StatisticsFilename())
	return nil
}
