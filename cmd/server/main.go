// Package main is the entry point for the XWHEP remote client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pandeptwidyaop/xwhep-remote/internal/archive"
	"github.com/pandeptwidyaop/xwhep-remote/internal/cache"
	"github.com/pandeptwidyaop/xwhep-remote/internal/codec"
	"github.com/pandeptwidyaop/xwhep-remote/internal/config"
	"github.com/pandeptwidyaop/xwhep-remote/internal/database"
	"github.com/pandeptwidyaop/xwhep-remote/internal/logger"
	"github.com/pandeptwidyaop/xwhep-remote/internal/router"
	"github.com/pandeptwidyaop/xwhep-remote/internal/services"
	"github.com/pandeptwidyaop/xwhep-remote/internal/version"
	"github.com/pandeptwidyaop/xwhep-remote/internal/xwhep"
)

const usage = `Usage: xwhep-remote <command> [flags] [args]

Commands:
  serve                               run the local HTTP API (default)
  submit <app> <cmdline>              submit a work [-stdin file] [-tag tag] [-wait]
  register <name> <os> <cpu> <src>    register a binary from a path or URL
  status <uid>                        print the status of a work
  result <uid>                        download the result of a completed work [-print]
  remove <uid>                        remove an entity
  hash-token <token>                  print the bcrypt hash for api.token_hash
  version                             show version information

Every command accepts -config <path> (default config.yaml).
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "submit":
		err = runSubmit(args)
	case "register":
		err = runRegister(args)
	case "status":
		err = runStatus(args)
	case "result":
		err = runResult(args)
	case "remove":
		err = runRemove(args)
	case "hash-token":
		err = runHashToken(args)
	case "version":
		fmt.Printf("xwhep-remote %s\n", version.Version)
		fmt.Printf("Build Time: %s\n", version.BuildTime)
		fmt.Printf("Git Commit: %s\n", version.GitCommit)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	db   *database.DB
	orch *services.Orchestrator
}

func setup(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}

	log := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)

	client, err := xwhep.NewClient(xwhep.Options{
		BaseURL: cfg.XWHEP.URL,
		Credentials: xwhep.Credentials{
			Login:    cfg.XWHEP.Login,
			Password: cfg.XWHEP.Password,
		},
		InsecureTLS:       cfg.XWHEP.InsecureTLS,
		Timeout:           cfg.XWHEP.GetTimeout(),
		RequestsPerSecond: cfg.XWHEP.RequestsPerSecond,
		Burst:             cfg.XWHEP.Burst,
	}, logger.For("xwhep"))
	if err != nil {
		return nil, err
	}

	if cfg.XWHEP.Token != "" {
		creds, err := authenticate(client, cfg.XWHEP.Token, cfg.XWHEP.GetTimeout())
		if err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
		client = client.WithCredentials(creds)
		log.Infow("session established", "url", cfg.XWHEP.URL)
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	orch := services.NewOrchestrator(services.Dependencies{
		Transport: client,
		Codec:     codec.XML{},
		Extractor: archive.Zip{},
		Store:     cache.NewApplications(),
		Fetcher:   client,
		Journal:   services.NewJournalService(db),
	}, services.Options{
		PollInterval:     cfg.Orchestrator.GetPollInterval(),
		DataPollInterval: cfg.Orchestrator.GetDataPollInterval(),
		DataWaitTimeout:  cfg.Orchestrator.GetDataWaitTimeout(),
		RefreshTimeout:   cfg.Orchestrator.GetRefreshTimeout(),
		ResultDir:        cfg.Orchestrator.ResultDir,
		StagingDir:       cfg.Orchestrator.StagingDir,
	}, logger.For("services"))

	return &app{cfg: cfg, log: log, db: db, orch: orch}, nil
}

func authenticate(p xwhep.SessionProvider, token string, timeout time.Duration) (xwhep.Credentials, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return p.Authenticate(ctx, token)
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warnw("error closing database", "error", err)
	}
	_ = a.log.Sync()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	_ = fs.Parse(args)

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	r := router.New(a.cfg, a.orch, logger.For("api"))

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("xwhep-remote starting", "version", version.Version, "addr", addr, "grid", a.cfg.XWHEP.URL)
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

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
