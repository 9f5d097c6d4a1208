package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/internal/config"
	"github.com/DoyleJ11/vtt-board-sync/internal/httpapi"
	"github.com/DoyleJ11/vtt-board-sync/internal/service"
	"github.com/DoyleJ11/vtt-board-sync/internal/store"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.Logger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return store.OpenPostgresBackend(ctx, cfg.DatabaseURL, cfg.PushChannel)
	default:
		return store.OpenFileBackend(cfg.DataDir)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (err error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	st, err := store.Open(backend, logger.Named("store"))
	if err != nil {
		return multierr.Append(err, backend.Close())
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	// Build the router with the hub injected
	var (
		hub *broadcast.Hub
		pub broadcast.Publisher = broadcast.Nop{}
	)
	push := types.PushInfo{Enabled: cfg.PushEnabled}
	if cfg.PushEnabled {
		hub = broadcast.NewHub(ctx, logger.Named("hub"))
		pub = hub
		push.Channel = cfg.PushChannel
		push.Path = "/ws"
	}
	notifier := broadcast.NewNotifier(pub, cfg.PushChannel, logger.Named("broadcast"))
	svc := service.New(st, notifier, service.Options{Push: push}, logger.Named("service"))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.SetupRoutes(httpapi.Deps{Service: svc, Hub: hub, Channel: cfg.PushChannel, Log: logger.Named("http")}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store), zap.Bool("push", cfg.PushEnabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var errs error
		errs = multierr.Append(errs, srv.Shutdown(shutdownCtx))
		notifier.Wait()
		if hub != nil {
			errs = multierr.Append(errs, hub.Close())
		}
		return errs
	})
	return g.Wait()
}
