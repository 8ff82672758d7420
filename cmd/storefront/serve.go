package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/toastigo/storefront/internal/api"
	"github.com/toastigo/storefront/internal/audit"
	"github.com/toastigo/storefront/internal/auth"
	"github.com/toastigo/storefront/internal/bridge"
	"github.com/toastigo/storefront/internal/command"
	"github.com/toastigo/storefront/internal/config"
	"github.com/toastigo/storefront/internal/device"
	"github.com/toastigo/storefront/internal/logging"
	"github.com/toastigo/storefront/internal/printer"
	"github.com/toastigo/storefront/internal/shop"
	"github.com/toastigo/storefront/internal/store"
	"github.com/toastigo/storefront/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting storefront", zap.String("version", version), zap.String("addr", cfg.Server.Addr))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, log)
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	auditLog, err := audit.NewLogger(cfg.Storage.AuditDir, audit.DefaultOptions(), log)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	svc := shop.NewService(st, shop.WithAudit(auditLog), shop.WithLogger(log))

	cache := printer.NewCache(cfg.Timing.FreshnessWindow)
	hub := telemetry.NewHub(cfg.Timing,
		telemetry.WithSnapshot(func() interface{} { return cache.Read() }),
		telemetry.WithLogger(log),
	)
	defer hub.Stop()

	proto, err := newProtocol(cfg)
	if err != nil {
		return err
	}
	mgr := bridge.NewManager(proto, cache, cfg.Timing,
		bridge.WithSink(hub),
		bridge.WithLogger(log),
		bridge.WithRequestFullState(cfg.Printer.RequestFullState),
	)

	// A disabled bridge answers state requests with UNAVAILABLE.
	var target command.Bridge
	if mgr.Enabled() {
		target = mgr
	}
	orch := command.NewOrchestrator(target, hub, cfg.Timing,
		command.WithAuditLogger(auditLog),
		command.WithLogger(log),
		command.WithTarget(cfg.Printer.Serial),
	)

	verifier, err := auth.NewVerifier(cfg.Admin.TokenSecret, cfg.Admin.Password, cfg.Admin.TokenTTL)
	if err != nil {
		return fmt.Errorf("admin auth: %w", err)
	}
	if !verifier.LoginEnabled() {
		log.Warn("ADMIN_PASSWORD not set, admin login disabled")
	}
	if cfg.Admin.TokenSecret == "" {
		log.Info("ADMIN_TOKEN_SECRET not set, admin tokens will not survive a restart")
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Status:       cache,
		Hub:          hub,
		Bridge:       mgr,
		Orchestrator: orch,
		Shop:         svc,
		Auth:         verifier,
		Middleware:   auth.NewMiddleware(verifier),
		Logger:       log,
		Version:      version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mgr.Run(gctx)
	})
	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Storefront stopped")
	return nil
}

// newProtocol returns nil when the printer credentials are incomplete, which
// leaves the bridge disabled and the status permanently offline.
func newProtocol(cfg *config.Config) (device.Protocol, error) {
	if !cfg.PrinterEnabled() {
		return nil, nil
	}
	p := cfg.Printer
	proto, err := device.New(p.Protocol, device.Credentials{
		Broker:             p.Broker,
		Serial:             p.Serial,
		UserID:             p.UserID,
		AccessToken:        p.AccessToken,
		AccessCode:         p.AccessCode,
		InsecureSkipVerify: p.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("printer protocol: %w", err)
	}
	return proto, nil
}
