package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/lifeplus/api"
	"github.com/geocoder89/lifeplus/internal/accounts"
	"github.com/geocoder89/lifeplus/internal/auth"
	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/credentials"
	"github.com/geocoder89/lifeplus/internal/db"
	"github.com/geocoder89/lifeplus/internal/events"
	"github.com/geocoder89/lifeplus/internal/exams"
	httpx "github.com/geocoder89/lifeplus/internal/http"
	"github.com/geocoder89/lifeplus/internal/http/handlers"
	"github.com/geocoder89/lifeplus/internal/ledger"
	"github.com/geocoder89/lifeplus/internal/medicines"
	"github.com/geocoder89/lifeplus/internal/notifications"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/geocoder89/lifeplus/internal/recovery"
	"github.com/geocoder89/lifeplus/internal/redisclient"
	"github.com/geocoder89/lifeplus/internal/repo/memory"
	"github.com/geocoder89/lifeplus/internal/repo/postgres"
	"github.com/geocoder89/lifeplus/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "lifeplus-api"

// stores groups one record store driver behind the interfaces the services
// consume.
type stores struct {
	users     accounts.Store
	medicines medicines.Store
	ledger    ledger.Store
	exams     exams.Store
	admin     db.AdminStore
}

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := config.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	checks := map[string]handlers.Check{}

	st, closeStore, err := openStores(ctx, cfg, prom, checks, log)
	if err != nil {
		return err
	}
	defer closeStore()

	seedCtx, cancel := config.WithTimeout(ctx, 5*time.Second)
	created, err := db.EnsureAdminUser(seedCtx, st.admin, cfg)
	cancel()
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	codes, closeCodes, err := openCodeStore(ctx, cfg, checks, log)
	if err != nil {
		return err
	}
	defer closeCodes()

	mailer, err := buildMailer(cfg, log)
	if err != nil {
		return err
	}

	var pub events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		checks["nats"] = np.Ping
		pub = np
	}
	defer pub.Close()

	cipher, err := security.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("field cipher: %w", err)
	}

	jwtManager, err := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("jwt manager: %w", err)
	}

	creds := credentials.NewManager(st.users, codes, mailer, jwtManager,
		credentials.WithMetrics(prom),
		credentials.WithLogger(log),
	)
	accountsSvc := accounts.NewService(st.users, creds, log)

	health := handlers.NewHealthHandler(checks)

	router := httpx.NewRouter(httpx.Deps{
		Log:            log,
		Prom:           prom,
		Gatherer:       reg,
		Health:         health,
		Tokens:         jwtManager,
		APIDoc:         api.OpenAPI,
		Registrar:      accountsSvc,
		Recovery:       creds,
		Accounts:       accountsSvc,
		Medicines:      medicines.NewService(st.medicines),
		Ledger:         ledger.New(st.ledger, pub, prom, log),
		Exams:          exams.NewService(st.exams, cipher),
		ServiceName:    serviceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		AuthRateLimit:  cfg.AuthRateLimit,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("server shutting down")
	health.MarkShuttingDown()

	sctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, checks map[string]handlers.Check, log *slog.Logger) (stores, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using the in-memory record store; data is lost on restart")
		m := memory.NewStore()
		return stores{
			users:     m.Users(),
			medicines: m.Medicines(),
			ledger:    m.Medicines(),
			exams:     m.Exams(),
			admin:     m.Users(),
		}, func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return stores{}, nil, fmt.Errorf("db connect: %w", err)
	}
	checks["db"] = pool.Ping

	users := postgres.NewUsersRepo(pool, prom)
	meds := postgres.NewMedicinesRepo(pool, prom)

	return stores{
		users:     users,
		medicines: meds,
		ledger:    meds,
		exams:     postgres.NewExamsRepo(pool, prom),
		admin:     users,
	}, pool.Close, nil
}

func openCodeStore(ctx context.Context, cfg config.Config, checks map[string]handlers.Check, log *slog.Logger) (recovery.CodeStore, func(), error) {
	if cfg.RecoveryStore == "redis" {
		rc, err := redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = rc.Ping
		return recovery.NewRedisStore(rc.Raw()), func() { _ = rc.Close() }, nil
	}

	ms := recovery.NewMemoryStore()
	go ms.RunSweeper(ctx, cfg.RecoverySweepInterval, log)
	return ms, func() {}, nil
}

func buildMailer(cfg config.Config, log *slog.Logger) (notifications.Mailer, error) {
	var inner notifications.Mailer

	switch cfg.Mailer {
	case "smtp":
		inner = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			From: cfg.MailFrom,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
		})
	case "mailersend":
		ms, err := notifications.NewMailerSendMailer(cfg.MailerSendAPIKey, cfg.MailFromName, cfg.MailFrom)
		if err != nil {
			return nil, err
		}
		inner = ms
	default:
		inner = notifications.NewLogMailer(log)
	}

	return notifications.NewProtectedMailer(inner, notifications.ProtectedMailerConfig{
		Timeout:          8 * time.Second,
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
	}), nil
}
