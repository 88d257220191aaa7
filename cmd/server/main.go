package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"poolpay/internal/audit"
	"poolpay/internal/escrow"
	ledgerhandler "poolpay/internal/ledger/handler"
	ledgermetrics "poolpay/internal/ledger/metrics"
	ledgerservice "poolpay/internal/ledger/service"
	ledgerstore "poolpay/internal/ledger/store"
	"poolpay/internal/platform/config"
	"poolpay/internal/platform/database"
	"poolpay/internal/platform/health"
	"poolpay/internal/platform/logger"
	"poolpay/internal/platform/metrics"
	"poolpay/internal/platform/tracer"
	"poolpay/internal/pool/adapters"
	poolhandler "poolpay/internal/pool/handler"
	poolmetrics "poolpay/internal/pool/metrics"
	"poolpay/internal/pool/ports"
	poolservice "poolpay/internal/pool/service"
	poolstore "poolpay/internal/pool/store"
	"poolpay/internal/token"
	httptransport "poolpay/internal/transport/http"
	"poolpay/pkg/domain"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing poolpay",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"registry_ref", cfg.RegistryRef.String(),
	)

	db, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    database.DefaultConfig().MaxOpenConns,
		MaxIdleConns:    database.DefaultConfig().MaxIdleConns,
		ConnMaxLifetime: database.DefaultConfig().ConnMaxLifetime,
	})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck

	var serviceStore ledgerservice.Store = ledgerstore.New()
	var pStore poolservice.Store = poolstore.New()
	var auditStore audit.Store = audit.NewInMemoryStore()
	if db != nil {
		serviceStore = ledgerstore.NewPostgres(db.DB())
		pStore = poolstore.NewPostgres(db.DB())
		auditStore = audit.NewPostgres(db.DB())
		log.Info("using postgres persistence")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory persistence")
	}

	var auditOpts []audit.PublisherOption
	if cfg.AuditBuffer > 0 {
		auditOpts = append(auditOpts,
			audit.WithAsyncBuffer(cfg.AuditBuffer),
			audit.WithPublisherLogger(log),
		)
	}
	auditor := audit.NewPublisher(auditStore, auditOpts...)
	defer auditor.Close()
	transferer := escrow.NewLogTransferer(log)
	traces := tracer.NewOTel()

	ledgerSvc := ledgerservice.NewService(
		cfg.RegistryRef,
		serviceStore,
		escrow.NewAccounts(cfg.RegistryRef.String()),
		transferer,
		auditor,
		log,
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithTracer(traces),
	)

	resolver := adapters.NewStaticResolver(map[domain.RegistryRef]ports.ServiceQuerier{
		cfg.RegistryRef: adapters.NewLocalQuerier(ledgerSvc),
	})
	for ref, baseURL := range cfg.ForeignRegistries {
		resolver.Register(ref, adapters.NewHTTPQuerier(adapters.HTTPQuerierConfig{
			Ref:     ref,
			BaseURL: baseURL,
			Tracer:  traces,
		}))
		log.Info("wired foreign registry", "ref", ref.String(), "base_url", baseURL)
	}

	poolSvc := poolservice.NewService(
		cfg.RegistryRef,
		pStore,
		escrow.NewAccounts(cfg.RegistryRef.String()+"/pools"),
		transferer,
		resolver,
		auditor,
		log,
		poolservice.WithMetrics(poolmetrics.New()),
		poolservice.WithTracer(traces),
	)

	tokens := token.NewService(cfg.JWTSigningKey, "poolpay", "poolpay", cfg.TokenTTL)

	healthHandler := health.New(cfg.Environment)
	if db != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
			defer cancel()
			return db.Health(ctx)
		})
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Validator:      token.NewServiceAdapter(tokens),
		Ledger:         ledgerhandler.New(ledgerSvc, log),
		Pool:           poolhandler.New(poolSvc, log),
		Health:         healthHandler,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
