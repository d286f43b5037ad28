package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ahinestrog/onlinebookstore/internal/auth"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/catalog"
	"github.com/ahinestrog/onlinebookstore/internal/checkout"
	"github.com/ahinestrog/onlinebookstore/internal/config"
	"github.com/ahinestrog/onlinebookstore/internal/events"
	"github.com/ahinestrog/onlinebookstore/internal/grpcapi"
	"github.com/ahinestrog/onlinebookstore/internal/httpapi"
	"github.com/ahinestrog/onlinebookstore/internal/metrics"
	"github.com/ahinestrog/onlinebookstore/internal/order"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
	"github.com/ahinestrog/onlinebookstore/internal/user"
)

func main() {
	cfg := config.LoadConfig()
	config.SetupLogger(cfg)
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("bookstore stopped")
	}
	log.Info().Msg("bye")
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info().
		Str("env", cfg.ServiceEnv).
		Str("http", cfg.HTTPAddr).
		Str("grpc", cfg.GRPCAddr).
		Str("db", cfg.DBPath).
		Msg("starting bookstore")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, storage.Options{
		Driver:     cfg.DBDriver,
		Path:       cfg.DBPath,
		MaxConns:   cfg.DBMaxConns,
		TxAttempts: cfg.TxAttempts,
		TxBackoff:  cfg.TxBackoff,

		BusyTimeout: cfg.DBBusyTimeout,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.SeedOnStart {
		seeded, err := db.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			log.Info().Msg("seeded sample books")
		}
	}

	pub := events.Connect(cfg.RabbitURL, cfg.RabbitExchange)
	defer pub.Close()

	m := metrics.New()
	users := user.NewService(user.NewSQLiteRepo(db), pub, 0)
	authn := auth.NewAuthenticator(auth.NewTokens(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL), users)
	carts := cart.NewManager(cart.NewSQLiteRepo(db), pub, m)
	engine := checkout.NewEngine(checkout.NewSQLiteRepo(db), pub, m)
	orders := order.NewQuery(order.NewSQLiteRepo(db))

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.Handler(httpapi.Deps{
			Users:          users,
			Auth:           authn,
			Catalog:        catalog.NewService(catalog.NewSQLiteRepo(db), pub),
			Carts:          carts,
			Checkout:       engine,
			Orders:         orders,
			Metrics:        m,
			DB:             db,
			CORSOrigins:    cfg.CORSOrigins,
			RequestTimeout: cfg.RequestLimit,
			Release:        cfg.ServiceEnv == "production",
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv, health := grpcapi.NewServer(grpcapi.NewStore(carts, engine, orders), authn, m)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down...")
		health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		done := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(done)
		}()
		err := httpSrv.Shutdown(shutdownCtx)
		select {
		case <-done:
		case <-shutdownCtx.Done():
			grpcSrv.Stop()
		}
		return err
	})

	return g.Wait()
}
