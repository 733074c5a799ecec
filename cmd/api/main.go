package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/Gee2424/HubFreelance-sub001/internal/auth"
	"github.com/Gee2424/HubFreelance-sub001/internal/config"
	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/db"
	"github.com/Gee2424/HubFreelance-sub001/internal/identity"
	"github.com/Gee2424/HubFreelance-sub001/internal/logging"
	"github.com/Gee2424/HubFreelance-sub001/internal/metrics"
	"github.com/Gee2424/HubFreelance-sub001/internal/middleware"
	"github.com/Gee2424/HubFreelance-sub001/internal/policy"
	"github.com/Gee2424/HubFreelance-sub001/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg); err != nil {
		slog.Error("server exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Initialize database
	gdb, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	if err := data.Migrate(gdb); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	stores := data.NewStores(gdb)

	// The activity feed moves to MongoDB when one is configured
	if cfg.MongoURI != "" {
		mc, err := db.NewMongo(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() { _ = mc.Close(context.Background()) }()
		if err := mc.CreateIndexes(ctx); err != nil {
			return err
		}
		stores.Activities = data.NewMongoActivityStore(mc.ActivitiesCollection(), mc.CountersCollection())
		slog.Info("activity feed stored in MongoDB")
	}

	keys, activeKID := cfg.SigningKeys()
	jwtMgr := auth.NewJWTManagerFromKeys(keys, activeKID, cfg.TokenTTL)

	pol, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return err
	}

	m := metrics.New()

	// Realtime fan-out goes through Redis when several API instances share
	// one user base; otherwise it stays in process.
	var broker realtime.Broker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		broker = realtime.NewRedisBroker(rdb, realtime.WithObserver(m))
	} else {
		broker = realtime.NewLocalBroker(m)
	}
	defer func() { _ = broker.Close() }()

	// Create limiter store (small burst to allow a couple of quick retries)
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiter.Stop()

	srv := newServer(stores, jwtMgr, pol, broker, m)
	if cfg.Identity.URL != "" {
		srv.identity = identity.NewGoTrue(cfg.Identity.URL, cfg.Identity.PublicKey, cfg.Identity.ServiceKey)
	}

	// If TLS certs are configured, create server credentials and require TLS
	var grpcOpts []grpc.ServerOption
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certs: %w", err)
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}
	grpcServer := srv.newGRPC(limiter, grpcOpts...)
	e := srv.newEcho(limiter)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errc := make(chan error, 2)
	go func() {
		slog.Info("gRPC server listening", "addr", lis.Addr().String())
		errc <- grpcServer.Serve(lis)
	}()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		slog.Info("HTTP server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errc:
		slog.Error("listener failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.stopStreams()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "err", err)
	}
	shutdownGRPC(shutdownCtx, grpcServer)
	return nil
}
