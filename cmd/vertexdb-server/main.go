package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/vertexdb/vertexdb/internal/auth"
	"github.com/vertexdb/vertexdb/internal/config"
	"github.com/vertexdb/vertexdb/internal/consistency"
	"github.com/vertexdb/vertexdb/internal/edgestore"
	"github.com/vertexdb/vertexdb/internal/graphapi"
	"github.com/vertexdb/vertexdb/internal/health"
	"github.com/vertexdb/vertexdb/internal/metrics"
	"github.com/vertexdb/vertexdb/internal/objectstore"
	"github.com/vertexdb/vertexdb/internal/oracle"
	"github.com/vertexdb/vertexdb/internal/schema"
	"github.com/vertexdb/vertexdb/internal/storage"
	"github.com/vertexdb/vertexdb/internal/storage/memstore"
	transportgrpc "github.com/vertexdb/vertexdb/internal/transport/grpc"
	"github.com/vertexdb/vertexdb/internal/zookie"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()
	if *configPath == "" {
		*configPath = "./config.yaml"
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting vertexdb server")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	m := metrics.New()

	store := memstore.New(cfg.Storage.ObjectCacheSize, logger)

	pool := storage.NewPool(cfg.Server.MaxInFlightTxns)
	codec := zookie.NewCodec([]byte(cfg.Zookie.HMACSecret))
	oc := oracle.New(store, store, store, pool, codec)

	schemas := schema.New(store)
	resolver := consistency.New(oc)
	objects := objectstore.New(oc, schemas)
	edges := edgestore.New(oc, schemas, objects)
	api := graphapi.New(oc, schemas, resolver, objects, edges)

	publicKeyPEM, err := os.ReadFile(cfg.JWT.PublicKeyPath)
	if err != nil {
		logger.Fatal("failed to read jwt public key", zap.Error(err))
	}
	validator, err := auth.NewValidator(publicKeyPEM, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatal("failed to initialize jwt validator", zap.Error(err))
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSecond), cfg.Server.RateLimitBurst)

	interceptor := transportgrpc.Chain(
		transportgrpc.RequestIDInterceptor(),
		transportgrpc.RecoveryInterceptor(logger),
		transportgrpc.RateLimitInterceptor(limiter, m),
		transportgrpc.LoggingInterceptor(logger, m),
		transportgrpc.ErrorTranslationInterceptor(),
	)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(interceptor),
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)

	schemaServer := transportgrpc.NewSchemaServer(api, validator)
	graphServer := transportgrpc.NewGraphServer(api, validator)
	grpcServer.RegisterService(&transportgrpc.SchemaServiceDesc, schemaServer)
	grpcServer.RegisterService(&transportgrpc.GraphServiceDesc, graphServer)

	checker := health.NewChecker(logger, func(ctx context.Context) error {
		_, err := oc.CurrentSnapshot(ctx)
		return err
	})
	healthCtx, cancelHealth := context.WithCancel(context.Background())
	go checker.Start(healthCtx, 5*time.Second)
	go health.Serve(healthCtx, cfg.Observability.HealthPort, checker, logger)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Observability.MetricsPort)
		logger.Info("starting metrics server", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("address", cfg.Address()))
		serverErrors <- grpcServer.Serve(listener)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("received signal", zap.String("signal", sig.String()))
	}

	logger.Info("shutting down gracefully")
	cancelHealth()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("gRPC server stopped gracefully")
	case <-time.After(10 * time.Second):
		logger.Warn("graceful stop timed out, forcing shutdown")
		grpcServer.Stop()
	}

	logger.Info("vertexdb server stopped")
}
