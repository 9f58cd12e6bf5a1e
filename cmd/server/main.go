// server runs the LoanDesk REST API and the gRPC health endpoint.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"loandesk/backend/internal/audit"
	auditrepo "loandesk/backend/internal/audit/repository"
	"loandesk/backend/internal/config"
	"loandesk/backend/internal/db"
	"loandesk/backend/internal/db/migrate"
	healthhandler "loandesk/backend/internal/health/handler"
	identityservice "loandesk/backend/internal/identity/service"
	loanbuyerrepo "loandesk/backend/internal/loanbuyer/repository"
	"loandesk/backend/internal/logger"
	"loandesk/backend/internal/observability/metrics"
	"loandesk/backend/internal/ownership"
	"loandesk/backend/internal/platform/rbac"
	"loandesk/backend/internal/policy/engine"
	"loandesk/backend/internal/security"
	"loandesk/backend/internal/server"
	"loandesk/backend/internal/session"
	sessionrepo "loandesk/backend/internal/session/repository"
	telemetryotel "loandesk/backend/internal/telemetry/otel"
	"loandesk/backend/internal/telemetry/producer"
	userrepo "loandesk/backend/internal/user/repository"
)

const shutdownTimeout = 15 * time.Second

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	runMigrations := flags.Bool("migrate", false, "apply pending migrations before serving")
	httpAddr := flags.String("http-addr", "", "override HTTP_ADDR")
	grpcAddr := flags.String("grpc-addr", "", "override GRPC_ADDR (empty config value disables gRPC)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}

	log := logger.Init(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	defer logger.Sync()

	if err := run(cfg, *runMigrations, log); err != nil {
		log.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, runMigrations bool, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}
	if runMigrations {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer conn.Close()

	m := metrics.New()

	sessions, closeSessions, err := openSessionRepo(cfg, conn)
	if err != nil {
		return err
	}
	defer closeSessions()
	store := session.NewStore(sessions, cfg.TokenTTL(), log, session.WithMetrics(m))

	sinks := []audit.Sink{telemetryotel.NewActivityEmitter(providers.LoggerProvider)}
	var kafka *producer.KafkaProducer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafka = producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		sinks = append(sinks, kafka)
		log.Info("mirroring activity to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.AuditKafkaTopic))
	}
	activity := auditrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(activity, log, audit.Options{
		QueueSize:  cfg.AuditQueueSize,
		PruneEvery: cfg.AuditPruneEvery,
		Retention:  cfg.AuditRetention(),
		Sinks:      sinks,
		Metrics:    m,
	})
	if n, err := auditLogger.Prune(ctx); err != nil {
		log.Warn("startup activity prune failed", zap.Error(err))
	} else if n > 0 {
		log.Info("pruned activity entries", zap.Int64("count", n))
	}

	decider, err := engine.NewRegoDecider(ctx, engine.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("policy engine: %w", err)
	}
	policy := rbac.NewPolicy(decider, ownership.NewPostgresRegistry(conn), cfg.AdminRole, m, log)

	hasher := security.NewHasher(cfg.BcryptCost)
	auth := identityservice.NewAuthService(userrepo.NewPostgresRepository(conn), store, hasher, auditLogger, m, log)
	checker := healthhandler.NewChecker(conn, decider)

	router := server.NewRouter(server.HTTPDeps{
		Log:               log,
		Metrics:           m,
		Tokens:            store,
		TokenHeader:       cfg.TokenHeader,
		Auth:              auth,
		LoginRateLimit:    cfg.LoginRateLimit,
		Policy:            policy,
		Audit:             auditLogger,
		AuditPreviewLimit: cfg.AuditPreviewLimit,
		ActivityRepo:      activity,
		LoanBuyers:        loanbuyerrepo.NewPostgresRepository(conn),
		Health:            checker,
		CORSOrigins:       cfg.CORSOrigins(),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go store.RunSweeper(sweepCtx, cfg.SweepInterval())

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("token_store", cfg.TokenStore))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	grpcSrv := server.NewGRPCServer(checker)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			log.Info("grpc health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	cancelSweep()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	grpcSrv.GracefulStop()
	if err := auditLogger.Close(shutdownCtx); err != nil {
		log.Warn("audit drain", zap.Error(err))
	}
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			log.Warn("kafka close", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("server stopped")
	return serveErr
}

// openSessionRepo selects the token store backend from TOKEN_STORE.
func openSessionRepo(cfg *config.Config, conn *sql.DB) (sessionrepo.Repository, func(), error) {
	if cfg.TokenStore != config.TokenStoreRedis {
		return sessionrepo.NewPostgresRepository(conn), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return sessionrepo.NewRedisRepository(rdb), func() { _ = rdb.Close() }, nil
}
