package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"

	"tenant-access-control/internal/config"
	"tenant-access-control/internal/db"
	"tenant-access-control/internal/db/migrate"
	healthcheck "tenant-access-control/internal/health"
	"tenant-access-control/internal/logger"
	"tenant-access-control/internal/notification"
	"tenant-access-control/internal/notification/redisqueue"
	"tenant-access-control/internal/notification/smtp"
	"tenant-access-control/internal/platform/rbac"
	"tenant-access-control/internal/server"
	telemetryotel "tenant-access-control/internal/telemetry/otel"
	tenancyhandler "tenant-access-control/internal/tenancy/handler"
)

const serviceName = "tenant-access-control"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: serviceName})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	if !cfg.IsProduction() {
		if err := migrate.Run(cfg.DatabaseURL, migrate.Up); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTELServiceName,
		Insecure:    cfg.OTLPInsecure,
	}, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	notifier, closeNotifier, err := newNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()
	dispatcher := notification.NewDispatcher(notifier, log.With().Str("component", "notification").Logger())
	defer dispatcher.Wait()

	observer := rbac.Observers{rbac.MetricsObserver{}}
	if cfg.OTLPEndpoint != "" {
		observer = append(observer, telemetryotel.NewDecisionEmitter(providers.LoggerProvider))
	}
	stack := server.NewStack(sqlDB, cfg, dispatcher, observer, log)

	hs := health.NewServer()
	checker := healthcheck.NewChecker(sqlDB, hs, tenancyhandler.ServiceName)
	if err := checker.Check(ctx); err != nil {
		log.Warn().Err(err).Msg("initial readiness check failed")
	}

	grpcServer := server.NewGRPCServer(server.Options{
		Verifier: stack.Codec,
		Log:      log.With().Str("component", "grpc").Logger(),
		Audit:    stack.Audit,
		Tracing:  cfg.OTLPEndpoint != "",
	}, server.Deps{Tenancy: stack.Handler, Health: hs})
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		return server.ServeGRPC(gctx, grpcServer, lis, hs)
	})
	if cfg.OpsEnabled() {
		opsServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.NewOpsRouter(checker),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("ops HTTP listening")
			return server.ServeHTTP(gctx, opsServer)
		})
	} else {
		log.Info().Msg("ops HTTP disabled")
	}
	return g.Wait()
}

// newNotifier picks the delivery path: the Redis outbox when configured,
// else inline SMTP, else none.
func newNotifier(ctx context.Context, cfg *config.Config, log zerolog.Logger) (notification.Notifier, func(), error) {
	switch {
	case cfg.OutboxEnabled():
		client, err := redisqueue.Connect(ctx, redisqueue.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("notifications via redis outbox")
		return redisqueue.New(client, redisqueue.DefaultKey), closeRedis(client, log), nil
	case cfg.MailEnabled():
		log.Info().Str("host", cfg.SMTPHost).Msg("notifications via inline smtp")
		return smtp.NewSender(smtpConfig(cfg)), func() {}, nil
	default:
		log.Warn().Msg("no REDIS_ADDR or SMTP_HOST; outbound mail is dropped")
		return nil, func() {}, nil
	}
}

func closeRedis(client *redis.Client, log zerolog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
}

func smtpConfig(cfg *config.Config) smtp.Config {
	return smtp.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FrontendURL: cfg.FrontendURL,
	}
}
