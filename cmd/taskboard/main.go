package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gurkanbulca/taskboard/internal/board"
	"github.com/gurkanbulca/taskboard/internal/config"
	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/notify"
	"github.com/gurkanbulca/taskboard/internal/profile"
	"github.com/gurkanbulca/taskboard/internal/remote"
	"github.com/gurkanbulca/taskboard/internal/remote/postgrest"
	"github.com/gurkanbulca/taskboard/internal/remote/sqlstore"
	"github.com/gurkanbulca/taskboard/internal/session"
	"github.com/gurkanbulca/taskboard/internal/view"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// healthService is the name the session status is reported under.
const healthService = "taskboard.Session"

// passwordAuth is an auth backend that can sign in with a password.
type passwordAuth interface {
	remote.Auth
	SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error)
}

// backend bundles what the selected remote provides.
type backend struct {
	store remote.Store
	auth  passwordAuth
	close func() error
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("taskboard stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	catalog, err := notify.NewCatalog(logger)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	notes := notify.NewCenter(notify.NewLogNotifier(logger), catalog, cfg.Locale)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Error("failed to close backend", zap.Error(err))
		}
	}()

	profiles := profile.NewRepository(be.store, logger)
	manager := session.NewManager(be.auth, profiles, notes, logger)
	defer manager.Close()

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	unsubscribe := be.auth.Subscribe(func(ev remote.AuthEvent) {
		healthServer.SetServingStatus(healthService, sessionStatus(ev.Session != nil))
	})
	defer unsubscribe()

	if cfg.Credentials.Email != "" {
		if _, err := be.auth.SignInWithPassword(ctx, cfg.Credentials.Email, cfg.Credentials.Password); err != nil {
			logger.Error("sign in failed", zap.String("email", cfg.Credentials.Email), zap.Error(err))
		}
	}

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	healthServer.SetServingStatus(healthService, sessionStatus(manager.User() != nil))

	route, err := view.NewGuard(manager).Check(ctx)
	if err != nil {
		return fmt.Errorf("check route: %w", err)
	}
	logger.Info("route resolved", zap.String("route", string(route)))

	if route == view.RouteBoard {
		showBoard(ctx, be.store, manager, profiles, notes, logger)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.HealthPort))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("health server listening", zap.String("port", cfg.Server.HealthPort))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})
	return g.Wait()
}

// showBoard loads the task list once and logs the two tabs.
func showBoard(ctx context.Context, store remote.Store, manager *session.Manager, profiles *profile.Repository, notes *notify.Center, logger *zap.Logger) {
	b := board.New(store, manager, notes, logger)
	if err := b.Mount(ctx); err != nil {
		return
	}

	user := manager.User()
	if user == nil {
		return
	}
	tabs := view.Partition(b.Tasks(), "", user.ID)
	logger.Info("board loaded",
		zap.String("user_id", user.ID),
		zap.Int("all", len(tabs.All)),
		zap.Int("mine", len(tabs.Mine)),
	)

	assignees, err := view.LoadAssignees(ctx, profiles, notes)
	if err != nil {
		return
	}
	for _, t := range tabs.Mine {
		logger.Debug("assigned task",
			zap.String("task_id", t.ID),
			zap.String("title", t.Title),
			zap.String("status", string(t.Status)),
		)
	}
	logger.Debug("assignees loaded", zap.Int("count", len(assignees)))
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgREST:
		client := postgrest.New(cfg.Remote.URL, cfg.Remote.AnonKey, cfg.Remote.Timeout, logger)
		logger.Info("using postgrest backend", zap.String("url", cfg.Remote.URL))
		return &backend{
			store: client,
			auth:  client.Auth(),
			close: func() error { return nil },
		}, nil

	case config.BackendSQL:
		db, err := database.Open(ctx, database.Config{
			Driver: cfg.Database.Driver,
			DSN:    cfg.Database.DSN(),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			logger.Info("running auto migration")
			if err := database.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("run auto migration: %w", err)
			}
		}

		store := sqlstore.New(db, logger)
		tokens := auth.NewTokenManager(
			cfg.JWT.AccessSecret,
			cfg.JWT.RefreshSecret,
			cfg.JWT.AccessTokenDuration,
			cfg.JWT.RefreshTokenDuration,
		)
		logger.Info("using sql backend", zap.String("driver", cfg.Database.Driver))
		return &backend{
			store: store,
			auth:  sqlstore.NewAccounts(store, tokens, auth.NewPasswordManager(), logger),
			close: db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loggingInterceptor logs each health probe.
func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(fields, zap.Error(err))...)
			return resp, err
		}
		logger.Debug("rpc completed", fields...)
		return resp, err
	}
}

func sessionStatus(signedIn bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if signedIn {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
