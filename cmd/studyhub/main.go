package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/studyhub/internal/config"
	"github.com/xxxsen/studyhub/internal/db"
	"github.com/xxxsen/studyhub/internal/handler"
	"github.com/xxxsen/studyhub/internal/job"
	"github.com/xxxsen/studyhub/internal/metrics"
	"github.com/xxxsen/studyhub/internal/middleware"
	"github.com/xxxsen/studyhub/internal/pkg/jwt"
	"github.com/xxxsen/studyhub/internal/pkg/password"
	"github.com/xxxsen/studyhub/internal/pkg/timeutil"
	"github.com/xxxsen/studyhub/internal/repo"
	"github.com/xxxsen/studyhub/internal/schedule"
	"github.com/xxxsen/studyhub/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "studyhub",
		Short: "studyhub auth service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file; environment variables override it")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "serve the auth api",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.Log.File,
		cfg.Log.Level,
		cfg.Log.FileCount,
		cfg.Log.FileSize,
		cfg.Log.KeepDays,
		cfg.Log.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("env", cfg.Env),
	)
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return conn, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	log := logutil.GetLogger(context.Background())
	log.Info("starting server",
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("production", cfg.IsProduction()),
		zap.Bool("smtp", cfg.Mail.Enabled()),
	)

	clock := timeutil.System
	userRepo := repo.NewUserRepo(conn)
	profileRepo := repo.NewProfileRepo(conn)
	otpRepo := repo.NewOTPRepo(conn)

	var (
		recorder       metrics.Recorder = metrics.Nop
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector := metrics.NewCollector(reg)
		recorder = collector
		metricsHandler = collector.Handler()
	}

	issuer := jwt.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTExpiresIn, clock)
	otpService := service.NewOTPService(otpRepo, clock, cfg.OTPExpiry(), cfg.DependencyTimeout)
	authService := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		Profiles: profileRepo,
		OTP:      otpService,
		Hasher:   password.NewHasher(cfg.BcryptCost, cfg.HashWorkers),
		Tokens:   issuer,
		Mailer:   service.NewEmailSender(cfg.Mail),
		Clock:    clock,
		Timeout:  cfg.DependencyTimeout,
	})

	deps := handler.RouterDeps{
		Auth: handler.NewAuthHandler(authService, handler.CookieOptions{
			TTL:    cfg.CookieTTL(),
			Secure: cfg.IsProduction(),
		}, recorder),
		Tokens:      issuer,
		RateLimiter: middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitCapacity, recorder),
		Metrics:     metricsHandler,
	}

	engine, err := webapi.NewEngine(
		"/api",
		cfg.HTTPAddr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.AccessLog(),
			middleware.CORS(cfg.CORSOriginList()),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewOTPCleanupJob(otpRepo, cfg.OTPExpiry(), clock), cfg.OTPCleanupCron); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	log.Info("server stopping...")
	return nil
}
