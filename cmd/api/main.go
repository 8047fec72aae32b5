package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/background"
	"github.com/BradenHooton/mithaq/internal/config"
	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/handlers"
	"github.com/BradenHooton/mithaq/internal/metrics"
	middlewareCustom "github.com/BradenHooton/mithaq/internal/middleware"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/BradenHooton/mithaq/internal/repositories"
	"github.com/BradenHooton/mithaq/internal/routes"
	"github.com/BradenHooton/mithaq/internal/services"
	"github.com/BradenHooton/mithaq/migrations"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env), slog.String("email_provider", cfg.Email.Provider))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.Pool, migrations.FS, logger); err != nil {
			return err
		}
	}

	trusted, err := pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		database.NewPoolCollector(db),
	)
	m := metrics.New(reg)

	// Live delivery fan-out
	redisClient, err := realtime.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	var broker realtime.Broker
	if redisClient != nil {
		defer redisClient.Close()
		broker = realtime.NewRedisBroker(redisClient, logger)
		logger.Info("live delivery via redis")
	} else {
		broker = realtime.NewLocalBroker()
		logger.Info("live delivery in process")
	}

	mailSender, err := newMailSender(ctx, cfg.Email, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mail sender: %w", err)
	}

	// Initialize repositories
	memberRepo := repositories.NewMemberRepository(db)
	guardianRepo := repositories.NewGuardianRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	reportRepo := repositories.NewReportRepository(db)
	likeRepo := repositories.NewLikeRepository(db)
	cascadeRepo := repositories.NewBanCascadeRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry, cfg.Auth.GuardianTokenExpiry)

	// Guardian dashboard sign-in is disabled without an encryption key
	var authenticator services.Authenticator
	if cfg.Auth.GuardianTOTPKey != nil {
		totpManager, err := auth.NewTOTPManager(cfg.Auth.GuardianTOTPKey, cfg.Auth.GuardianTOTPIssuer)
		if err != nil {
			return fmt.Errorf("failed to initialize guardian authenticator: %w", err)
		}
		authenticator = totpManager
	} else {
		logger.Warn("GUARDIAN_TOTP_KEY not set, guardian dashboard sign-in disabled")
	}

	// Initialize services
	dispatcher := services.NewDispatcher(mailSender, services.DispatcherConfig{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		MaxAttempts: cfg.Notifier.MaxAttempts,
		SendTimeout: cfg.Notifier.SendTimeout,
	}, m, logger)
	notifier := services.NewNotifier(dispatcher, memberRepo, guardianRepo, cfg.Email.AppBaseURL)
	auditService := services.NewAuditService(auditRepo, logger)
	gate := services.NewMessagingGate(guardianRepo, cfg.Messaging.ScreeningThreshold, m, logger)

	authService := services.NewAuthService(memberRepo, tokenManager, logger)
	guardianService := services.NewGuardianService(memberRepo, guardianRepo, authenticator, tokenManager, auditService, logger)
	messagingService := services.NewMessagingService(services.MessagingDeps{
		Members:       memberRepo,
		Guardians:     guardianRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Gate:          gate,
		Notifier:      notifier,
		Events:        broker,
		Audit:         auditService,
	}, cfg.Messaging.MaxMessageLength, m, logger)
	moderationService := services.NewModerationService(services.ModerationDeps{
		Members:       memberRepo,
		Reports:       reportRepo,
		Cascades:      cascadeRepo,
		Messages:      messageRepo,
		Conversations: conversationRepo,
		Likes:         likeRepo,
		Notifier:      notifier,
		Audit:         auditService,
	}, cfg.Moderation.HighSeveritySuspensionDays, m, logger)
	matchService := services.NewMatchService(memberRepo, guardianRepo, likeRepo, notifier, auditService, logger)

	// Bootstrap first admin if configured
	if cfg.Auth.AdminEmail != "" && cfg.Auth.AdminPassword != "" {
		adminCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := authService.EnsureAdmin(adminCtx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Error("failed to ensure admin member", slog.Any("error", err))
		}
		cancel()
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Live sessions outlive request timeouts, so the timeout is applied per group
	router.Group(func(r chi.Router) {
		r.Use(skipUpgrades(middleware.Timeout(60 * time.Second)))
		routes.RegisterRoutes(r, routes.Handlers{
			Auth:          handlers.NewAuthHandler(authService, guardianService, trusted),
			Conversations: handlers.NewConversationHandler(messagingService),
			Live:          handlers.NewLiveHandler(messagingService, broker, cfg.Server.AllowedOrigins, m, logger),
			Moderation:    handlers.NewModerationHandler(moderationService),
			Likes:         handlers.NewLikeHandler(matchService),
			Guardians:     handlers.NewGuardianHandler(guardianService),
			Audit:         handlers.NewAuditHandler(auditService),
		}, routes.Limits{
			Auth:    middlewareCustom.DefaultAuthRateLimit(),
			Send:    middlewareCustom.PerMinute(cfg.Messaging.SendRateLimitPerMinute),
			Reports: middlewareCustom.PerHour(cfg.Moderation.ReportRateLimitPerHour),
			Trusted: trusted,
		}, tokenManager, memberRepo, guardianRepo)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	if cfg.Moderation.SuspensionAutoLift {
		sweeper, err := background.NewSuspensionSweeper(moderationService, cfg.Moderation.SuspensionSweepSchedule, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

func newMailSender(ctx context.Context, cfg config.EmailConfig, logger *slog.Logger) (services.MailSender, error) {
	switch cfg.Provider {
	case config.EmailProviderSES:
		sender, err := services.NewSESMailSender(ctx, cfg.AWSRegion, cfg.FromAddress, logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case config.EmailProviderSendGrid:
		return services.NewSendGridMailSender(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName, logger), nil
	default:
		return services.NewLogMailSender(logger), nil
	}
}

// healthHandler reports database and, when configured, redis health
func healthHandler(db *database.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up"}
		code := http.StatusOK

		if err := db.HealthCheck(ctx); err != nil {
			status["status"], status["database"] = "unhealthy", "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["status"], status["redis"] = "unhealthy", "down"
				code = http.StatusServiceUnavailable
			}
		}

		pkghttp.WriteJSON(w, code, status)
	}
}

// skipUpgrades applies mw to every request except WebSocket upgrades
func skipUpgrades(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
