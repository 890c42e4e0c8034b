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

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/sohaeng-web/internal/account"
	"github.com/Proton-105/sohaeng-web/internal/api"
	apperrors "github.com/Proton-105/sohaeng-web/internal/errors"
	"github.com/Proton-105/sohaeng-web/internal/health"
	"github.com/Proton-105/sohaeng-web/internal/i18n"
	"github.com/Proton-105/sohaeng-web/internal/idempotency"
	"github.com/Proton-105/sohaeng-web/internal/jobs"
	jobhandlers "github.com/Proton-105/sohaeng-web/internal/jobs/handlers"
	"github.com/Proton-105/sohaeng-web/internal/lifecycle"
	"github.com/Proton-105/sohaeng-web/internal/media"
	"github.com/Proton-105/sohaeng-web/internal/middleware"
	"github.com/Proton-105/sohaeng-web/internal/notice"
	"github.com/Proton-105/sohaeng-web/internal/payment"
	"github.com/Proton-105/sohaeng-web/internal/query"
	"github.com/Proton-105/sohaeng-web/internal/ratelimit"
	"github.com/Proton-105/sohaeng-web/internal/session"
	"github.com/Proton-105/sohaeng-web/internal/swipe"
	"github.com/Proton-105/sohaeng-web/internal/validation"
	"github.com/Proton-105/sohaeng-web/internal/web"
	"github.com/Proton-105/sohaeng-web/pkg/config"
	"github.com/Proton-105/sohaeng-web/pkg/graceful"
	"github.com/Proton-105/sohaeng-web/pkg/logger"
	"github.com/Proton-105/sohaeng-web/pkg/metrics"
	redisclient "github.com/Proton-105/sohaeng-web/pkg/redis"
)

const (
	idempotencyMaxAge = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sohaeng-web: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log, level := logger.New(logger.Options{
		Level:         cfg.Log.Level,
		File:          cfg.Log.File,
		SentryEnabled: sentryEnabled,
		Service:       "sohaeng-web",
	})
	slog.SetDefault(log)
	log.Info("starting sohaeng web", slog.String("env", cfg.AppEnv), slog.String("addr", cfg.Server.Addr), slog.String("likes_mode", cfg.Likes.Mode))

	rdb, err := redisclient.New(ctx, redisclient.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}

	shutdown := lifecycle.NewShutdown(log, cfg.Server.ShutdownTimeout)

	errs := apperrors.NewHandler(log, sentryEnabled)
	breakerSettings := apperrors.DefaultBreakerSettings()
	breakerSettings.OnStateChange = func(from, to apperrors.State) {
		log.Warn("backend circuit breaker changed state", slog.String("from", from.String()), slog.String("to", to.String()))
	}
	apiClient := api.New(cfg.API.BaseURL, cfg.API.Timeout,
		api.WithBreaker(apperrors.NewCircuitBreaker(breakerSettings)),
		api.WithLogger(log),
	)

	retry := query.DefaultRetryPolicy()
	retry.MaxRetries = cfg.Query.MaxRetries
	cache := query.NewCache(rdb.Client, cfg.Query.StaleTime, retry, log)

	translations, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return err
	}

	validate := validation.New()
	notices := notice.NewStore(rdb.Client, log)
	guard := idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)

	swipe.RegisterTransitionRecorder(metrics.RecordSwipeTransition)
	cursors := swipe.NewRedisStorage(rdb.Client, log)
	deliverer := swipe.NewDeliverer(apiClient.Recommendations(), notices, cache, log)

	idemCleaner := idempotency.NewCleaner(rdb.Client, log, cleanupInterval, idempotencyMaxAge)

	var dispatcher swipe.Dispatcher
	switch cfg.Likes.Mode {
	case "queue":
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

		manager := jobs.NewManager(redisOpt, log)
		dispatcher = jobs.NewLikeDispatcher(manager, log)

		worker := jobs.NewWorker(redisOpt, jobs.Queues, cfg.Likes.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeLikeSend, jobhandlers.NewLikeSendHandler(deliverer, log))
		worker.RegisterHandler(jobs.TaskTypeCleanupData, jobhandlers.NewCleanupHandler(idemCleaner, log))
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start asynq worker: %w", err)
		}

		scheduler := jobs.NewScheduler(redisOpt, idempotencyMaxAge, log)
		if err := scheduler.RegisterTasks(); err != nil {
			return fmt.Errorf("register scheduled tasks: %w", err)
		}
		scheduler.Run()

		shutdown.Register(lifecycle.StageWorkers, "asynq-worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})
		shutdown.Register(lifecycle.StageProducers, "asynq-scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
		shutdown.Register(lifecycle.StageStores, "asynq-client", func(context.Context) error {
			return manager.Close()
		})
	default:
		inline := swipe.NewInlineDispatcher(deliverer, cfg.API.Timeout)
		dispatcher = inline
		shutdown.Register(lifecycle.StageWorkers, "inline-likes", inline.Wait)
		go idemCleaner.Run(ctx)
	}

	swipeService := swipe.NewService(web.RecommendationFeed(apiClient, cache), cursors, dispatcher, log,
		swipe.WithGuard(guard),
		swipe.WithNotifier(notices),
		swipe.WithLocks(rdb.Client),
	)

	rules := ratelimit.NewRules(cfg.RateLimit)
	fallback := ratelimit.NewMemoryLimiter()
	limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), fallback, log)
	go ratelimit.NewCleaner(rdb.Client, fallback, log, time.Minute, 0).Run(ctx)

	go metrics.NewCursorCollector(cursors, log).Run(ctx)

	var uploader media.Uploader
	if cfg.Cloudinary.URL != "" {
		cld, err := media.NewCloudinaryUploader(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			return err
		}
		uploader = cld
	} else {
		log.Warn("cloudinary is not configured, photo uploads are disabled")
	}

	codec := session.NewCodec(cfg.Session.Secret, cfg.Session.TTL)
	cookies := session.NewCookies(codec, cfg.Session.CookieName, cfg.Session.Secure)
	kakao := session.NewKakaoProvider(cfg.Kakao.ClientID, cfg.Kakao.ClientSecret, cfg.Kakao.RedirectURL)

	checker := health.NewChecker(log)
	checker.AddCheck("redis", health.NewPingChecker(rdb))
	checker.AddCheck("backend", health.NewPingChecker(apiClient))
	healthEndpoints := lifecycle.NewHealthEndpoints(checker, log)

	server, err := web.New(web.Deps{
		Log:      log,
		Errors:   errs,
		I18n:     translations,
		Cookies:  cookies,
		Auth:     session.NewHandlers(kakao, apiClient.Auth(), cookies, errs, log),
		Account:  account.NewService(apiClient.Users(), cache, validate, log),
		Swipe:    swipeService,
		API:      apiClient,
		Cache:    cache,
		Notices:  notices,
		Photos:   media.NewPhotos(uploader),
		Payment: web.PaymentDeps{
			Account: payment.AccountFromConfig(cfg.Payment),
			Window:  cfg.Payment.Window,
			Refs:    payment.NewRefs(rdb.Client),
		},
		Limits:   middleware.NewRateLimitMiddleware(limiter, rules, notices, log),
		Guard:    guard,
		Validate: validate,
		Health:   healthEndpoints,
		Metrics:  promhttp.Handler(),
		Origins:  cfg.CORS.AllowedOrigins,
	})
	if err != nil {
		return err
	}

	config.Watch(v, func(next *config.Config) {
		level.Set(logger.ParseLevel(next.Log.Level))
		rules.Update(next.RateLimit)
		log.Info("configuration reloaded", slog.String("log_level", next.Log.Level), slog.Bool("ratelimit", next.RateLimit.Enabled))
	}, func(err error) {
		log.Warn("ignoring invalid configuration change", slog.Any("error", err))
	})

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}, cfg.Server.ShutdownTimeout,
		graceful.WithReadyHook(healthEndpoints.MarkStarted),
		graceful.WithDrainingHook(healthEndpoints.MarkDraining),
	)

	serveErr := httpServer.ListenAndServe(ctx)

	shutdown.Register(lifecycle.StageStores, "redis", func(context.Context) error {
		return rdb.Close()
	})
	if sentryEnabled {
		shutdown.Register(lifecycle.StageStores, "sentry", func(ctx context.Context) error {
			if !sentry.Flush(2 * time.Second) {
				return errors.New("sentry flush timed out")
			}
			return nil
		})
	}

	// ctx is already cancelled here
	if err := shutdown.Execute(context.Background()); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
		return errors.Join(serveErr, err)
	}

	log.Info("sohaeng web stopped")
	return serveErr
}
