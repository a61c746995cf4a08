package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"agrimarket/internal/cache"
	"agrimarket/internal/config"
	"agrimarket/internal/database"
	"agrimarket/internal/handler"
	"agrimarket/internal/integration"
	"agrimarket/internal/logger"
	"agrimarket/internal/metrics"
	"agrimarket/internal/mw"
	"agrimarket/internal/service"
	"agrimarket/internal/worker"
)

func main() {
	cfg := config.New()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("failed to init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewDB(ctx, cfg.DatabaseURI, database.PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		zl.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer database.CloseDB(db, zl)

	if err := database.InitSchema(ctx, db); err != nil {
		zl.Fatal("failed to init DB schema", zap.Error(err))
	}

	var store cache.Cache = cache.Nop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisAddr)
		if err != nil {
			zl.Warn("redis unavailable, integration cache disabled", zap.Error(err))
		} else {
			defer rc.Close()
			store = rc
		}
	}

	// Services
	authSvc := service.NewAuthService(db)
	userSvc := service.NewUserService(db)
	statsSvc := service.NewStatsService(db, zl)
	productSvc := service.NewProductService(db)
	orderSvc := service.NewOrderService(db)
	requestSvc := service.NewOrderRequestService(db)
	appSvc := service.NewApplicationService(db)
	scheduleSvc := service.NewScheduleService(db, zl)
	ratingSvc := service.NewRatingService(db)

	// Integrations
	opts := integration.Options{Timeout: cfg.HTTPTimeout, Cache: store, CacheTTL: cfg.CacheTTL, Logger: zl}
	weather := integration.NewWeatherClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey, opts)
	geocoder := integration.NewGeocodeClient(cfg.GeocodeAPIURL, opts)
	chat := integration.NewChatClient(cfg.ChatAPIURL, cfg.ChatAPIKey, cfg.ChatModel, opts)
	quality := integration.NewQualityClient(cfg.QualityAPIURL, opts)

	limiter := mw.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.RequestLogger(zl))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/auth/register", handler.RegisterHandler(authSvc, cfg.JWTSecret, zl))
	r.Post("/api/auth/login", handler.LoginHandler(authSvc, cfg.JWTSecret, zl))
	r.Get("/healthz", handler.HealthHandler(db))
	r.Handle("/metrics", metrics.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/api/users/{id}", handler.GetUserHandler(userSvc, zl))
		r.Put("/api/users/{id}", handler.UpdateUserHandler(userSvc, zl))
		r.Get("/api/user-stats", handler.UserStatsHandler(statsSvc, zl))

		r.Get("/api/products", handler.ListProductsHandler(productSvc, zl))
		r.Post("/api/products", handler.CreateProductHandler(productSvc, zl))
		r.Get("/api/products/{id}", handler.GetProductHandler(productSvc, zl))
		r.Put("/api/products/{id}", handler.UpdateProductHandler(productSvc, zl))
		r.Delete("/api/products/{id}", handler.DeleteProductHandler(productSvc, zl))

		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc, zl))
		r.Post("/api/orders", handler.CreateOrderHandler(orderSvc, zl))
		r.Get("/api/orders/{id}", handler.GetOrderHandler(orderSvc, zl))
		r.Put("/api/orders/{id}", handler.UpdateOrderHandler(orderSvc, zl))

		r.Get("/api/order-requests", handler.ListOrderRequestsHandler(requestSvc, zl))
		r.Post("/api/order-requests", handler.CreateOrderRequestHandler(requestSvc, zl))

		r.Get("/api/order-applications", handler.ListApplicationsHandler(appSvc, zl))
		r.Post("/api/order-applications", handler.SubmitApplicationHandler(appSvc, zl))
		r.Put("/api/order-applications", handler.DecideApplicationHandler(appSvc, zl))

		r.Get("/api/schedules", handler.ListSchedulesHandler(scheduleSvc, zl))
		r.Post("/api/schedules", handler.CreateScheduleHandler(scheduleSvc, zl))
		r.Get("/api/schedules/due", handler.DueSchedulesHandler(scheduleSvc, zl))
		r.With(mw.RequireUsers(cfg.ScheduleOperators)).
			Post("/api/schedules/process", handler.ProcessSchedulesHandler(scheduleSvc, zl))
		r.Put("/api/schedules/{id}", handler.UpdateScheduleHandler(scheduleSvc, zl))
		r.Delete("/api/schedules/{id}", handler.DeleteScheduleHandler(scheduleSvc, zl))

		r.Get("/api/ratings", handler.ListRatingsHandler(ratingSvc, zl))
		r.Post("/api/ratings", handler.CreateRatingHandler(ratingSvc, zl))

		r.Get("/api/weather", handler.WeatherHandler(weather, zl))
		r.Get("/api/geocode/reverse", handler.ReverseGeocodeHandler(geocoder, zl))
		r.Post("/api/quality/analyze", handler.QualityHandler(quality, zl))

		r.With(limiter.Handler).Post("/api/chat", handler.ChatHandler(chat, zl))
		r.With(limiter.Handler).Get("/api/schemes", handler.SchemesHandler(chat, zl))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPTimeout + 10*time.Second,
	}

	workerDone := make(chan struct{})
	if cfg.ScheduleCron != "" {
		scheduleWorker := worker.NewScheduleWorker(scheduleSvc, cfg.ScheduleCron, zl)
		go func() {
			defer close(workerDone)
			if err := scheduleWorker.Start(ctx); err != nil {
				zl.Error("schedule worker failed", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	go func() {
		zl.Info("starting server", zap.String("addr", cfg.RunAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server failed", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		zl.Error("server shutdown failed", zap.Error(err))
	}
	<-workerDone

	zl.Info("server stopped")
}
