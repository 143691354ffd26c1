package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"propmarket-be/internal/config"
	"propmarket-be/internal/db"
	"propmarket-be/internal/logger"
	"propmarket-be/internal/metrics"
	"propmarket-be/internal/middleware"
	"propmarket-be/internal/payment"
	"propmarket-be/internal/payment/handler"

	"go.uber.org/zap"
)

var (
	initDBFunc      = db.InitDB
	startServerFunc = listenAndServe
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := newServer(ctx, cfg, database)
	if err != nil {
		return err
	}

	addr := ":" + cfg.AppPort
	logger.L().Info("payment service listening",
		zap.String("addr", addr),
		zap.String("provider", cfg.PaymentProvider),
		zap.String("callback_url", cfg.CallbackURL()),
	)
	return startServerFunc(ctx, addr, router)
}

// newServer wires the payment stack behind the middleware chain.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (http.Handler, error) {
	gateway, err := payment.NewGateway(cfg.PaymentProvider, payment.GatewayConfig{
		PaystackSecretKey:    cfg.PaystackSecretKey,
		FlutterwaveSecretKey: cfg.FlutterwaveSecretKey,
		Timeout:              cfg.PaymentHTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	paymentSvc := payment.NewService(
		payment.NewRepository(database),
		gateway,
		payment.ServiceConfig{
			CallbackURL: cfg.CallbackURL(),
			Currency:    cfg.PaymentCurrency,
		},
		m,
	)

	limiter := middleware.NewRateLimiter(cfg.InternalSecretKey)
	go limiter.Cleanup(ctx, time.Minute)

	router := setupRouter(handler.NewHandler(paymentSvc), m, cfg.RoutePrefix())

	var h http.Handler = router
	h = limiter.Middleware(h)
	h = middleware.Auth(cfg.JWTSecret)(h)
	h = middleware.CORS(cfg.CORSOrigin)(h)
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h, nil
}

func setupRouter(paymentHandler *handler.Handler, m *metrics.Metrics, prefix string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", m.Handler())

	paymentHandler.Register(mux, prefix, middleware.RequireAuth, middleware.RequireAdmin)
	return mux
}

// listenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to 15 seconds.
func listenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
