package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/civictrack/civictrack/automod"
	"github.com/civictrack/civictrack/automod/cachestore"
	"github.com/civictrack/civictrack/automod/countstore"
	"github.com/civictrack/civictrack/automod/engine"
	"github.com/civictrack/civictrack/automod/indexstore"
	"github.com/civictrack/civictrack/automod/setstore"
	"github.com/civictrack/civictrack/automod/store"
	"github.com/civictrack/civictrack/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Server struct {
	engine   *automod.Engine
	echo     *echo.Echo
	httpd    *http.Server
	metricsd *http.Server
	logger   *slog.Logger
	rdb      *redis.Client
}

type Config struct {
	Logger        *slog.Logger
	Bind          string
	MetricsListen string
	// optional; state is kept in memory if nil
	DB *gorm.DB
	// optional; counters, caches and indexes are kept in memory if nil
	Redis            *redis.Client
	SetsFileJSON     string
	SlackWebhookURL  string
	ContentURLPrefix string
	Engine           engine.Config
	// per client IP; zero disables the limit
	RateLimit float64
	// metrics registry for HTTP request metrics; defaults to the global registry
	Registerer prometheus.Registerer
}

// Builds the engine from config: gorm store if a database is given, redis-backed counters, caches and indexes if redis is given, memory otherwise.
func NewEngine(config Config) (*automod.Engine, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var st store.Store
	if config.DB != nil {
		gs, err := store.NewGormStore(config.DB)
		if err != nil {
			return nil, fmt.Errorf("initializing database store: %w", err)
		}
		st = gs
	} else {
		logger.Warn("no database configured, moderation state is kept in memory only")
		st = store.NewMemStore()
	}

	eng, err := engine.NewEngine(config.Engine, st)
	if err != nil {
		return nil, err
	}
	eng.Logger = logger.With("system", "engine")

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %w", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}
	eng.Sets = sets

	if config.Redis != nil {
		eng.Counters = countstore.NewRedisCountStore(config.Redis)
		eng.Cache = cachestore.NewRedisCacheStore(config.Redis, 30*time.Minute)
		eng.Indexes = indexstore.NewRedisIndexStore(config.Redis)
	} else {
		eng.Counters = countstore.NewMemCountStore()
		eng.Cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		eng.Indexes = indexstore.NewMemIndexStore()
	}

	if config.SlackWebhookURL != "" {
		n := engine.NewSlackNotifier(config.SlackWebhookURL)
		n.ContentURLPrefix = config.ContentURLPrefix
		eng.Notifier = n
	}
	return eng, nil
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	config.Logger = logger

	eng, err := NewEngine(config)
	if err != nil {
		return nil, err
	}
	return newServerForEngine(eng, config), nil
}

func newServerForEngine(eng *automod.Engine, config Config) *Server {
	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine: eng,
		echo:   e,
		logger: config.Logger,
		rdb:    config.Redis,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}
	if config.MetricsListen != "" {
		srv.metricsd = metrics.NewServer(config.MetricsListen)
	}

	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e.HideBanner = true
	e.Validator = &requestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(slogecho.New(config.Logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "civicmod",
		Registerer: reg,
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))
	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(config.RateLimit))))
	}

	srv.registerRoutes()
	return srv
}

func (srv *Server) registerRoutes() {
	e := srv.echo
	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/flag-reasons", srv.HandleFlagReasons)

	e.POST("/content", srv.HandleSubmitContent)
	e.GET("/content", srv.HandleListContent)
	e.GET("/content/:id", srv.HandleGetContent)
	e.POST("/content/:id/flag", srv.HandleFlag)
	e.POST("/content/:id/unflag", srv.HandleUnflag)

	e.POST("/accounts/:id", srv.HandleEnsureAccount)
	e.GET("/accounts/:id", srv.HandleGetAccount)
	e.GET("/accounts/:id/can/:action", srv.HandleCanPerform)

	mod := srv.requireModerator
	e.POST("/content/:id/moderate", srv.HandleModerate, mod)
	e.GET("/accounts", srv.HandleListAccounts, mod)
	e.GET("/accounts/:id/history", srv.HandleAccountHistory, mod)
	e.POST("/accounts/:id/ban", srv.HandleBan, mod)
	e.POST("/accounts/:id/unban", srv.HandleUnban, mod)
	e.POST("/accounts/:id/suspend", srv.HandleSuspend, mod)
	e.POST("/accounts/:id/warn", srv.HandleWarn, mod)
	e.GET("/suggestions", srv.HandleSuggestions, mod)
	e.GET("/stats", srv.HandleStats, mod)
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Serves the API and metrics listeners until ctx is cancelled, then shuts both down.
func (srv *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.logger.Info("starting API server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})
	if srv.metricsd != nil {
		g.Go(func() error {
			srv.logger.Info("starting metrics server", "bind", srv.metricsd.Addr)
			if err := srv.metricsd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})

	err := g.Wait()
	srv.logger.Info("graceful shutdown complete")
	return err
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errs := []error{srv.httpd.Shutdown(ctx)}
	if srv.metricsd != nil {
		errs = append(errs, srv.metricsd.Shutdown(ctx))
	}
	if srv.rdb != nil {
		errs = append(errs, srv.rdb.Close())
	}
	return errors.Join(errs...)
}

type requestValidator struct {
	validate *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
