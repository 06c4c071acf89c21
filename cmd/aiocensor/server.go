package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiocensor/aiocensor/censor/flow"
	"github.com/aiocensor/aiocensor/censor/setstore"
	"github.com/aiocensor/aiocensor/censor/store"
	"github.com/aiocensor/aiocensor/pkg/metrics"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// Persistence the daemon needs: audit entries, plus the pattern snapshots
// pushed into local detectors.
type Storage interface {
	store.AuditLogStore
	flow.PatternSource
}

// collectors register once per process
var httpMetrics = echoprometheus.NewMiddleware("aiocensor")

type Server struct {
	flow           *flow.Flow
	store          Storage
	refresher      *flow.Refresher
	enableAuditLog bool
	echo           *echo.Echo
	httpd          *http.Server
	logger         *slog.Logger
}

type Config struct {
	Logger          *slog.Logger
	Bind            string
	EnableAuditLog  bool
	RefreshInterval time.Duration
	// optional seed sets, unioned with the database
	Sets setstore.SetStore
}

func NewServer(f *flow.Flow, st Storage, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	refresher := flow.NewRefresher(f, st, config.Sets, config.RefreshInterval)
	refresher.Logger = logger.With("system", "pattern-refresh")

	srv := &Server{
		flow:           f,
		store:          st,
		refresher:      refresher,
		enableAuditLog: config.EnableAuditLog,
		echo:           e,
		logger:         logger,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("aiocensor"))
	e.Use(httpMetrics)
	e.Use(middleware.BodyLimit("16M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/v1/censor/text", srv.HandleCensorText)
	e.POST("/v1/censor/image", srv.HandleCensorImage)
	e.POST("/v1/censor/userid", srv.HandleCensorUserID)

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	slog.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	slog.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		slog.Info("received OS exit signal", "signal", sig)

		// Shut down the HTTP server
		if err := srv.Shutdown(); err != nil {
			slog.Error("HTTP server shutdown error", "err", err)
		}

		// Trigger the return that causes an exit.
		close(quit)
	}()
	<-quit
	slog.Info("graceful shutdown complete")
	return nil
}

// RunRefresh keeps local detectors in sync with the database until ctx is
// done.
func (srv *Server) RunRefresh(ctx context.Context) {
	srv.refresher.Run(ctx)
}

// RunMetrics serves Prometheus and pprof on a separate listener until ctx is
// done.
func (srv *Server) RunMetrics(ctx context.Context, listen string) error {
	return metrics.RunServer(ctx, listen)
}

func (srv *Server) Shutdown() error {
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
