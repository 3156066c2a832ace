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

	"github.com/siftmod/sift/engine"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	engine *engine.Engine
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

type Config struct {
	Logger *slog.Logger
	Bind   string
}

func NewServer(eng *engine.Engine, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	e := echo.New()

	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine: eng,
		echo:   e,
		logger: logger,
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
	e.Use(middleware.BodyLimit("64K"))

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/scan", srv.HandleScan)
	e.POST("/cases/:id/votes", srv.HandleVote)
	e.POST("/cases/:id/overrule", srv.HandleOverrule)
	e.GET("/decisions", srv.HandleLookupDecision)
	e.GET("/cases/pending", srv.HandlePendingCases)
	e.GET("/stats", srv.HandleStats)
	e.GET("/scopes/:id/settings", srv.HandleGetSettings)
	e.PUT("/scopes/:id/settings", srv.HandleUpdateSettings)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)

	eg, ctx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		exitSignals := make(chan os.Signal, 1)
		signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-exitSignals:
			srv.logger.Info("received OS exit signal", "signal", sig)
		case <-ctx.Done():
		}
		return srv.Shutdown()
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
