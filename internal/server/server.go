package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/labinventory/internal/config"
	"github.com/smallbiznis/labinventory/internal/observability"
	obsmiddleware "github.com/smallbiznis/labinventory/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/labinventory/internal/observability/metrics"
	obstracing "github.com/smallbiznis/labinventory/internal/observability/tracing"
	"github.com/smallbiznis/labinventory/internal/system"
	systemdomain "github.com/smallbiznis/labinventory/internal/system/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	system.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(noRoute)

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine  *gin.Engine
	cfg     config.Config
	systems systemdomain.Service
}

type ServerParams struct {
	fx.In

	Gin     *gin.Engine
	Cfg     config.Config
	Systems systemdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:  p.Gin,
		cfg:     p.Cfg,
		systems: p.Systems,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", LimitBody(maxRequestBodyBytes))

	api.GET("/labs", s.ListLabs)

	// -------- Systems --------
	api.GET("/systems", s.ListSystems)
	api.POST("/systems", s.CreateSystems)
	api.GET("/systems/stats", s.GetSystemStats)
	api.POST("/systems/bulk-delete", s.BulkDeleteSystems)
	api.POST("/systems/qr/repair", s.RepairPendingQR)
	api.GET("/systems/:id", s.GetSystemByID)
	api.PUT("/systems/:id", s.UpdateSystem)
	api.DELETE("/systems/:id", s.DeleteSystem)
	api.POST("/systems/:id/qr", s.RegenerateSystemQR)

	// -------- Exports --------
	api.GET("/systems/export/csv", s.ExportSystemsCSV)
	api.GET("/systems/export/xlsx", s.ExportSystemsXLSX)
	api.GET("/systems/export/qr/:labName", s.ExportLabQRArchive)
	api.GET("/systems/export/labels/:labName", s.ExportLabLabels)
}
