package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/quickinvoice/internal/assist"
	"github.com/smallbiznis/quickinvoice/internal/config"
	"github.com/smallbiznis/quickinvoice/internal/draft"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
	"github.com/smallbiznis/quickinvoice/internal/observability"
	obslogger "github.com/smallbiznis/quickinvoice/internal/observability/logger"
	"github.com/smallbiznis/quickinvoice/internal/observability/tracing"
	"github.com/smallbiznis/quickinvoice/internal/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, tp *sdktrace.TracerProvider, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(tracing.GinMiddleware(tp))
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

type Server struct {
	engine   *gin.Engine
	draft    *draft.Controller
	assist   *assist.Service
	ents     *entitlement.Service
	store    *storage.Store
	settings *config.SettingsHolder
	log      *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Draft       *draft.Controller
	Assist      *assist.Service
	Entitlement *entitlement.Service
	Store       *storage.Store
	Settings    *config.SettingsHolder
	Log         *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		draft:    p.Draft,
		assist:   p.Assist,
		ents:     p.Entitlement,
		store:    p.Store,
		settings: p.Settings,
		log:      p.Log.Named("http"),
	}

	svc.registerInvoiceRoutes()
	svc.registerHistoryRoutes()
	svc.registerAccountRoutes()
	svc.registerReferenceRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerInvoiceRoutes() {
	inv := s.engine.Group("/api/invoice")

	inv.GET("", s.GetInvoice)
	inv.PUT("/business", s.UpdateBusiness)
	inv.PUT("/client", s.UpdateClient)
	inv.PUT("/meta", s.UpdateMeta)
	inv.PUT("/discount", s.UpdateDiscount)
	inv.PUT("/tax", s.UpdateTaxRate)
	inv.PUT("/currency", s.UpdateCurrency)
	inv.PUT("/template", s.UpdateTemplate)
	inv.PUT("/logo", s.UploadLogo)
	inv.DELETE("/logo", s.RemoveLogo)

	inv.POST("/items", s.AddItem)
	inv.PUT("/items/:index", s.UpdateItem)
	inv.DELETE("/items/:index", s.RemoveItem)

	inv.POST("/new", s.NewInvoice)
	inv.POST("/draft", s.SaveDraft)
	inv.GET("/preview", s.Preview)
	inv.POST("/export", s.Export)
	inv.POST("/parse", s.ParseInvoice)
}

func (s *Server) registerHistoryRoutes() {
	h := s.engine.Group("/api/history")

	h.GET("", s.ListHistory)
	h.POST("", s.SaveToHistory)
	h.DELETE("", s.ClearHistory)
	h.GET("/:id", s.GetHistoryEntry)
	h.POST("/:id/load", s.LoadFromHistory)
	h.POST("/:id/duplicate", s.DuplicateFromHistory)
	h.DELETE("/:id", s.DeleteFromHistory)

	s.engine.GET("/api/exports/history.xlsx", s.ExportHistory)
}

func (s *Server) registerAccountRoutes() {
	api := s.engine.Group("/api")

	api.GET("/profile", s.GetBusinessProfile)
	api.POST("/profile/save", s.SaveBusinessProfile)
	api.POST("/profile/load", s.LoadBusinessProfile)

	api.GET("/preferences", s.GetPreferences)

	api.GET("/subscription", s.GetSubscription)
	api.POST("/subscription", s.ActivateSubscription)
	api.DELETE("/subscription", s.CancelSubscription)

	api.GET("/usage", s.GetUsage)
}

func (s *Server) registerReferenceRoutes() {
	api := s.engine.Group("/api")

	api.GET("/currencies", s.ListCurrencies)
	api.GET("/templates", s.ListTemplates)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, _ *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
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
