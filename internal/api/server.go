package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"canchita/internal/cache"
	"canchita/internal/config"
	"canchita/internal/consumers"
	"canchita/internal/external"
	"canchita/internal/handlers"
	"canchita/internal/messaging"
	"canchita/internal/metrics"
	"canchita/internal/middleware"
	"canchita/internal/models"
	"canchita/internal/search"
	"canchita/internal/service"
	"canchita/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	sessionSweepInterval = 10 * time.Minute
	sessionIdleTimeout   = time.Hour
)

// Server представляет HTTP сервер API
type Server struct {
	router      *gin.Engine
	config      *config.Config
	metrics     *metrics.Metrics
	sessions    *session.Manager
	services    *service.Services
	valkey      *cache.ValkeyStore
	nats        *messaging.NATSClient
	invalidator *consumers.Invalidator
	index       *search.FieldIndex
	stopSweeper context.CancelFunc
}

// NewServer создает новый экземпляр сервера.
// Valkey, NATS и Elasticsearch необязательны: при ошибке подключения сервер работает без них.
func NewServer(cfg *config.Config) *Server {
	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	m := metrics.New()
	s := &Server{config: cfg, metrics: m}

	// Клиент бэкенда с метриками по каждому вызову
	backend := external.NewBackendClient(cfg.Backend).WithObserver(m.ObserveBackend)

	// Хранилище сессий: Valkey или память процесса
	var store cache.Store = cache.NewMemoryStore()
	if cfg.Valkey.Enabled {
		valkey, err := cache.NewValkeyStore(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, sessions are kept in memory", "addr", cfg.Valkey.Addr, "error", err)
		} else {
			s.valkey = valkey
			store = valkey
		}
	}

	s.sessions = session.NewManager(store, cfg.Valkey.SessionTTL)
	s.sessions.OnCount = func(n int) { m.ActiveSessions.Set(float64(n)) }
	sweepCtx, stop := context.WithCancel(context.Background())
	s.stopSweeper = stop
	go s.sessions.RunSweeper(sweepCtx, sessionSweepInterval, sessionIdleTimeout)

	deps := service.Deps{
		Backend:  backend,
		Sessions: s.sessions,
		Metrics:  m,
		CacheTTL: cfg.CacheTTL,
		Location: cfg.Location,
	}

	// Подключаемся к NATS
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, events are not published", "url", cfg.NATS.URL, "error", err)
		} else {
			s.nats = natsClient
			deps.Publisher = natsClient
		}
	}

	// Поиск по площадкам в Elasticsearch
	if cfg.Elasticsearch.Enabled {
		idx, err := search.NewFieldIndex(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, field search uses the cached catalog", "url", cfg.Elasticsearch.URL, "error", err)
		} else {
			s.index = idx
			deps.Searcher = idx
			// с NATS индекс обновляет процесс consumers
			if s.nats == nil {
				deps.Indexer = idx
			}
		}
	}

	// Создаем сервисы
	s.services = service.NewServices(deps)

	// Кеши других экземпляров шлюза сбрасываются по событиям
	if s.nats != nil {
		s.invalidator = consumers.NewInvalidator(s.services.Availability, s.services.Fields)
		if err := s.invalidator.Start(s.nats); err != nil {
			slog.Warn("Failed to subscribe to cache invalidation events", "error", err)
		}
	}

	// Создаем роутер
	router := gin.New()

	// Применяем middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Logger())
	router.Use(middleware.Session(s.sessions))

	s.router = router

	// Настраиваем роуты
	s.setupRoutes()

	return s
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.sessions)

	// API routes
	api := s.router.Group("/api")
	{
		// Auth endpoints
		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/register", h.Register)
			auth.POST("/google", h.GoogleSignIn)
			auth.POST("/logout", h.Logout)
			auth.GET("/session", h.CurrentSession)
			auth.GET("/session/events", h.SessionEvents)
			auth.GET("/permissions", h.Permissions)
		}

		// Fields endpoints
		fields := api.Group("/fields")
		{
			fields.GET("", h.ListFields)
			fields.GET("/search", h.SearchFields)
			fields.GET("/:id/availability", h.GetAvailability)
			fields.GET("/:id/bookings", middleware.RequireIdentity(), h.ListFieldBookings)
		}

		// Bookings endpoints
		bookings := api.Group("/bookings", middleware.RequireSection(models.SectionReservations))
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.PATCH("/:id/cancel", h.CancelBooking)
		}

		// Admin endpoints
		admin := api.Group("/admin", middleware.RequireSection(models.SectionAdmin))
		{
			admin.POST("/fields", h.CreateField)
			admin.PUT("/fields/:id", h.UpdateField)
			admin.PATCH("/fields/:id/enabled", h.SetFieldEnabled)
			admin.DELETE("/fields/:id", h.DeleteField)
			admin.POST("/fields/reindex", h.ReindexFields)

			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.PUT("/users/:id", h.UpdateUser)
			admin.DELETE("/users/:id", h.DeleteUser)
		}
	}

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	if s.valkey != nil {
		components["valkey"] = componentStatus(s.valkey.Ping(ctx))
	}
	if s.index != nil {
		components["elasticsearch"] = componentStatus(s.index.HealthCheck(ctx))
	}
	components["nats"] = s.nats != nil

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    "canchita-api",
		"version":    "1.0.0",
		"components": components,
	})
}

func componentStatus(err error) string {
	if err != nil {
		return "down: " + err.Error()
	}
	return "ok"
}

// Run запускает HTTP сервер
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}

	if s.invalidator != nil {
		s.invalidator.Stop()
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
			return err
		}
	}

	return nil
}
