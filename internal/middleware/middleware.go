package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"canchita/internal/logger"
	"canchita/internal/metrics"
	"canchita/internal/models"
	"canchita/internal/permissions"
	"canchita/internal/session"

	"github.com/gin-gonic/gin"
)

const (
	SessionHeader   = "X-Session-ID"
	SessionCookie   = "canchita_session"
	RequestIDHeader = "X-Request-ID"

	sessionIDKey = "session_id"
	identityKey  = "identity"
	requestIDKey = "request_id"
)

// CORS middleware для обработки CORS запросов
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader+", "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", SessionHeader+", "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID берет X-Request-ID из запроса или генерирует новый
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = logger.NewRequestID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logger middleware для структурированного логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Записываем время начала
		start := time.Now()

		// Выполняем запрос
		c.Next()

		// Логируем результат
		status := c.Writer.Status()
		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id, ok := Identity(c); ok {
			logFields = append(logFields, "user_id", id.ID)
		}

		log := logger.WithContext(c.Request.Context())
		if status >= 400 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			log.Warn("Request completed with error", logFields...)
			return
		}
		log.Info("Request completed", logFields...)
	}
}

// Metrics считает запросы и их длительность по шаблону маршрута
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Recovery middleware для восстановления после паники с детальным логированием
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Internal server error",
			})
		}
	})
}

// Session находит сессию по заголовку X-Session-ID или cookie и кладет личность в контекст.
// Запросы без сессии проходят дальше анонимными.
func Session(manager *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := strings.TrimSpace(c.GetHeader(SessionHeader))
		if sid == "" {
			sid, _ = c.Cookie(SessionCookie)
		}
		if sid == "" {
			c.Next()
			return
		}

		c.Set(sessionIDKey, sid)
		ctx := logger.ContextWithSessionID(c.Request.Context(), sid)

		if id, ok := manager.Get(ctx, sid).Current(); ok {
			c.Set(identityKey, id)
			ctx = logger.ContextWithUserID(ctx, id.ID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SessionID возвращает id сессии текущего запроса
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// Identity возвращает личность текущего запроса, если она есть
func Identity(c *gin.Context) (*models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*models.Identity)
	return id, ok && id != nil
}

// RequireIdentity отвечает 401 анонимным запросам
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Identity(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "Authentication required",
				"redirect": permissions.SignInRoute,
			})
			return
		}
		c.Next()
	}
}

// RequireSection пропускает только роли, которым открыт раздел
func RequireSection(section models.Section) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "Authentication required",
				"redirect": permissions.SignInRoute,
			})
			return
		}
		if !permissions.CanAccessSection(id.Role, section) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "Access to section " + string(section) + " denied",
				"redirect": permissions.RedirectFor(id),
			})
			return
		}
		c.Next()
	}
}
