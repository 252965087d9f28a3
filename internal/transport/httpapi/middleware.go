package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
)

const actorKey = "actor"

// ActorResolver извлекает пользователя из заголовка Authorization.
type ActorResolver interface {
	Actor(header string) (domain.Actor, error)
}

// Authenticate кладёт пользователя в контекст запроса.
// Без заголовка запрос выполняется от имени гостя, недействительный токен отклоняется.
func Authenticate(resolver ActorResolver, logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if resolver == nil || header == "" {
			c.Set(actorKey, domain.Actor{})
			c.Next()
			return
		}

		actor, err := resolver.Actor(header)
		if err != nil {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Warn("rejected credential")
			c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Success: false, Message: "Invalid token"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}

// RequestLogger пишет начало и итог каждого запроса.
func RequestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(log.Fields{
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_ip":   c.ClientIP(),
			"latency_ms":  latency.Milliseconds(),
		})
		if reqID := c.GetHeader("X-Request-ID"); reqID != "" {
			entry = entry.WithField("request_id", reqID)
		}

		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		case statusCode >= http.StatusInternalServerError:
			entry.Error("request completed with server error")
		case statusCode >= http.StatusBadRequest:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
	}
}

// Metrics фиксирует длительность и код ответа по шаблону маршрута.
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.Observe(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// CORS разрешает запросы с перечисленных источников. "*" открывает API любому
// источнику, но без credentials; явный список источников их разрешает.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "*":
			cfg.AllowAllOrigins = true
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}

	switch {
	case cfg.AllowAllOrigins:
		cfg.AllowOrigins = nil
	case len(cfg.AllowOrigins) > 0:
		cfg.AllowCredentials = true
	default:
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cfg)
}
