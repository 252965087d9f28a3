// Package httpapi собирает REST API сервиса на gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
)

// WatchHandler обслуживает канал живых уведомлений по заказу.
type WatchHandler interface {
	ServeOrder(w http.ResponseWriter, r *http.Request, orderID string)
}

// Config — зависимости маршрутизатора. Watch, Auth, Metrics, Menu и Ratings необязательны.
type Config struct {
	Orders       OrderService
	Reservations ReservationService
	Menu         MenuService
	Ratings      RatingService
	Auth         ActorResolver
	Watch        WatchHandler
	Metrics      *metrics.HTTPMetrics
	CORSOrigins  []string
	Version      string
	Logger       *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}

	h := &handler{
		orders:       cfg.Orders,
		reservations: cfg.Reservations,
		menu:         cfg.Menu,
		ratings:      cfg.Ratings,
		version:      cfg.Version,
		logger:       logger,
	}

	r := gin.New()
	r.Use(
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			logger.WithField("panic", recovered).Error("handler panicked")
			c.AbortWithStatusJSON(http.StatusInternalServerError, messageResponse{Success: false, Message: msgInternal})
		}),
		RequestLogger(logger),
		Metrics(cfg.Metrics),
		CORS(cfg.CORSOrigins),
	)

	r.GET("/", h.welcome)
	r.GET("/health", h.health)

	if cfg.Watch != nil {
		r.GET("/ws/order/:id", func(c *gin.Context) {
			cfg.Watch.ServeOrder(c.Writer, c.Request, c.Param("id"))
		})
	}

	authed := Authenticate(cfg.Auth, logger)

	for _, prefix := range []string{"/api/v1", ""} {
		group := r.Group(prefix, authed)

		order := group.Group("/order")
		order.POST("/place", h.placeOrder)
		order.GET("/history", h.history)
		order.GET("/:id", h.getOrder)
		order.PATCH("/:id/status", h.changeStatus)
		order.GET("/:id/timeline", h.timeline)

		group.POST("/reservation/send", h.sendReservation)
	}

	if cfg.Menu != nil {
		menu := r.Group("/api/v1/menu")
		menu.GET("", h.listMenu)
		menu.GET("/", h.listMenu)
		menu.GET("/categories", h.menuCategories)
	}
	if cfg.Ratings != nil {
		rating := r.Group("/api/v1/ratings", authed)
		rating.POST("", h.rateDish)
		rating.POST("/", h.rateDish)
		rating.GET("/:dish_id", h.dishRatings)
	}

	admin := r.Group("/api/v1/admin", authed)
	admin.GET("/orders", h.adminOrders)
	admin.GET("/stats", h.adminStats)

	return r
}
