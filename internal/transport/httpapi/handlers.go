package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/service/orders"
	"github.com/vladislavdragonenkov/yummybites/internal/service/ratings"
	"github.com/vladislavdragonenkov/yummybites/internal/service/reservation"
)

// OrderService — прикладные операции над заказами.
type OrderService interface {
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput, actor domain.Actor) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	History(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error)
	ListAll(ctx context.Context, actor domain.Actor, limit int) ([]domain.Order, error)
	Stats(ctx context.Context, actor domain.Actor) (domain.AdminStats, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
	ChangeStatus(ctx context.Context, id string, status domain.OrderStatus, actor domain.Actor) (domain.Order, error)
}

// ReservationService бронирует столики.
type ReservationService interface {
	Book(ctx context.Context, in reservation.BookInput) (domain.Reservation, error)
}

// MenuService отдаёт меню витрины.
type MenuService interface {
	List(ctx context.Context) ([]domain.MenuItem, error)
	Categories(ctx context.Context) ([]string, error)
}

// RatingService принимает оценки блюд.
type RatingService interface {
	Rate(ctx context.Context, actor domain.Actor, in ratings.RateInput) (domain.RatingSummary, error)
	Summary(ctx context.Context, dishID string, actor domain.Actor) (domain.RatingSummary, error)
}

type handler struct {
	orders       OrderService
	reservations ReservationService
	menu         MenuService
	ratings      RatingService
	version      string
	logger       *log.Entry
}

func (h *handler) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to YummyBites API"})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func (h *handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		badRequest(c, msgCartEmpty)
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), req.toInput(), actorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  "Order placed successfully!",
		"order_id": order.ID,
		"order":    toOrderResponse(order),
	})
}

func (h *handler) history(c *gin.Context) {
	list, err := h.orders.History(c.Request.Context(), actorFrom(c), limitParam(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderList(list))
}

func (h *handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *handler) timeline(c *gin.Context) {
	events, err := h.orders.Timeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toTimeline(events))
}

func (h *handler) changeStatus(c *gin.Context) {
	actor := actorFrom(c)
	if err := actor.RequireAdmin(); err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, domain.NewValidationError([]error{domain.ErrInvalidStatus}))
		return
	}

	order, err := h.orders.ChangeStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Order status updated to '%s'", order.Status),
		"order":   toOrderResponse(order),
	})
}

func (h *handler) sendReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, msgReservationIncomplete)
		return
	}

	if _, err := h.reservations.Book(c.Request.Context(), req.toInput()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, messageResponse{Success: true, Message: "Reservation booked successfully!"})
}

func (h *handler) adminOrders(c *gin.Context) {
	list, err := h.orders.ListAll(c.Request.Context(), actorFrom(c), limitParam(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderList(list))
}

func (h *handler) adminStats(c *gin.Context) {
	stats, err := h.orders.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, statsResponse{
		TotalOrders:       stats.TotalOrders,
		PendingOrders:     stats.PendingOrders,
		TotalRevenue:      fromMinor(stats.DeliveredRevenueMinor),
		TotalReservations: stats.TotalReservations,
	})
}

func (h *handler) listMenu(c *gin.Context) {
	items, err := h.menu.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toMenu(items))
}

func (h *handler) menuCategories(c *gin.Context) {
	categories, err := h.menu.Categories(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *handler) rateDish(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Authenticated() {
		writeError(c, h.logger, domain.ErrRatingLoginRequired)
		return
	}

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input: "+err.Error())
		return
	}

	summary, err := h.ratings.Rate(c.Request.Context(), actor, req.toInput())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Rating saved!",
		"average": summary.Average,
		"count":   summary.Count,
	})
}

func (h *handler) dishRatings(c *gin.Context) {
	summary, err := h.ratings.Summary(c.Request.Context(), c.Param("dish_id"), actorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toRatingSummary(summary))
}

// limitParam читает ?limit=; некорректное значение означает лимит по умолчанию.
// Верхнюю границу держит сервис.
func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
