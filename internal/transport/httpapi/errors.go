package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

const (
	msgCartEmpty             = "Your cart is empty!"
	msgReservationIncomplete = "Please fill out the full reservation form!"
	msgOrderNotFound         = "Order not found"
	msgNotAuthenticated      = "Not authenticated"
	msgAdminRequired         = "Admin access required"
	msgRatingLogin           = "Please log in to rate dishes."
	msgMenuEmpty             = "No menu items found"
	msgInternal              = "Internal server error!"
)

// errorStatus — единая таблица соответствия доменных ошибок HTTP-ответам.
func errorStatus(err error) (int, string) {
	var conflict *domain.ReservationConflictError
	var validation *domain.ValidationError

	switch {
	case errors.As(err, &conflict):
		return http.StatusBadRequest, conflict.Error()
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, msgOrderNotFound
	case errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound, "Reservation not found"
	case errors.Is(err, domain.ErrMenuEmpty):
		return http.StatusNotFound, msgMenuEmpty
	case errors.Is(err, domain.ErrRatingLoginRequired):
		return http.StatusUnauthorized, msgRatingLogin
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, msgNotAuthenticated
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, msgAdminRequired
	case errors.Is(err, domain.ErrItemsRequired):
		return http.StatusBadRequest, msgCartEmpty
	case errors.Is(err, domain.ErrReservationIncomplete):
		return http.StatusBadRequest, msgReservationIncomplete
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, "Invalid status. Must be one of: " + statusList()
	case errors.As(err, &validation):
		msgs := make([]string, 0, len(validation.Problems))
		for _, p := range validation.Problems {
			msgs = append(msgs, p.Error())
		}
		return http.StatusBadRequest, strings.Join(msgs, ", ")
	case domain.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func statusList() string {
	all := domain.OrderStatuses()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// writeError отвечает {"success": false, "message": ...} и пишет ошибку в лог запроса.
func writeError(c *gin.Context, logger *log.Entry, err error) {
	code, msg := errorStatus(err)
	entry := logger.WithError(err).WithFields(log.Fields{
		"path":   c.Request.URL.Path,
		"status": code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
		_ = c.Error(err)
	} else {
		entry.Debug("request rejected")
	}
	c.AbortWithStatusJSON(code, messageResponse{Success: false, Message: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, messageResponse{Success: false, Message: msg})
}
