package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/service/orders"
	"github.com/vladislavdragonenkov/yummybites/internal/service/ratings"
	"github.com/vladislavdragonenkov/yummybites/internal/service/reservation"
)

const guestEmail = "guest"

type itemRequest struct {
	Name     string `json:"name"`
	Price    rupees `json:"price"`
	Quantity int32  `json:"quantity"`
	Image    string `json:"image"`
}

type deliveryRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
}

type placeOrderRequest struct {
	Items           []itemRequest    `json:"items"`
	Total           rupees           `json:"total"`
	DeliveryDetails *deliveryRequest `json:"deliveryDetails"`
}

func (r placeOrderRequest) toInput() orders.PlaceOrderInput {
	in := orders.PlaceOrderInput{
		Items:      make([]domain.OrderItem, 0, len(r.Items)),
		TotalMinor: r.Total.minor(),
	}
	for _, it := range r.Items {
		in.Items = append(in.Items, domain.OrderItem{
			Name:       it.Name,
			PriceMinor: it.Price.minor(),
			Quantity:   it.Quantity,
			Image:      it.Image,
		})
	}
	if d := r.DeliveryDetails; d != nil {
		in.Delivery = domain.DeliveryDetails{
			Name:         d.Name,
			Phone:        d.Phone,
			Address:      d.Address,
			Instructions: d.Instructions,
		}
	}
	return in
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type reservationRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	TableNo   int    `json:"tableNo"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Phone     string `json:"phone"`
}

func (r reservationRequest) toInput() reservation.BookInput {
	return reservation.BookInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		TableNo:   r.TableNo,
		Date:      r.Date,
		Time:      r.Time,
		Phone:     r.Phone,
	}
}

type itemResponse struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
	Image    string  `json:"image,omitempty"`
}

type deliveryResponse struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Instructions string `json:"instructions,omitempty"`
}

type orderResponse struct {
	ID              string           `json:"_id"`
	Items           []itemResponse   `json:"items"`
	Total           float64          `json:"total"`
	DeliveryDetails deliveryResponse `json:"delivery_details"`
	Status          string           `json:"status"`
	UserEmail       string           `json:"user_email"`
	Timestamp       time.Time        `json:"timestamp"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Version         int64            `json:"version"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]itemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResponse{
			Name:     it.Name,
			Price:    fromMinor(it.PriceMinor),
			Quantity: it.Quantity,
			Image:    it.Image,
		})
	}
	email := o.UserEmail
	if o.IsGuest() {
		email = guestEmail
	}
	return orderResponse{
		ID:    o.ID,
		Items: items,
		Total: fromMinor(o.TotalMinor),
		DeliveryDetails: deliveryResponse{
			Name:         o.Delivery.Name,
			Phone:        o.Delivery.Phone,
			Address:      o.Delivery.Address,
			Instructions: o.Delivery.Instructions,
		},
		Status:    string(o.Status),
		UserEmail: email,
		Timestamp: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		Version:   o.Version,
	}
}

func toOrderList(list []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

func toTimeline(events []domain.TimelineEvent) []timelineResponse {
	out := make([]timelineResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, timelineResponse{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return out
}

type statsResponse struct {
	TotalOrders       int     `json:"total_orders"`
	PendingOrders     int     `json:"pending_orders"`
	TotalRevenue      float64 `json:"total_revenue"`
	TotalReservations int     `json:"total_reservations"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type menuItemResponse struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
}

func toMenu(items []domain.MenuItem) []menuItemResponse {
	out := make([]menuItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, menuItemResponse{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			Image:       it.Image,
			Price:       fromMinor(it.PriceMinor),
			Category:    it.Category,
			Tags:        it.Tags,
		})
	}
	return out
}

type ratingRequest struct {
	DishID  string `json:"dish_id"`
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

func (r ratingRequest) toInput() ratings.RateInput {
	return ratings.RateInput{DishID: r.DishID, Stars: r.Stars, Comment: r.Comment}
}

type ratingResponse struct {
	DishID    string    `json:"dish_id"`
	UserEmail string    `json:"user_email"`
	Stars     int       `json:"stars"`
	Comment   string    `json:"comment"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ownRatingResponse struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment"`
}

type ratingSummaryResponse struct {
	DishID     string             `json:"dish_id"`
	Average    float64            `json:"average"`
	Count      int                `json:"count"`
	Ratings    []ratingResponse   `json:"ratings"`
	UserRating *ownRatingResponse `json:"user_rating"`
}

func toRatingSummary(s domain.RatingSummary) ratingSummaryResponse {
	out := ratingSummaryResponse{
		DishID:  s.DishID,
		Average: s.Average,
		Count:   s.Count,
		Ratings: make([]ratingResponse, 0, len(s.Recent)),
	}
	for _, r := range s.Recent {
		out.Ratings = append(out.Ratings, ratingResponse{
			DishID:    r.DishID,
			UserEmail: r.UserEmail,
			Stars:     r.Stars,
			Comment:   r.Comment,
			UpdatedAt: r.UpdatedAt,
		})
	}
	if s.Mine != nil {
		out.UserRating = &ownRatingResponse{Stars: s.Mine.Stars, Comment: s.Mine.Comment}
	}
	return out
}
