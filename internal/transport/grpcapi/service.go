// Package grpcapi даёт gRPC-доступ к заказам и потоку смены статуса.
package grpcapi

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/notify"
)

// OrderReader читает заказ из хранилища.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (domain.Order, error)
}

// Subscriber — хаб уведомлений.
type Subscriber interface {
	Subscribe(orderID string, ch notify.Channel) error
	Unsubscribe(orderID string, ch notify.Channel)
}

// Service реализует OrderTrackingServer. Поток WatchOrder работает как обычный канал хаба.
type Service struct {
	orders    OrderReader
	hub       Subscriber
	queueSize int
	logger    *log.Entry
}

var _ OrderTrackingServer = (*Service)(nil)

// NewService создаёт gRPC-сервис. queueSize ≤ 0 означает размер по умолчанию.
func NewService(orders OrderReader, hub Subscriber, queueSize int, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "grpc-tracking")
	}
	return &Service{orders: orders, hub: hub, queueSize: queueSize, logger: logger}
}

// GetOrder возвращает заказ целиком.
func (s *Service) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}
	order, err := s.orders.GetOrder(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := orderStruct(order)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode order: %v", err)
	}
	return out, nil
}

// WatchOrder отправляет события смены статуса, пока клиент не отключится.
func (s *Service) WatchOrder(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	orderID := req.GetValue()
	if orderID == "" {
		return status.Error(codes.InvalidArgument, "order id is required")
	}
	ctx := stream.Context()
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return toStatus(err)
	}

	ch := notify.NewQueueChannel(s.queueSize)
	if err := s.hub.Subscribe(orderID, ch); err != nil {
		return toStatus(err)
	}
	defer func() {
		s.hub.Unsubscribe(orderID, ch)
		ch.Close()
	}()

	logger := s.logger.WithField("order_id", orderID)
	// Заголовок уходит только после регистрации в хабе: клиент, дождавшийся Header(),
	// не пропустит следующую смену статуса.
	if err := stream.SendHeader(metadata.Pairs(SubscribedHeader, "true")); err != nil {
		return err
	}
	logger.Debug("grpc watcher subscribed")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("grpc watcher left")
			return nil
		case ev, ok := <-ch.Events():
			if !ok {
				return status.Error(codes.Unavailable, "watch closed by server")
			}
			msg, err := eventStruct(ev)
			if err != nil {
				return status.Errorf(codes.Internal, "encode event: %v", err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus — единая таблица соответствия доменных ошибок кодам gRPC.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrReservationNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, domain.ErrReservationConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, notify.ErrTooManySubscribers):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, notify.ErrHubClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func eventStruct(ev notify.Event) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"type":     string(ev.Type),
		"order_id": ev.OrderID,
		"status":   string(ev.Status),
	})
}

func orderStruct(o domain.Order) (*structpb.Struct, error) {
	items := make([]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":        it.Name,
			"price_minor": it.PriceMinor,
			"quantity":    it.Quantity,
			"image":       it.Image,
		})
	}
	return structpb.NewStruct(map[string]any{
		"id":          o.ID,
		"status":      string(o.Status),
		"total_minor": o.TotalMinor,
		"user_email":  o.UserEmail,
		"items":       items,
		"delivery": map[string]any{
			"name":         o.Delivery.Name,
			"phone":        o.Delivery.Phone,
			"address":      o.Delivery.Address,
			"instructions": o.Delivery.Instructions,
		},
		"version":    o.Version,
		"created_at": o.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
}
