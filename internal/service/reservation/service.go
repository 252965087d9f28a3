// Package reservation отвечает за бронирование столиков.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/metrics"
)

// BookInput — данные формы бронирования с правилами проверки.
type BookInput struct {
	FirstName string `validate:"required,min=3,max=30"`
	LastName  string `validate:"required,min=3,max=30"`
	TableNo   int    `validate:"required,gte=1,lte=100"`
	Date      string `validate:"required,datetime=2006-01-02"`
	Time      string `validate:"required,datetime=15:04"`
	Phone     string `validate:"required,number,len=10"`
}

// Service бронирует столики. Уникальность слота обеспечивает хранилище.
type Service struct {
	repo    domain.ReservationRepository
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	now     func() time.Time
	newID   func() string
}

// NewService создаёт сервис бронирования. m и logger могут быть nil.
func NewService(repo domain.ReservationRepository, m *metrics.OrderMetrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "reservation-service")
	}
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Book проверяет форму и сохраняет бронь. Занятый слот даёт *domain.ReservationConflictError.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Reservation, error) {
	in = BookInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		TableNo:   in.TableNo,
		Date:      strings.TrimSpace(in.Date),
		Time:      strings.TrimSpace(in.Time),
		Phone:     strings.TrimSpace(in.Phone),
	}
	if err := validateInput(in); err != nil {
		return domain.Reservation{}, err
	}

	r := domain.Reservation{
		ID:        s.newID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		TableNo:   in.TableNo,
		Date:      in.Date,
		Time:      in.Time,
		Phone:     in.Phone,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, r); err != nil {
		var conflict *domain.ReservationConflictError
		if errors.As(err, &conflict) {
			s.metrics.RecordReservationConflict()
			s.logger.WithFields(log.Fields{
				"table_no": r.TableNo,
				"date":     r.Date,
				"time":     r.Time,
			}).Info("reservation slot already taken")
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}

	s.metrics.RecordReservation()
	s.logger.WithFields(log.Fields{
		"reservation_id": r.ID,
		"table_no":       r.TableNo,
		"date":           r.Date,
		"time":           r.Time,
	}).Info("reservation booked")
	return r, nil
}
