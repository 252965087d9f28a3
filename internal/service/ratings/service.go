// Package ratings хранит оценки блюд и считает по ним сводку.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldErrors = map[string]error{
	"DishID":  domain.ErrDishIDRequired,
	"Stars":   domain.ErrStarsRange,
	"Comment": domain.ErrCommentTooLong,
}

// RateInput — оценка из формы на витрине.
type RateInput struct {
	DishID  string `validate:"required"`
	Stars   int    `validate:"gte=1,lte=5"`
	Comment string `validate:"max=500"`
}

// Service принимает оценки и собирает сводку по блюду.
type Service struct {
	repo   domain.RatingRepository
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис оценок. logger может быть nil.
func NewService(repo domain.RatingRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "rating-service")
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Rate сохраняет оценку вошедшего пользователя, заменяя его прежнюю оценку
// этого блюда, и возвращает пересчитанную сводку без списка отзывов.
func (s *Service) Rate(ctx context.Context, actor domain.Actor, in RateInput) (domain.RatingSummary, error) {
	if !actor.Authenticated() {
		return domain.RatingSummary{}, domain.ErrRatingLoginRequired
	}
	in.DishID = strings.TrimSpace(in.DishID)
	in.Comment = strings.TrimSpace(in.Comment)
	if err := validateInput(in); err != nil {
		return domain.RatingSummary{}, err
	}

	rating := domain.Rating{
		DishID:    in.DishID,
		UserEmail: actor.Email,
		Stars:     in.Stars,
		Comment:   in.Comment,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, rating); err != nil {
		return domain.RatingSummary{}, fmt.Errorf("save rating: %w", err)
	}

	stats, err := s.repo.Stats(ctx, in.DishID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("rating stats: %w", err)
	}
	s.logger.WithFields(log.Fields{
		"dish_id": in.DishID,
		"stars":   in.Stars,
		"count":   stats.Count,
	}).Info("rating saved")
	return domain.RatingSummary{
		DishID:  in.DishID,
		Average: average(stats),
		Count:   stats.Count,
		Mine:    &rating,
	}, nil
}

// Summary собирает среднюю оценку, число оценок и последние отзывы блюда.
// Для вошедшего пользователя добавляется его собственная оценка.
func (s *Service) Summary(ctx context.Context, dishID string, actor domain.Actor) (domain.RatingSummary, error) {
	dishID = strings.TrimSpace(dishID)
	if dishID == "" {
		return domain.RatingSummary{}, domain.NewValidationError([]error{domain.ErrDishIDRequired})
	}

	stats, err := s.repo.Stats(ctx, dishID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("rating stats: %w", err)
	}
	recent, err := s.repo.Recent(ctx, dishID, domain.RecentRatingsLimit)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("recent ratings: %w", err)
	}

	summary := domain.RatingSummary{
		DishID:  dishID,
		Average: average(stats),
		Count:   stats.Count,
		Recent:  recent,
	}
	if actor.Authenticated() {
		mine, err := s.repo.Get(ctx, dishID, actor.Email)
		switch {
		case err == nil:
			summary.Mine = &mine
		case !errors.Is(err, domain.ErrRatingNotFound):
			return domain.RatingSummary{}, fmt.Errorf("own rating: %w", err)
		}
	}
	return summary, nil
}

// average — средняя оценка, округлённая до одного знака; без оценок 0.
func average(stats domain.RatingStats) float64 {
	if stats.Count == 0 {
		return 0
	}
	return decimal.NewFromInt(stats.StarsTotal).
		Div(decimal.NewFromInt(int64(stats.Count))).
		Round(1).
		InexactFloat64()
}

func validateInput(in RateInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate rating: %w", err)
	}
	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if known, ok := fieldErrors[fe.StructField()]; ok {
			problems = append(problems, known)
			continue
		}
		problems = append(problems, fmt.Errorf("%s is invalid", fe.Field()))
	}
	return domain.NewValidationError(problems)
}
