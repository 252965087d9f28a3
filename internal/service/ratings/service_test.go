package ratings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
	"github.com/vladislavdragonenkov/yummybites/internal/storage/memory"
)

var (
	asha  = domain.Actor{Email: "asha@example.com"}
	ravi  = domain.Actor{Email: "ravi@example.com"}
	guest = domain.Actor{}
)

func newTestService() *Service {
	svc := NewService(memory.NewRatingRepository(), nil)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func TestRate_GuestMustLogIn(t *testing.T) {
	svc := newTestService()
	_, err := svc.Rate(context.Background(), guest, RateInput{DishID: "d1", Stars: 5})
	require.ErrorIs(t, err, domain.ErrRatingLoginRequired)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestRate_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   RateInput
		want []error
	}{
		{"missing dish", RateInput{Stars: 3}, []error{domain.ErrDishIDRequired}},
		{"blank dish", RateInput{DishID: "  ", Stars: 3}, []error{domain.ErrDishIDRequired}},
		{"zero stars", RateInput{DishID: "d1"}, []error{domain.ErrStarsRange}},
		{"six stars", RateInput{DishID: "d1", Stars: 6}, []error{domain.ErrStarsRange}},
		{"long comment", RateInput{DishID: "d1", Stars: 4, Comment: strings.Repeat("я", 501)}, []error{domain.ErrCommentTooLong}},
		{"everything wrong", RateInput{Stars: -1}, []error{domain.ErrDishIDRequired, domain.ErrStarsRange}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestService().Rate(context.Background(), asha, tc.in)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.want, verr.Problems)
		})
	}

	_, err := newTestService().Rate(context.Background(), asha, RateInput{DishID: "d1", Stars: 5, Comment: strings.Repeat("я", 500)})
	require.NoError(t, err)
}

func TestRate_UpsertsPerUserAndAverages(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	got, err := svc.Rate(ctx, asha, RateInput{DishID: "d1", Stars: 2})
	require.NoError(t, err)
	require.Equal(t, 2.0, got.Average)
	require.Equal(t, 1, got.Count)

	_, err = svc.Rate(ctx, ravi, RateInput{DishID: "d1", Stars: 4})
	require.NoError(t, err)

	got, err = svc.Rate(ctx, asha, RateInput{DishID: " d1 ", Stars: 5, Comment: "  crisp  "})
	require.NoError(t, err)
	require.Equal(t, 4.5, got.Average)
	require.Equal(t, 2, got.Count)
	require.Equal(t, "crisp", got.Mine.Comment)
}

func TestSummary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for i, a := range []domain.Actor{asha, ravi, {Email: "meera@example.com"}} {
		_, err := svc.Rate(ctx, a, RateInput{DishID: "d1", Stars: 3 + i%2})
		require.NoError(t, err)
	}

	got, err := svc.Summary(ctx, "d1", ravi)
	require.NoError(t, err)
	require.Equal(t, "d1", got.DishID)
	require.Equal(t, 3.3, got.Average)
	require.Equal(t, 3, got.Count)
	require.Len(t, got.Recent, 3)
	require.Equal(t, "meera@example.com", got.Recent[0].UserEmail)
	require.NotNil(t, got.Mine)
	require.Equal(t, 4, got.Mine.Stars)

	anon, err := svc.Summary(ctx, "d1", guest)
	require.NoError(t, err)
	require.Nil(t, anon.Mine)

	none, err := svc.Summary(ctx, "unrated", asha)
	require.NoError(t, err)
	require.Zero(t, none.Average)
	require.Zero(t, none.Count)
	require.Empty(t, none.Recent)
	require.Nil(t, none.Mine)

	_, err = svc.Summary(ctx, " ", asha)
	require.ErrorIs(t, err, domain.ErrDishIDRequired)
}

type brokenRepo struct{ domain.RatingRepository }

func (brokenRepo) Upsert(context.Context, domain.Rating) error { return errors.New("db down") }

func (brokenRepo) Stats(context.Context, string) (domain.RatingStats, error) {
	return domain.RatingStats{}, errors.New("db down")
}

func TestStorageErrors(t *testing.T) {
	svc := NewService(brokenRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Rate(ctx, asha, RateInput{DishID: "d1", Stars: 3})
	require.Error(t, err)
	require.False(t, domain.IsValidation(err))

	_, err = svc.Summary(ctx, "d1", asha)
	require.Error(t, err)
}
