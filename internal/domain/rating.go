package domain

import "time"

const (
	MinStars = 1
	MaxStars = 5
	// RecentRatingsLimit — сколько последних отзывов показывается вместе со сводкой.
	RecentRatingsLimit = 20
)

// Rating — оценка блюда пользователем. У пары (DishID, UserEmail) она одна.
type Rating struct {
	DishID    string
	UserEmail string
	Stars     int
	Comment   string
	UpdatedAt time.Time
}

// RatingStats — агрегаты по всем оценкам блюда.
type RatingStats struct {
	Count      int
	StarsTotal int64
}

// RatingSummary — сводка по блюду для витрины.
type RatingSummary struct {
	DishID  string
	Average float64
	Count   int
	Recent  []Rating
	// Mine — оценка текущего пользователя, nil для гостя или если он не оценивал.
	Mine *Rating
}
