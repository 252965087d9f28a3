package domain

import (
	"errors"
	"testing"
)

func validReservation() Reservation {
	return Reservation{
		FirstName: "Asha",
		LastName:  "Verma",
		TableNo:   5,
		Date:      "2024-01-01",
		Time:      "19:00",
		Phone:     "9876543210",
	}
}

func TestReservation_Conflict(t *testing.T) {
	r := validReservation()
	err := r.Conflict()
	if !errors.Is(err, ErrReservationConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
