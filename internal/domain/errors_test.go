package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "version conflict error", err: ErrOrderVersionConflict, want: true},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrOrderVersionConflict, errors.New("additional context")),
			want: true,
		},
		{name: "other error", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionConflict(tt.err); got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "validation error", err: NewValidationError([]error{ErrItemsRequired}), want: true},
		{name: "invalid status", err: fmt.Errorf("%w: %q", ErrInvalidStatus, "x"), want: true},
		{name: "not found", err: ErrOrderNotFound, want: false},
		{name: "conflict", err: &ReservationConflictError{TableNo: 1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewValidationError_Empty(t *testing.T) {
	if err := NewValidationError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidationError_MatchesProblems(t *testing.T) {
	err := NewValidationError([]error{ErrFirstNameLength, ErrPhoneInvalid})
	if !errors.Is(err, ErrPhoneInvalid) {
		t.Fatalf("expected ErrPhoneInvalid to match")
	}
	if errors.Is(err, ErrTableNoRange) {
		t.Fatalf("did not expect ErrTableNoRange to match")
	}
}

func TestReservationConflictError(t *testing.T) {
	err := error(&ReservationConflictError{TableNo: 5, Date: "2024-01-01", Time: "19:00"})
	want := "Table 5 is already booked for 2024-01-01 at 19:00. Please choose another time or table."
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(fmt.Errorf("create: %w", err), ErrReservationConflict) {
		t.Fatalf("expected ErrReservationConflict to match")
	}
	var conflict *ReservationConflictError
	if !errors.As(err, &conflict) || conflict.TableNo != 5 {
		t.Fatalf("expected errors.As to extract conflict")
	}
}
