package reservation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// fieldErrors сопоставляет поле формы с доменной ошибкой его формата.
var fieldErrors = map[string]error{
	"FirstName": domain.ErrFirstNameLength,
	"LastName":  domain.ErrLastNameLength,
	"TableNo":   domain.ErrTableNoRange,
	"Phone":     domain.ErrPhoneInvalid,
	"Date":      domain.ErrReservationDate,
	"Time":      domain.ErrReservationTime,
}

// validateInput проверяет форму по тегам BookInput.
// Незаполненная форма даёт единственное замечание ErrReservationIncomplete.
func validateInput(in BookInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate reservation: %w", err)
	}

	problems := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return domain.NewValidationError([]error{domain.ErrReservationIncomplete})
		}
		if known, ok := fieldErrors[fe.StructField()]; ok {
			problems = append(problems, known)
			continue
		}
		problems = append(problems, fmt.Errorf("%s is invalid", fe.Field()))
	}
	return domain.NewValidationError(problems)
}
