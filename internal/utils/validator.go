package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skillswap/exchange-api/internal/apperrors"
)

// StructValidator plugs go-playground/validator into fiber's binder.
type StructValidator struct {
	validate *validator.Validate
}

func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *StructValidator) Validate(out any) error {
	err := v.validate.Struct(out)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), apperrors.ErrInvalidInput)
}
