package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"motorent/internal/app/middleware"
)

var ErrInvalidInput = errors.New("validation: invalid input")

// Validator checks `validate` struct tags on commands and queries.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(ctx context.Context, message any) error {
	err := v.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, first.Field(), first.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}

var _ middleware.Validator = (*Validator)(nil)
