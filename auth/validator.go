package auth

import (
	stderrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"chat-relay/errors"
)

var validate = validator.New()

// RegisterRequest carries the credential pair of a register attempt.
// The only password rule is the 8-character minimum; complexity is not
// enforced at this layer.
type RegisterRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required,min=8"`
}

func ValidateRegister(req RegisterRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if stderrors.As(err, &fieldErrors) {
		for _, fieldErr := range fieldErrors {
			if fieldErr.Field() == "Password" {
				return fmt.Errorf("%w: %v", errors.ErrWeakPassword, fieldErr)
			}
		}
	}
	return err
}
