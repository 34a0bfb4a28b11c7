package syncer

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

// binder decodes JSON bodies and validates them against struct tags.
type binder struct {
	validate *validator.Validate
}

func newBinder() *binder {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &binder{validate: validate}
}

// Bind fills dst from the request body and validates it. The returned error
// is safe to show to the client.
func (b *binder) Bind(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return errors.Wrap(err, "malformed payload")
		}
	}
	if err := b.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(formatValidationError(verrs[0]))
		}
		return errors.WithStack(err)
	}
	return nil
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	switch err.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%q is required", field)
	case "min":
		return fmt.Sprintf("%q must be at least %s", field, err.Param())
	case "max":
		return fmt.Sprintf("%q must be at most %s", field, err.Param())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", field, err.Param())
	case "gt":
		return fmt.Sprintf("%q must be greater than %s", field, err.Param())
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}
