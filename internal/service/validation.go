package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cuongbtq/render-queue/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

var errorMessages = map[string]string{
	"required": "is required",
	"gt":       "must be greater than %s",
	"lt":       "must be less than %s",
}

func message(e validator.FieldError) string {
	msg, ok := errorMessages[e.Tag()]
	if !ok {
		return "is invalid: " + e.Tag()
	}
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, e.Param())
	}
	return msg
}

// validateSubmission checks the caller supplied fields of a new job
func validateSubmission(designID, userID string, camera *domain.Camera) error {
	if strings.TrimSpace(designID) == "" {
		return &domain.ValidationError{Field: "designId", Message: "is required"}
	}
	if strings.TrimSpace(userID) == "" {
		return &domain.ValidationError{Field: "userId", Message: "is required"}
	}
	if camera == nil {
		return &domain.ValidationError{Field: "camera", Message: "is required"}
	}

	err := validate.Struct(camera)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return &domain.ValidationError{Field: "camera." + e.Field(), Message: message(e)}
	}
	return &domain.ValidationError{Field: "camera", Message: err.Error()}
}
