package httpx

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var scaleRe = regexp.MustCompile(`^1:\d{1,3}$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("scale", validateScale)
}

// validateScale accepts the normalized "1:N" scale notation.
func validateScale(fl validator.FieldLevel) bool {
	return scaleRe.MatchString(fl.Field().String())
}

// ValidateStruct runs validator tags over s and maps failures to the error
// detail shape used in response envelopes.
func ValidateStruct(s interface{}) []ErrorDetail {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var details []ErrorDetail
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		var message string
		switch tag {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, param)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, param)
		case "scale":
			message = fmt.Sprintf("%s must use 1:N notation", field)
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		case "gte", "lte":
			message = fmt.Sprintf("%s must be between %s", field, param)
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}

		fieldName := strings.ToLower(field[:1]) + field[1:]
		details = append(details, ErrorDetail{
			Field:   fieldName,
			Message: message,
		})
	}

	return details
}
