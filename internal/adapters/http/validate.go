package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validationMessage turns validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fieldName(fe)))
		case "latitude":
			parts = append(parts, fmt.Sprintf("%s must be a latitude in [-90, 90]", fieldName(fe)))
		case "longitude":
			parts = append(parts, fmt.Sprintf("%s must be a longitude in [-180, 180]", fieldName(fe)))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fieldName(fe), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}
