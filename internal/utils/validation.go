package utils

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ValidationFieldError represents a structured binding validation error
type ValidationFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the standard response for binding errors
type ValidationErrorResponse struct {
	Errors []ValidationFieldError `json:"errors"`
}

// HandleValidationErrors processes gin binding errors into a standardized
// field-level response
func HandleValidationErrors(ctx *gin.Context, err error) {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var fieldErrors []ValidationFieldError
	for _, fieldError := range validationErrors {
		fieldErrors = append(fieldErrors, ValidationFieldError{
			Field:   toSnakeCase(fieldError.Field()),
			Message: validationMessage(fieldError),
		})
	}

	ctx.JSON(http.StatusBadRequest, ValidationErrorResponse{Errors: fieldErrors})
}

// validationMessage returns a human-readable message for a validation error
func validationMessage(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Value is below the minimum of " + fieldError.Param()
	case "max":
		return "Value is above the maximum of " + fieldError.Param()
	case "oneof":
		return "Value must be one of: " + fieldError.Param()
	default:
		return "Invalid value"
	}
}

// toSnakeCase converts a Go field name to snake_case
func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
