package core

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"cropsight/internal/types"
)

// Validator wraps go-playground/validator with domain-specific rules and
// translates violations into AppErrors the response layer can render.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// ndvi: value must lie in the physical NDVI range.
	_ = v.RegisterValidation("ndvi", func(fl validator.FieldLevel) bool {
		return types.ValidNDVI(fl.Field().Float())
	})

	// quality: value must be a known data quality grade.
	_ = v.RegisterValidation("quality", func(fl validator.FieldLevel) bool {
		switch types.DataQuality(fl.Field().String()) {
		case types.QualityHigh, types.QualityMedium, types.QualityLow:
			return true
		}
		return false
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates a request DTO. Violations come back as a single
// 400-mapped AppError whose details list every offending field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationMissingField, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		fields[name] = fmt.Sprintf("failed %q constraint", fe.Tag())
		names = append(names, name)
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"invalid request: "+strings.Join(names, ", "),
		err,
		fields,
	)
}
