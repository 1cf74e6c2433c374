package core

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"parkwatch/internal/types"
)

// Validator wraps go-playground/validator and translates its errors into
// validation_* AppErrors. Field names in errors use the json or query tag.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct checks s against its validate tags. The first failing field
// is reported: "required" as validation_missing_required_field, bounds as
// validation_out_of_range, anything else as validation_invalid_parameter.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fe := verrs[0]
	details := map[string]any{"field": fe.Field()}
	switch fe.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("%s is required", fe.Field()), err, details)
	case "min", "max", "gte", "lte", "gt", "lt":
		details["constraint"] = fe.Tag() + "=" + fe.Param()
		return types.NewAppErrorWithDetails(types.ErrCodeValidationOutOfRange,
			fmt.Sprintf("%s is out of range (%s %s)", fe.Field(), fe.Tag(), fe.Param()), err, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidParam,
			fmt.Sprintf("%s is invalid", fe.Field()), err, details)
	}
}

// QueryInt reads an integer query parameter, returning def when it is absent.
// A present but non-numeric value is a validation_invalid_parameter error.
func QueryInt(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidParam,
			fmt.Sprintf("%s must be an integer", name), err, map[string]any{"field": name})
	}
	return n, nil
}
