package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// extractJSON returns the outermost JSON object in raw. Models sometimes
// wrap the object in a markdown fence or add prose around it.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return "", fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}
	return raw[start : end+1], nil
}

// decodeResponse parses raw into out and checks its required fields.
func decodeResponse(v *validator.Validate, raw string, out any) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyResponse
	}
	body, err := extractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := v.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("%w: missing or blank %s", ErrMalformedResponse, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
