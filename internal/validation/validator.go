package validation

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Validator validates request structs against their `validate` tags.
// Supported rules: required, min=N, max=N (string length or numeric value).
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return fmt.Errorf("validate expects a struct")
	}

	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("validate")
		if tag == "" {
			continue
		}

		if err := validateField(val.Field(i), tag); err != nil {
			return fmt.Errorf("%s: %w", typ.Field(i).Name, err)
		}
	}

	return nil
}

// validateField validates a single field
func validateField(field reflect.Value, tag string) error {
	for _, rule := range strings.Split(tag, ",") {
		parts := strings.SplitN(rule, "=", 2)

		switch parts[0] {
		case "required":
			if field.IsZero() {
				return fmt.Errorf("field is required")
			}

		case "min", "max":
			if len(parts) < 2 {
				continue
			}
			limit, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				continue
			}
			if err := checkBound(field, parts[0], limit); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkBound(field reflect.Value, rule string, limit int64) error {
	var value int64
	switch field.Kind() {
	case reflect.String:
		value = int64(len(field.String()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value = field.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value = int64(field.Uint())
	default:
		return nil
	}

	if rule == "min" && value < limit {
		return fmt.Errorf("minimum is %d", limit)
	}
	if rule == "max" && value > limit {
		return fmt.Errorf("maximum is %d", limit)
	}
	return nil
}
