package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/f3-invigorate/invigorate/internal/apperror"
	"github.com/f3-invigorate/invigorate/internal/model"
)

// =========================================================================
// PAYLOAD VALIDATION
// =========================================================================
//
// Payload structs carry `validate` tags. Validate runs them and turns the
// FIRST failing field into apperror.ValidationFailed(field, message), so the
// client sees one human sentence like "Calories must be positive".
//
// Field names are taken from the json tag, so the field in the error is the
// same key the client sent.

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterCustomTypeFunc(flexIntValue, FlexInt{})

	// An absent FlexInt reaches the validator as nil, which fails on the
	// first tag in the list without calling it. "present" is that first tag,
	// so a missing number reads "is required" while 0 still reads "must be
	// positive" (required would reject 0 as the zero value).
	mustRegister(v, "present", func(validator.FieldLevel) bool { return true })

	// wholenum passes only when FlexInt decoded to an integer. For anything
	// else flexIntValue hands back the raw string, which fails here.
	mustRegister(v, "wholenum", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
		return false
	})
	mustRegister(v, "caldate", func(fl validator.FieldLevel) bool {
		_, _, _, ok := parseCalendarDate(fl.Field().String())
		return ok
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})

	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("registering %s validation: %v", tag, err))
	}
}

// labels are the human names used in messages. Unlisted fields use the
// json name as-is.
var labels = map[string]string{
	"ao":              "AO",
	"date":            "Date",
	"pax":             "PAX",
	"calories":        "Calories",
	"durationMinutes": "Duration",
	"category":        "Category",
	"note":            "Note",
	"mood":            "Mood",
	"wins":            "Wins",
	"struggles":       "Struggles",
	"intention":       "Intention",
	"token":           "Token",
}

func message(fe validator.FieldError) string {
	label, ok := labels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required", "present":
		return label + " is required"
	case "wholenum":
		return label + " must be a whole number"
	case "gt":
		if fe.Param() == "0" {
			return label + " must be positive"
		}
		return fmt.Sprintf("%s must be greater than %s", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", label, fe.Param())
	case "caldate":
		return label + " must be YYYY-MM-DD or an ISO timestamp"
	case "category":
		names := make([]string, 0, len(model.Categories()))
		for _, c := range model.Categories() {
			names = append(names, string(c))
		}
		return fmt.Sprintf("%s must be one of %s", label, strings.Join(names, ", "))
	}
	return label + " is invalid"
}

// Validate checks a payload struct against its validate tags.
func Validate(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), message(fe))
	}
	return fmt.Errorf("validating %T: %w", in, err)
}

// =========================================================================
// FlexInt
// =========================================================================

// FlexInt is an integer field that HTML forms may send as a string.
//
// ACCEPTED:
//
//	{"calories": 450}      → 450
//	{"calories": "450"}    → 450
//	{"calories": 450.0}    → 450
//
// REJECTED (reported by the wholenum rule, not by the JSON decoder):
//
//	{"calories": 450.5}, {"calories": "lots"}, {"calories": true}
//
// A missing key, null, or "" counts as absent and fails "present".
type FlexInt struct {
	Value int64
	raw   string
	set   bool
	valid bool
}

// NewFlexInt builds a present, valid FlexInt. Used by tests and callers that
// already hold an int.
func NewFlexInt(n int64) FlexInt {
	return FlexInt{Value: n, raw: strconv.FormatInt(n, 10), set: true, valid: true}
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	f.raw, f.set = raw, true
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		f.Value, f.valid = n, true
		return nil
	}
	if fl, err := strconv.ParseFloat(raw, 64); err == nil &&
		fl == math.Trunc(fl) && math.Abs(fl) < 1<<53 {
		f.Value, f.valid = int64(fl), true
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	if !f.valid {
		return json.Marshal(f.raw)
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// flexIntValue is what the validator sees in place of a FlexInt.
func flexIntValue(field reflect.Value) any {
	f, ok := field.Interface().(FlexInt)
	if !ok || !f.set {
		return nil
	}
	if !f.valid {
		return f.raw
	}
	return f.Value
}
