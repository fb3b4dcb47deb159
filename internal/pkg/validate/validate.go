/*
Package validate wraps go-playground/validator with the conventions used across the
server and the client: JSON tag names in error reports and a couple of custom tags.
*/
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	v *validator.Validate

	fieldNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)
)

func init() {
	v = validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return fieldNameRegex.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Struct validates s against its `validate` tags.
// It returns the name of the first failing field and the underlying error.
func Struct(s any) (string, error) {
	err := v.Struct(s)
	if err == nil {
		return "", nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), err
	}

	return "", err
}

// Email reports whether addr is a syntactically valid email address.
func Email(addr string) bool {
	return v.Var(addr, "required,email") == nil
}

// FieldName reports whether name is usable as a document field name.
func FieldName(name string) bool {
	return fieldNameRegex.MatchString(name)
}
