// Package validation expone el validador compartido de los DTO HTTP.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get devuelve el validador singleton. Los errores usan el nombre JSON del campo y los
// decimal.Decimal se validan como número (gt=0, gte=0).
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
			}
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{})
	})
	return validate
}

// Struct valida s con el validador compartido.
func Struct(s interface{}) error {
	return Get().Struct(s)
}

// Details traduce un error de validación a campo -> regla incumplida.
// Devuelve nil si err no es de validación.
func Details(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[field] = rule
	}
	return out
}
