// Package validation holds the shared go-playground validator used for
// complaint drafts and patches, both by the HTTP client before sending and
// by gin when binding request bodies.
//
// Custom tags:
//   - category: a known domain.Category, any casing
//   - priority: a known domain.Priority
//   - status:   a known domain.Status
//
// Messages use json tag names and English translations.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/tbourn/go-complaint-desk/internal/domain"
)

// FieldError is one failed rule, keyed by json field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned by Struct when one or more fields fail validation.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Validator pairs a validator instance with its translator.
type Validator struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	std  *Validator

	ginOnce  sync.Once
	ginErr   error
	ginTrans ut.Translator
)

// Get returns the process-wide validator, initializing it on first use.
func Get() *Validator {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		trans := newTranslator()
		if err := configure(v, trans); err != nil {
			panic("validation: " + err.Error())
		}
		std = &Validator{Validate: v, Translator: trans}
	})
	return std
}

// Struct validates s and returns Errors for rule failures. Other failures
// (e.g. s is not a struct) are returned unchanged.
func (v *Validator) Struct(s any) error {
	err := v.Validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fe.Translate(v.Translator)})
	}
	return out
}

// Struct validates s with the process-wide validator.
func Struct(s any) error { return Get().Struct(s) }

// RegisterGin installs the custom tags and json field naming on gin's
// default binding validator. Gin reads rules from `binding` struct tags.
// Only the first call has an effect.
func RegisterGin() error {
	ginOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			ginErr = errors.New("validation: gin binding engine is not go-playground/validator")
			return
		}
		trans := newTranslator()
		if ginErr = configure(v, trans); ginErr == nil {
			ginTrans = trans
		}
	})
	return ginErr
}

// Translate renders err (as returned by gin binding after RegisterGin) as
// Errors. Non-validation errors pass through.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	trans := ginTrans
	if trans == nil {
		trans = Get().Translator
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Message: fe.Translate(trans)})
	}
	return out
}

func newTranslator() ut.Translator {
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ := uni.GetTranslator("en")
	return trans
}

func configure(v *validator.Validate, trans ut.Translator) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := fld.Tag.Get("json")
		if tag == "-" || tag == "" {
			return fld.Name
		}
		if idx := strings.Index(tag, ","); idx >= 0 {
			tag = tag[:idx]
		}
		return tag
	})
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return err
	}

	custom := []struct {
		tag string
		fn  validator.Func
		msg string
	}{
		{"category", validCategory, "{0} must be one of " + joinCategories()},
		{"priority", validPriority, "{0} must be one of low, medium, high, urgent"},
		{"status", validStatus, "{0} must be one of pending, in-progress, resolved, rejected"},
	}
	for _, c := range custom {
		if err := v.RegisterValidation(c.tag, c.fn); err != nil {
			return err
		}
		tag, msg := c.tag, c.msg
		err := v.RegisterTranslation(tag, trans,
			func(ut ut.Translator) error { return ut.Add(tag, msg, true) },
			func(ut ut.Translator, fe validator.FieldError) string {
				s, _ := ut.T(tag, fe.Field())
				return s
			},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func validCategory(fl validator.FieldLevel) bool {
	_, ok := domain.ParseCategory(fl.Field().String())
	return ok
}

func validPriority(fl validator.FieldLevel) bool {
	return domain.Priority(strings.ToLower(fl.Field().String())).Valid()
}

func validStatus(fl validator.FieldLevel) bool {
	return domain.Status(strings.ToLower(fl.Field().String())).Valid()
}

func joinCategories() string {
	names := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
