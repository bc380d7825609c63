package forms

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	translator ut.Translator
	setupOnce  sync.Once
)

// Setup registers English messages and form-tag field names on gin's validator. Safe to call repeatedly.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"form", "json"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		locale := en.New()
		translator, _ = ut.New(locale, locale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)
	})
}

// Errors maps a field name to its error messages.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field has any error.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// First returns the first message for field, or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// FromError turns a binding error into per-field messages. Non-validation errors land under "__all__".
func FromError(err error) Errors {
	out := Errors{}
	if err == nil {
		return out
	}
	Setup()
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add(NonFieldErrors, "Invalid submission.")
		return out
	}
	for _, fe := range verrs {
		msg := fe.Error()
		if translator != nil {
			msg = fe.Translate(translator)
		}
		out.Add(fe.Field(), msg)
	}
	return out
}

// NonFieldErrors keys errors not attached to a single field.
const NonFieldErrors = "__all__"

// Cleaner normalises bound values before validation.
type Cleaner interface {
	Clean()
}

// Bind decodes the request into f, cleans it and validates the cleaned values only.
// It returns nil when the form is valid.
func Bind(ctx *gin.Context, f Cleaner) Errors {
	Setup()
	if err := decode(ctx, f); err != nil {
		return FromError(err)
	}
	f.Clean()
	if err := binding.Validator.ValidateStruct(f); err != nil {
		return FromError(err)
	}
	return nil
}

const maxMultipartMemory = 32 << 20

// decode fills f from the JSON body or the form and query values without validating.
func decode(ctx *gin.Context, f interface{}) error {
	switch binding.Default(ctx.Request.Method, ctx.ContentType()) {
	case binding.JSON:
		if ctx.Request.Body == nil {
			return errors.New("empty request body")
		}
		if err := json.NewDecoder(ctx.Request.Body).Decode(f); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case binding.Form, binding.FormMultipart:
		if err := ctx.Request.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return err
		}
		return binding.MapFormWithTag(f, ctx.Request.Form, "form")
	default:
		return ctx.ShouldBind(f)
	}
}
