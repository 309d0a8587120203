package validator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// otpcode accepts digit-only passcodes. Their length is a policy of the
// caller.
var reOTPCode = regexp.MustCompile(`^[0-9]+$`)

var ErrTranslatorNotFound = errors.New("translator not found")

// V10ValidationError maps a field name (json tag, else snake_case) to its
// English message.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	b, err := json.Marshal(map[string]string(vs))
	if err != nil || len(vs) == 0 {
		return "validation error"
	}
	return string(b)
}

func (vs V10ValidationError) Values() map[string]string { return vs }

type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)

	english := en.New()
	trans, ok := ut.New(english, english).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	if err := registerOTPCode(v, trans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: v, trans: trans}, nil
}

func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Translate(v.trans)
	}
	return out
}

func registerOTPCode(v *validator.Validate, trans ut.Translator) error {
	err := v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String && reOTPCode.MatchString(fl.Field().String())
	})
	if err != nil {
		return err
	}

	return v.RegisterTranslation("otpcode", trans,
		func(t ut.Translator) error {
			return t.Add("otpcode", "{0} must contain only digits", false)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("failed to translate validation error", "tag", fe.Tag(), "error", err)
				return fe.Error()
			}
			return msg
		},
	)
}

// fieldName reports the json name of a field, falling back to snake_case.
func fieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return snake(f.Name)
	default:
		return name
	}
}

// snake lower-cases s and inserts underscores at word boundaries, keeping
// initialisms together: UserID -> user_id, IPAddress -> ip_address.
func snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
