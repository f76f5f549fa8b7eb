// Package validate checks request bodies against their struct tags and reports the first
// failure as a readable English message.
package validate

import (
	"errors"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var ErrInvalid = errors.New("invalid request")

// Validator satisfies echo.Validator.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New() *Validator {
	v := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)
	return &Validator{validate: v, translator: translator}
}

func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) || len(verrors) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", ErrInvalid, verrors[0].Translate(v.translator))
}
