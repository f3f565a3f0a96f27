// Package validation holds the client-side checks run before any LMS write
// reaches the appliance.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	MinPasswordLength = 8

	notBlankTag    = "notblank"
	lmsUsernameTag = "lmsusername"
)

// Password policy messages, one per failed rule.
const (
	MsgPasswordLength    = "Passwords must be at least 8 characters long."
	MsgPasswordDigit     = "Passwords must contain at least 1 digit."
	MsgPasswordLower     = "Passwords must contain at least 1 lowercase letter."
	MsgPasswordUpper     = "Passwords must contain at least 1 uppercase letter."
	MsgPasswordSpecial   = "Passwords must contain at least 1 special character such as *, - or #."
	MsgPasswordsMismatch = "Sorry, your passwords do not match"
	MsgUsername          = "Usernames may only contain lowercase letters, numbers and the characters _ - . @"
	MsgEmail             = "Please enter a valid email address."
)

var (
	validate   *validator.Validate
	translator ut.Translator

	usernameRe = regexp.MustCompile(`^[a-z0-9_.@-]+$`)
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(lmsUsernameTag, func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, lmsUsernameTag, "email"} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fe.Field() + " cannot be blank"
	case lmsUsernameTag:
		return MsgUsername
	case "email":
		return MsgEmail
	default:
		return fe.Error()
	}
}

// Struct validates s against its `validate` tags and returns one message per
// failing field, in field order.
func Struct(s any) []string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return msgs
}

// Password applies the LMS password policy and returns a message for every
// rule the password breaks.
func Password(pw string) []string {
	var hasDigit, hasLower, hasUpper, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			hasSpecial = true
		}
	}
	var msgs []string
	if len([]rune(pw)) < MinPasswordLength {
		msgs = append(msgs, MsgPasswordLength)
	}
	if !hasDigit {
		msgs = append(msgs, MsgPasswordDigit)
	}
	if !hasLower {
		msgs = append(msgs, MsgPasswordLower)
	}
	if !hasUpper {
		msgs = append(msgs, MsgPasswordUpper)
	}
	if !hasSpecial {
		msgs = append(msgs, MsgPasswordSpecial)
	}
	return msgs
}

// Confirm checks that a password and its confirmation match.
func Confirm(pw, confirm string) []string {
	if pw != confirm {
		return []string{MsgPasswordsMismatch}
	}
	return nil
}
