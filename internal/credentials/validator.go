// Package credentials holds the registration input policy. Rules run in a fixed
// order and the first failing rule decides the error returned to the client.
// Fullname is optional and never length checked, but a non-string fullname is
// rejected as an invalid type; that check runs last, after the password rules.
package credentials

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"noteful-auth/internal/apperr"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Field is a raw request value. Present is false when the key was absent,
// which is different from an explicit JSON null.
type Field struct {
	Value   any
	Present bool
}

// Value wraps a present value.
func Value(v any) Field {
	return Field{Value: v, Present: true}
}

// FieldFrom looks key up in a decoded JSON object.
func FieldFrom(body map[string]any, key string) Field {
	v, ok := body[key]
	return Field{Value: v, Present: ok}
}

// RegistrationInput is the undecoded registration request.
type RegistrationInput struct {
	Username Field
	Password Field
	Fullname Field
}

// Registration is a validated, normalized registration request.
type Registration struct {
	Username string
	Password string
	Fullname string
}

type rule func(in RegistrationInput) error

var rules = []rule{
	requirePresent("username", func(in RegistrationInput) Field { return in.Username }),
	requirePresent("password", func(in RegistrationInput) Field { return in.Password }),
	requireString("username", func(in RegistrationInput) Field { return in.Username }),
	requireString("password", func(in RegistrationInput) Field { return in.Password }),
	requireTrimmed("username", func(in RegistrationInput) Field { return in.Username }),
	requireTrimmed("password", func(in RegistrationInput) Field { return in.Password }),
	usernameLength,
	passwordLength,
	fullnameType,
}

// Validate applies the registration rules in order and stops at the first failure.
func Validate(in RegistrationInput) (Registration, error) {
	for _, check := range rules {
		if err := check(in); err != nil {
			return Registration{}, err
		}
	}

	reg := Registration{
		Username: in.Username.Value.(string),
		Password: in.Password.Value.(string),
	}
	if s, ok := in.Fullname.Value.(string); ok {
		reg.Fullname = strings.TrimSpace(s)
	}
	return reg, nil
}

func requirePresent(name string, get func(RegistrationInput) Field) rule {
	return func(in RegistrationInput) error {
		if !get(in).Present {
			return apperr.ForField(apperr.KindMissingField, name, fmt.Sprintf("%s required!", name))
		}
		return nil
	}
}

func requireString(name string, get func(RegistrationInput) Field) rule {
	return func(in RegistrationInput) error {
		if _, ok := get(in).Value.(string); !ok {
			return invalidType(name)
		}
		return nil
	}
}

func requireTrimmed(name string, get func(RegistrationInput) Field) rule {
	return func(in RegistrationInput) error {
		s := get(in).Value.(string)
		if strings.TrimSpace(s) != s {
			return apperr.ForField(apperr.KindNotTrimmed, name,
				fmt.Sprintf("%s must not have leading or trailing spaces!", name))
		}
		return nil
	}
}

func usernameLength(in RegistrationInput) error {
	if len(in.Username.Value.(string)) < 1 {
		return apperr.ForField(apperr.KindTooShort, "username", "Username must be at least ONE character, c'mon!")
	}
	return nil
}

// Lengths count characters. The ceiling also applies to bytes since bcrypt
// only considers the first 72 bytes.
func passwordLength(in RegistrationInput) error {
	s := in.Password.Value.(string)
	switch {
	case utf8.RuneCountInString(s) < MinPasswordLength:
		return apperr.ForField(apperr.KindTooShort, "password", "Passwords must be at least eight characters")
	case len(s) > MaxPasswordLength:
		return apperr.ForField(apperr.KindTooLong, "password", "Passwords must be no more than seventy-two characters")
	}
	return nil
}

func fullnameType(in RegistrationInput) error {
	if !in.Fullname.Present || in.Fullname.Value == nil {
		return nil
	}
	if _, ok := in.Fullname.Value.(string); !ok {
		return invalidType("fullname")
	}
	return nil
}

func invalidType(name string) error {
	return apperr.ForField(apperr.KindInvalidType, name,
		fmt.Sprintf("%s not valid! Needs to be a string please", name))
}
