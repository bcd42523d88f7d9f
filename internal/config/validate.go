package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrGoTrueURLRequired = errors.New("GOTRUE_URL is required when AUTH_BACKEND=gotrue")

// Validate checks the loaded configuration and reports every problem at once.
func (c *Config) Validate() error {
	v := validator.New()

	var msgs []string
	if err := v.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
	}

	if c.Auth.Backend == AuthBackendGoTrue && c.GoTrue.URL == "" {
		msgs = append(msgs, ErrGoTrueURLRequired.Error())
	}

	if len(msgs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func fieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	case "url":
		return field + " must be an absolute URL"
	default:
		return fmt.Sprintf("%s failed validation (%s=%s)", field, fe.Tag(), fe.Param())
	}
}
