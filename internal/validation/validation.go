// Package validation checks credential form input before it reaches an auth
// backend. Every function here is pure.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLength       = 8
	MaxPasswordLength       = 128
	MinSignInPasswordLength = 6

	// Email local-parts shorter than this are not checked for containment.
	minLocalPartLength = 3

	SpecialCharacters = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Rule identifies a single credential rule. Values double as data-rule keys
// in the registration form.
type Rule string

const (
	RuleEmail           Rule = "email"
	RuleRequired        Rule = "required"
	RuleMinLength       Rule = "minLength"
	RuleMaxLength       Rule = "maxLength"
	RuleLowercase       Rule = "lowercase"
	RuleUppercase       Rule = "uppercase"
	RuleNumber          Rule = "number"
	RuleSpecial         Rule = "special"
	RuleNoSpaces        Rule = "noSpaces"
	RuleNotContainEmail Rule = "notContainEmail"
	RuleNotCommon       Rule = "notCommon"
	RuleConfirmMatch    Rule = "confirmMatch"
	RuleSignInLength    Rule = "signInLength"
)

var messages = map[Rule]string{
	RuleEmail:           "Please enter a valid email address.",
	RuleRequired:        "Password is required.",
	RuleMinLength:       "Must be at least 8 characters long.",
	RuleMaxLength:       "Must be no more than 128 characters long.",
	RuleLowercase:       "Include at least one lowercase letter.",
	RuleUppercase:       "Include at least one uppercase letter.",
	RuleNumber:          "Include at least one number.",
	RuleSpecial:         "Include at least one special character.",
	RuleNoSpaces:        "Password must not contain spaces.",
	RuleNotContainEmail: "Password should not contain part of your email.",
	RuleNotCommon:       "Not a commonly used password.",
	RuleConfirmMatch:    "Passwords do not match.",
	RuleSignInLength:    "Password must be at least 6 characters long.",
}

// Message returns the user-facing text for a rule.
func (r Rule) Message() string {
	return messages[r]
}

// Violation is a rule the submitted input failed.
type Violation struct {
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func violation(r Rule) Violation {
	return Violation{Rule: r, Message: r.Message()}
}

// Messages flattens violations into their display strings.
func Messages(violations []Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Message)
	}
	return out
}

// ValidateEmail reports whether email has a local@domain.tld shape.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.ToLower(email))
}

// ValidatePassword applies the registration policy and returns every rule
// the password violates. An empty password only yields RuleRequired.
func ValidatePassword(password, email string) []Violation {
	if password == "" {
		return []Violation{violation(RuleRequired)}
	}

	var out []Violation
	for _, check := range strictChecks {
		if !check.pass(password, email) {
			out = append(out, violation(check.rule))
		}
	}
	return out
}

// ValidateSignInPassword applies the weaker sign-in policy kept for accounts
// created before the strict rules existed.
func ValidateSignInPassword(password string) []Violation {
	if utf8.RuneCountInString(password) < MinSignInPasswordLength {
		return []Violation{violation(RuleSignInLength)}
	}
	return nil
}

// ValidateRegistration validates a sign-up submission. The confirmation is
// only compared once the email and every password rule pass.
func ValidateRegistration(email, password, confirm string) []Violation {
	var out []Violation
	if !ValidateEmail(email) {
		out = append(out, violation(RuleEmail))
	}
	out = append(out, ValidatePassword(password, email)...)
	if len(out) > 0 {
		return out
	}

	if password != confirm {
		return []Violation{violation(RuleConfirmMatch)}
	}
	return nil
}

// ValidateSignIn validates a sign-in submission.
func ValidateSignIn(email, password string) []Violation {
	var out []Violation
	if !ValidateEmail(email) {
		out = append(out, violation(RuleEmail))
	}
	return append(out, ValidateSignInPassword(password)...)
}

type check struct {
	rule Rule
	pass func(password, email string) bool
}

var strictChecks = []check{
	{RuleMinLength, func(pw, _ string) bool { return utf8.RuneCountInString(pw) >= MinPasswordLength }},
	{RuleMaxLength, func(pw, _ string) bool { return utf8.RuneCountInString(pw) <= MaxPasswordLength }},
	{RuleLowercase, func(pw, _ string) bool { return strings.IndexFunc(pw, isASCIILower) >= 0 }},
	{RuleUppercase, func(pw, _ string) bool { return strings.IndexFunc(pw, isASCIIUpper) >= 0 }},
	{RuleNumber, func(pw, _ string) bool { return strings.IndexFunc(pw, isASCIIDigit) >= 0 }},
	{RuleSpecial, func(pw, _ string) bool { return strings.ContainsAny(pw, SpecialCharacters) }},
	{RuleNoSpaces, func(pw, _ string) bool { return strings.IndexFunc(pw, unicode.IsSpace) < 0 }},
	{RuleNotContainEmail, notContainEmail},
}

func notContainEmail(password, email string) bool {
	local := LocalPart(email)
	if utf8.RuneCountInString(local) < minLocalPartLength {
		return true
	}
	return !strings.Contains(strings.ToLower(password), strings.ToLower(local))
}

// LocalPart returns the part of email before the first "@", or "" when
// email has no "@".
func LocalPart(email string) string {
	local, _, found := strings.Cut(strings.TrimSpace(email), "@")
	if !found {
		return ""
	}
	return local
}

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
