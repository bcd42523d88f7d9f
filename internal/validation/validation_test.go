package validation

import (
	"reflect"
	"strings"
	"testing"
)

func rules(vs []Violation) []Rule {
	out := make([]Rule, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Rule)
	}
	return out
}

func hasRule(vs []Violation, r Rule) bool {
	for _, v := range vs {
		if v.Rule == r {
			return true
		}
	}
	return false
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@b.co", true},
		{"user@example.com", true},
		{"User.Name+tag@Example.ORG", true},
		{"not-an-email", false},
		{"", false},
		{"a@b", false},
		{"a b@c.de", false},
		{"a@@b.co", false},
		{"@b.co", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidateEmail(tt.email); got != tt.want {
				t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestValidatePassword_ShortPasswordsAlwaysFail(t *testing.T) {
	for _, pw := range []string{"a", "Ab1!", "Abcde1!", "       ", "日本語パスワ"} {
		vs := ValidatePassword(pw, "someone@example.com")
		if len(vs) == 0 {
			t.Errorf("ValidatePassword(%q) returned no violations", pw)
		}
		if !hasRule(vs, RuleMinLength) {
			t.Errorf("ValidatePassword(%q) missing minLength, got %v", pw, rules(vs))
		}
	}
}

func TestValidatePassword_Empty(t *testing.T) {
	got := rules(ValidatePassword("", "user@example.com"))
	want := []Rule{RuleRequired}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidatePassword_CollectsAllViolations(t *testing.T) {
	got := rules(ValidatePassword("abc def", "x@example.com"))
	want := []Rule{RuleMinLength, RuleUppercase, RuleNumber, RuleSpecial, RuleNoSpaces}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidatePassword_MaxLength(t *testing.T) {
	pw := "Aa1!" + strings.Repeat("x", 125)
	got := rules(ValidatePassword(pw, "x@example.com"))
	if !reflect.DeepEqual(got, []Rule{RuleMaxLength}) {
		t.Errorf("got %v, want [maxLength]", got)
	}

	if vs := ValidatePassword(pw[:128], "x@example.com"); len(vs) != 0 {
		t.Errorf("128 characters should pass, got %v", rules(vs))
	}
}

func TestValidatePassword_EmailContainment(t *testing.T) {
	tests := []struct {
		name     string
		password string
		email    string
		want     bool
	}{
		{"exact local part", "Alice#2024x", "alice@example.com", true},
		{"case insensitive", "xxALICExx1!", "alice@example.com", true},
		{"mixed case email", "my-alice-9X", "Alice@Example.com", true},
		{"local part too short", "Bo#12345xy", "bo@example.com", false},
		{"three characters checked", "Bob#12345x", "bob@example.com", true},
		{"not contained", "Passw0rd!", "user@example.com", false},
		{"no email", "Passw0rd!", "", false},
		{"email without at sign", "Userx1!aaa", "userx", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hasRule(ValidatePassword(tt.password, tt.email), RuleNotContainEmail)
			if got != tt.want {
				t.Errorf("notContainEmail violated = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocalPart(t *testing.T) {
	tests := map[string]string{
		"alice@example.com":   "alice",
		" alice@example.com ": "alice",
		"alice":               "",
		"":                    "",
		"@example.com":        "",
	}
	for email, want := range tests {
		if got := LocalPart(email); got != want {
			t.Errorf("LocalPart(%q) = %q, want %q", email, got, want)
		}
	}
}

func TestValidatePassword_WhitespaceVariants(t *testing.T) {
	for _, pw := range []string{"Passw0rd! x", "Passw0rd!\tx", "Passw0rd! x"} {
		if !hasRule(ValidatePassword(pw, ""), RuleNoSpaces) {
			t.Errorf("ValidatePassword(%q) should report noSpaces", pw)
		}
	}
}

func TestValidateRegistration_Scenario(t *testing.T) {
	if vs := ValidateRegistration("user@example.com", "Passw0rd!", "Passw0rd!"); len(vs) != 0 {
		t.Fatalf("expected no violations, got %v", rules(vs))
	}

	vs := ValidateRegistration("user@example.com", "Passw0rd!", "Passw0rd")
	if !reflect.DeepEqual(rules(vs), []Rule{RuleConfirmMatch}) {
		t.Fatalf("expected only confirmMatch, got %v", rules(vs))
	}
	if vs[0].Message != "Passwords do not match." {
		t.Errorf("message = %q", vs[0].Message)
	}
}

func TestValidateRegistration_MismatchCheckedLast(t *testing.T) {
	vs := ValidateRegistration("bad-email", "short", "different")
	got := rules(vs)
	if hasRule(vs, RuleConfirmMatch) {
		t.Errorf("confirmMatch must not be reported alongside rule violations: %v", got)
	}
	if got[0] != RuleEmail {
		t.Errorf("first violation = %v, want email", got[0])
	}
	if !hasRule(vs, RuleMinLength) {
		t.Errorf("expected minLength in %v", got)
	}
}

func TestValidateSignIn(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		want     []Rule
	}{
		{"valid legacy password", "a@b.co", "abcdef", nil},
		{"short password", "a@b.co", "abc", []Rule{RuleSignInLength}},
		{"bad email and short", "nope", "abc", []Rule{RuleEmail, RuleSignInLength}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules(ValidateSignIn(tt.email, tt.password))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	vs := ValidateSignIn("a@b.co", "abc")
	if vs[0].Message != "Password must be at least 6 characters long." {
		t.Errorf("message = %q", vs[0].Message)
	}
}

func TestMessages(t *testing.T) {
	got := Messages(ValidateRegistration("nope", "", ""))
	want := []string{"Please enter a valid email address.", "Password is required."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
