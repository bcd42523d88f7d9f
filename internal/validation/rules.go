package validation

import (
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// RuleStatus is one line of the live password requirements list.
type RuleStatus struct {
	Rule    Rule   `json:"rule"`
	Label   string `json:"label"`
	Passing bool   `json:"passing"`
}

var ruleLabels = []struct {
	rule  Rule
	label string
}{
	{RuleMinLength, "At least 8 characters"},
	{RuleMaxLength, "No more than 128 characters"},
	{RuleLowercase, "One lowercase letter"},
	{RuleUppercase, "One uppercase letter"},
	{RuleNumber, "One number"},
	{RuleSpecial, "One special character"},
	{RuleNoSpaces, "No spaces"},
	{RuleNotContainEmail, "Does not contain your email"},
	{RuleNotCommon, "Not a commonly used password"},
}

// RuleStatuses reports the pass state of every registration rule for the
// live indicator. notCommon only tracks length here; the breach check at
// submission is authoritative.
func RuleStatuses(password, email string) []RuleStatus {
	failed := make(map[Rule]bool)
	for _, v := range ValidatePassword(password, email) {
		failed[v.Rule] = true
	}

	empty := password == ""
	out := make([]RuleStatus, 0, len(ruleLabels))
	for _, rl := range ruleLabels {
		var passing bool
		switch rl.rule {
		case RuleMaxLength:
			passing = !empty && !failed[RuleMaxLength]
		case RuleNotCommon:
			passing = utf8.RuneCountInString(password) >= MinPasswordLength
		default:
			passing = !empty && !failed[rl.rule]
		}
		out = append(out, RuleStatus{Rule: rl.rule, Label: rl.label, Passing: passing})
	}
	return out
}

// maxEmailInputLength bounds the email handed to zxcvbn as a user input.
const maxEmailInputLength = 254

// Strength returns the zxcvbn score (0-4) of password, penalising the email
// and its local-part as user inputs. Advisory only. Passwords over
// MaxPasswordLength score 0 without being matched.
func Strength(password, email string) int {
	if password == "" || utf8.RuneCountInString(password) > MaxPasswordLength {
		return 0
	}
	var inputs []string
	if email != "" && len(email) <= maxEmailInputLength {
		inputs = append(inputs, email)
		if local := LocalPart(email); local != "" {
			inputs = append(inputs, local)
		}
	}
	return zxcvbn.PasswordStrength(password, inputs).Score
}

// StrengthLabel maps a zxcvbn score to a display word.
func StrengthLabel(score int) string {
	switch {
	case score <= 1:
		return "weak"
	case score == 2:
		return "fair"
	case score == 3:
		return "good"
	default:
		return "strong"
	}
}
