package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// StrengthResult is returned by PasswordStrength. Score is 0-100;
// Strength is "weak" (<50), "medium" (<80) or "strong" (>=80).
type StrengthResult struct {
	Strength string   `json:"strength"`
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// commonSubstrings are trivially guessable fragments that cost a
// candidate password its bonus points.
var commonSubstrings = []string{"123", "abc", "password", "qwerty"}

// PasswordStrength scores a candidate password:
//
//	+25  length >= 12
//	+15  each of: upper, lower, digit, special
//	+10  character diversity (unique/total) >= 70%
//	+5   none of the common substrings present
//
// Feedback lists what the password is missing.
func PasswordStrength(plain string) StrengthResult {
	var res StrengthResult

	if len(plain) >= 12 {
		res.Score += 25
	} else {
		res.Feedback = append(res.Feedback, "use at least 12 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	seen := map[rune]bool{}
	for _, r := range plain {
		seen[r] = true
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if hasUpper {
		res.Score += 15
	} else {
		res.Feedback = append(res.Feedback, "add an uppercase letter")
	}
	if hasLower {
		res.Score += 15
	} else {
		res.Feedback = append(res.Feedback, "add a lowercase letter")
	}
	if hasDigit {
		res.Score += 15
	} else {
		res.Feedback = append(res.Feedback, "add a digit")
	}
	if hasSpecial {
		res.Score += 15
	} else {
		res.Feedback = append(res.Feedback, "add a special character")
	}

	if n := len([]rune(plain)); n > 0 && len(seen)*100 >= 70*n {
		res.Score += 10
	} else if n > 0 {
		res.Feedback = append(res.Feedback, "avoid repeated characters")
	}

	lower := strings.ToLower(plain)
	common := false
	for _, s := range commonSubstrings {
		if strings.Contains(lower, s) {
			common = true
			break
		}
	}
	if !common {
		res.Score += 5
	} else {
		res.Feedback = append(res.Feedback, "avoid common sequences")
	}

	switch {
	case res.Score >= 80:
		res.Strength = "strong"
	case res.Score >= 50:
		res.Strength = "medium"
	default:
		res.Strength = "weak"
	}
	return res
}
