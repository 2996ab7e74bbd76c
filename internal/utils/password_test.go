package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("S3cure!Passw0rd", 4)
	require.NoError(t, err)
	require.NotEqual(t, "S3cure!Passw0rd", hash)

	assert.True(t, VerifyPassword(hash, "S3cure!Passw0rd"))
	assert.False(t, VerifyPassword(hash, "S3cure!Passw0rd "))
	assert.False(t, VerifyPassword(hash, ""))
	assert.False(t, VerifyPassword("not a bcrypt hash", "S3cure!Passw0rd"))
}

func TestHashPasswordSalts(t *testing.T) {
	a, err := HashPassword("same input", 4)
	require.NoError(t, err)
	b, err := HashPassword("same input", 4)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		score    int
		strength string
	}{
		// 25 + 15*4 + 10 + 5
		{"all criteria", "Tr!ckyH0rse&Cart", 100, "strong"},
		// no length bonus, no special, diversity ok, no commons
		{"short mixed", "Xk2mPq", 60, "medium"},
		// lowercase only, repeated, short
		{"repeated lowercase", "aaaaaaa", 20, "weak"},
		// common sequence costs the bonus
		{"contains password", "MyPassword2024!!", 95, "strong"},
		// digits only
		{"digits only", "987654", 30, "weak"},
		{"empty", "", 5, "weak"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := PasswordStrength(tc.password)
			assert.Equal(t, tc.score, res.Score)
			assert.Equal(t, tc.strength, res.Strength)
		})
	}
}

func TestPasswordStrengthFeedback(t *testing.T) {
	res := PasswordStrength("short")
	assert.Contains(t, res.Feedback, "use at least 12 characters")
	assert.Contains(t, res.Feedback, "add an uppercase letter")
	assert.Contains(t, res.Feedback, "add a digit")
	assert.Contains(t, res.Feedback, "add a special character")

	strong := PasswordStrength("Tr!ckyH0rse&Cart")
	assert.Empty(t, strong.Feedback)
}
