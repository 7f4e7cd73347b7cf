package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotContains(t, hash, "correct horse")

	// Same password hashes to different values (random salt)
	hash2, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("s3cret-Value!")
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "s3cret-Value!"))
	assert.Error(t, ComparePassword(hash, "wrong"))
	assert.Error(t, ComparePassword(hash, ""))
}

func TestGenerateSessionToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateSessionToken()
		require.NoError(t, err)
		// 32 bytes base64url without padding
		assert.Len(t, token, 43)
		assert.False(t, seen[token], "token collision")
		seen[token] = true
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		minLen   int
		wantErr  bool
	}{
		{"meets minimum", "abcdefgh", 8, false},
		{"below minimum", "abcdefg", 8, true},
		{"stricter minimum", "abcdefghijk", 12, true},
		{"too long", strings.Repeat("a", 129), 8, true},
		{"common password", "password123", 8, true},
		{"common password different case", "Password123", 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.minLen)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
