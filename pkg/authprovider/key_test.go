package authprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	a := DeriveKey(KeyStrategyCredentials, "fry", "fry")
	b := DeriveKey(KeyStrategyCredentials, "fry", "fry")
	assert.Equal(t, a, b)
}

func TestDeriveKey_SeparatorAmbiguity(t *testing.T) {
	a := DeriveKey(KeyStrategyCredentials, "a", "b/c")
	b := DeriveKey(KeyStrategyCredentials, "a/b", "c")
	assert.NotEqual(t, a, b)

	c := DeriveKey(KeyStrategyCredentials, "ab", "c")
	d := DeriveKey(KeyStrategyCredentials, "a", "bc")
	assert.NotEqual(t, c, d)
}

func TestDeriveKey_SecretMatters(t *testing.T) {
	assert.NotEqual(t,
		DeriveKey(KeyStrategyCredentials, "fry", "fry"),
		DeriveKey(KeyStrategyCredentials, "fry", "Fry"),
	)
}

func TestDeriveKey_IdentityStrategyIgnoresSecret(t *testing.T) {
	assert.Equal(t,
		DeriveKey(KeyStrategyIdentity, "fry", "one"),
		DeriveKey(KeyStrategyIdentity, "fry", "two"),
	)
	assert.NotEqual(t,
		DeriveKey(KeyStrategyIdentity, "fry", ""),
		DeriveKey(KeyStrategyCredentials, "fry", ""),
	)
}

func TestDeriveKey_DoesNotContainSecret(t *testing.T) {
	k := DeriveKey(KeyStrategyCredentials, "fry", "supersecret")
	assert.NotContains(t, string(k[:]), "supersecret")
}

func TestParseKeyStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyStrategy
		wantErr bool
	}{
		{"", KeyStrategyCredentials, false},
		{"credentials", KeyStrategyCredentials, false},
		{" Identity ", KeyStrategyIdentity, false},
		{"username", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKeyStrategy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
