package random

import (
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphaNumeric(t *testing.T) {
	t.Parallel()

	set := make(map[string]bool, 1000)
	for range 1000 {
		s := AlphaNumeric(20)
		assert.Regexp(t, `^[a-zA-Z0-9]{20}$`, s)
		if set[s] {
			t.FailNow()
		}
		set[s] = true
	}
}

func TestSecureAlphaNumeric(t *testing.T) {
	t.Parallel()

	set := make(map[string]bool, 1000)
	for range 1000 {
		s := SecureAlphaNumeric(16)
		assert.Regexp(t, `^[a-zA-Z0-9]{16}$`, s)
		if set[s] {
			t.FailNow()
		}
		set[s] = true
	}
}

func TestSecureAlphaNumeric_length(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, 1, 63, 300} {
		assert.Len(t, SecureAlphaNumeric(n), n)
	}
}

func TestGenerateECDSAKey(t *testing.T) {
	t.Parallel()

	priv, pub, err := GenerateECDSAKey()
	require.NoError(t, err)

	b, _ := pem.Decode(priv)
	require.NotNil(t, b)
	assert.Equal(t, "EC PRIVATE KEY", b.Type)

	b, _ = pem.Decode(pub)
	require.NotNil(t, b)
	assert.Equal(t, "PUBLIC KEY", b.Type)
}
