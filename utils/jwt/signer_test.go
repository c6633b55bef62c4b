package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_IssueUserToken(t *testing.T) {
	t.Parallel()

	s, err := NewTemporarySigner()
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		token, err := s.IssueUserToken(42, "alice", time.Hour)
		require.NoError(t, err)

		claims, err := s.VerifyUserToken(token)
		if assert.NoError(t, err) {
			assert.EqualValues(t, 42, claims.UserID)
			assert.Equal(t, "alice", claims.Name)
			assert.NotEmpty(t, claims.ID)
		}
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		token, err := s.Sign(&UserClaims{
			UserID: 42,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		require.NoError(t, err)

		_, err = s.VerifyUserToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user_id", func(t *testing.T) {
		t.Parallel()
		token, err := s.Sign(&UserClaims{Name: "nobody"})
		require.NoError(t, err)

		_, err = s.VerifyUserToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed by another key", func(t *testing.T) {
		t.Parallel()
		other, err := NewTemporarySigner()
		require.NoError(t, err)
		token, err := other.IssueUserToken(42, "alice", 0)
		require.NoError(t, err)

		_, err = s.VerifyUserToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := s.VerifyUserToken("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
