package jwt

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/traPtitech/callsignal/utils/random"
)

// ErrInvalidToken トークンが不正です
var ErrInvalidToken = errors.New("invalid token")

// UserClaims シグナリングチャンネル用トークンのクレーム
type UserClaims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Signer JWTの発行と検証を行います
type Signer struct {
	pub  *ecdsa.PublicKey
	priv *ecdsa.PrivateKey
}

// NewSigner PEM形式のECDSA秘密鍵からSignerを生成します
func NewSigner(privRaw []byte) (*Signer, error) {
	priv, err := jwt.ParseECPrivateKeyFromPEM(bytes.TrimSpace(privRaw))
	if err != nil {
		return nil, err
	}
	return &Signer{pub: &priv.PublicKey, priv: priv}, nil
}

// NewTemporarySigner 一時的な鍵でSignerを生成します
func NewTemporarySigner() (*Signer, error) {
	priv, _, err := random.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}
	return NewSigner(priv)
}

// Sign JWTの発行を行う
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(s.priv)
}

// IssueUserToken ユーザー用のトークンを発行します
func (s *Signer) IssueUserToken(userID int64, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &UserClaims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       random.SecureAlphaNumeric(16),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return s.Sign(claims)
}

// Verify JWTの検証を行う
func (s *Signer) Verify(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.pub, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// VerifyUserToken ユーザー用のトークンを検証し、クレームを返します
func (s *Signer) VerifyUserToken(tokenString string) (*UserClaims, error) {
	var claims UserClaims
	if err := s.Verify(tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return &claims, nil
}
