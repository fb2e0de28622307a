// Package identity hashes credentials and issues the signed session tokens
// clients present on reconnect.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"
)

var ErrInvalidToken = errors.New("invalid token")

type Provider interface {
	HashPassword(password string) (string, error)
	VerifyPassword(passwordHash, password string) bool
	IssueToken(userId int) (string, error)
	VerifyToken(token string) (int, error)
}

type JwtProvider struct {
	signingKey []byte
	tokenTTL   time.Duration
	cost       int
}

func NewJwtProvider(signingKey []byte, tokenTTL time.Duration) *JwtProvider {
	return &JwtProvider{
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		cost:       bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (p *JwtProvider) WithCost(cost int) *JwtProvider {
	p.cost = cost
	return p
}

func (p *JwtProvider) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	return string(hash), err
}

func (p *JwtProvider) VerifyPassword(passwordHash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	return err == nil
}

func (p *JwtProvider) IssueToken(userId int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    time.Now().Add(p.tokenTTL).Unix(),
	})

	return token.SignedString(p.signingKey)
}

func (p *JwtProvider) VerifyToken(tokenString string) (int, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.signingKey, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims: %w", ErrInvalidToken)
	}

	userId, ok := claims[userIdClaim].(float64)
	if !ok || userId <= 0 {
		return 0, fmt.Errorf("invalid user id claim: %w", ErrInvalidToken)
	}

	return int(userId), nil
}
