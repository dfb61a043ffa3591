package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken      = errors.New("no authorization header")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Identity описывает пользователя, извлечённого из bearer-токена.
type Identity struct {
	SubjectID string
	Email     string
	FirstName string
	LastName  string
}

type claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	jwt.RegisteredClaims
}

// Verifier проверяет подписанные HS256-токены identity-провайдера.
// Создаётся один раз при старте процесса и передаётся хендлерам явно.
type Verifier struct {
	secret []byte
}

func NewVerifier(cfg *Config) (*Verifier, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Verifier{secret: []byte(cfg.JWTSecret)}, nil
}

// VerifyRequest достаёт bearer-токен из запроса и проверяет его.
func (v *Verifier) VerifyRequest(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, ErrNoToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return Identity{}, ErrInvalidToken
	}

	return v.ValidateToken(parts[1])
}

// ValidateToken проверяет подпись и срок токена и возвращает Identity.
func (v *Verifier) ValidateToken(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	if !token.Valid || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		SubjectID: c.Subject,
		Email:     c.Email,
		FirstName: c.GivenName,
		LastName:  c.FamilyName,
	}, nil
}
