// Package auth проверяет bearer-токены и определяет, кто выполняет запрос.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/yummybites/internal/domain"
)

// Authenticator проверяет HS256 JWT. Администратором считается единственный email из конфигурации.
type Authenticator struct {
	secret     []byte
	adminEmail string
	parser     *jwt.Parser
}

// New создаёт Authenticator. Пустой secret отключает проверку: любой токен отклоняется.
func New(secret, adminEmail string) *Authenticator {
	return &Authenticator{
		secret:     []byte(secret),
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Actor извлекает пользователя из заголовка Authorization.
// Без заголовка возвращается гость, испорченный или просроченный токен даёт ErrUnauthenticated.
func (a *Authenticator) Actor(header string) (domain.Actor, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return domain.Actor{}, nil
	}

	scheme, raw, ok := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
		return domain.Actor{}, fmt.Errorf("%w: malformed authorization header", domain.ErrUnauthenticated)
	}
	return a.ActorFromToken(raw)
}

// ActorFromToken проверяет сам токен без схемы.
func (a *Authenticator) ActorFromToken(raw string) (domain.Actor, error) {
	if len(a.secret) == 0 {
		return domain.Actor{}, fmt.Errorf("%w: token verification is not configured", domain.ErrUnauthenticated)
	}

	var claims jwt.RegisteredClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	email := strings.ToLower(strings.TrimSpace(claims.Subject))
	if email == "" {
		return domain.Actor{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return domain.Actor{
		Email: email,
		Admin: a.adminEmail != "" && email == a.adminEmail,
	}, nil
}

// SignToken выпускает токен для тестов и отладочных утилит.
func SignToken(secret, email string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret is required")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}
