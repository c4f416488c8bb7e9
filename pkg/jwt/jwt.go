// Package jwt проверяет RS256 токены мерчантов.
// У сервиса расчётов только публичный ключ: токены выпускает другая сторона.
package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example.com/card-settlement/pkg/logger"
)

var (
	ErrInvalidToken = errors.New("невалидный токен")
	ErrTokenRevoked = errors.New("токен отозван")
)

// Claims: содержимое токена мерчанта.
type Claims struct {
	jwt.RegisteredClaims
	MerchantID string `json:"merchant_id"`
}

// RevocationChecker сообщает, отозван ли токен.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, claims *Claims) (bool, error)
}

// Option настраивает Validator.
type Option func(*Validator)

// WithIssuer требует совпадения iss.
func WithIssuer(issuer string) Option {
	return func(v *Validator) { v.issuer = issuer }
}

// WithLeeway допускает расхождение часов при проверке exp, nbf и iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Validator) { v.leeway = d }
}

// WithRevocations включает проверку отзыва. Если проверка не удалась
// (Redis недоступен), токен принимается: подпись и срок уже проверены.
func WithRevocations(r RevocationChecker) Option {
	return func(v *Validator) { v.revocations = r }
}

// Validator проверяет подпись, срок, издателя и отзыв токена.
type Validator struct {
	key         *rsa.PublicKey
	issuer      string
	leeway      time.Duration
	revocations RevocationChecker
	parser      *jwt.Parser
}

// NewValidator создаёт Validator для публичного ключа.
func NewValidator(key *rsa.PublicKey, opts ...Option) *Validator {
	v := &Validator{key: key}
	for _, opt := range opts {
		opt(v)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	v.parser = jwt.NewParser(parserOpts...)

	return v
}

// Validate возвращает claims действующего токена.
func (v *Validator) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.MerchantID == "" {
		return nil, fmt.Errorf("%w: нет merchant_id", ErrInvalidToken)
	}

	if v.revocations == nil {
		return claims, nil
	}

	revoked, err := v.revocations.IsRevoked(ctx, claims)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("jti", claims.ID).Msg("Отзыв токена не проверен")
		return claims, nil
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// LoadPublicKey читает RSA ключ из PEM (PUBLIC KEY или RSA PUBLIC KEY).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключа %s: %w", path, err)
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора ключа %s: %w", path, err)
	}
	return key, nil
}
