package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/access-ledger-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookIssuer is the issuer expected on referral completion tokens.
const WebhookIssuer = "onboarding"

// WebhookClaims identifies the service that sent a webhook.
type WebhookClaims struct {
	jwt.RegisteredClaims
}

// WebhookVerifier validates HS256 tokens shared with the onboarding service.
// It authenticates the calling service, not end users.
type WebhookVerifier struct {
	secret []byte
	now    Clock
}

// NewWebhookVerifier creates a verifier. An empty secret is rejected.
func NewWebhookVerifier(secret string, now Clock) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, &domain.ErrConfiguration{Field: "ONBOARDING_WEBHOOK_SECRET", Message: "required"}
	}
	if now == nil {
		now = time.Now
	}
	return &WebhookVerifier{secret: []byte(secret), now: now}, nil
}

// Verify parses and validates a bearer token.
func (v *WebhookVerifier) Verify(tokenString string) (*WebhookClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WebhookClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(WebhookIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.ErrUnauthorized{Message: "webhook token expired"}
		}
		return nil, &domain.ErrUnauthorized{Message: "invalid webhook token"}
	}

	claims, ok := token.Claims.(*WebhookClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid webhook token"}
	}
	return claims, nil
}

// Sign issues a token for subject valid for ttl. The onboarding service
// signs the same way; tests and local tooling use it directly.
func (v *WebhookVerifier) Sign(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := WebhookClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    WebhookIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
