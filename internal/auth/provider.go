// Package auth supplies the short-lived bearer tokens used for backend calls
// and stream connections.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrNoCredential is returned when no bearer token is available.
	ErrNoCredential = errors.New("no access token available, please sign in again")

	// ErrTokenExpired is returned for a JWT whose exp claim is in the past.
	ErrTokenExpired = errors.New("access token has expired")
)

// TokenProvider yields a bearer token for the current session.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticProvider always returns the same token.
type StaticProvider struct {
	AccessToken string
	// Leeway is subtracted from the exp claim before comparing with now.
	Leeway time.Duration

	now func() time.Time
}

// NewStaticProvider returns a provider for a fixed token.
func NewStaticProvider(token string) *StaticProvider {
	return &StaticProvider{
		AccessToken: strings.TrimSpace(token),
		Leeway:      10 * time.Second,
		now:         time.Now,
	}
}

// Token implements TokenProvider.
func (p *StaticProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.AccessToken == "" {
		return "", ErrNoCredential
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	if err := CheckExpiry(p.AccessToken, now(), p.Leeway); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return p.AccessToken, nil
}

// ChainProvider returns the first token any of its providers yields.
type ChainProvider []TokenProvider

// Token implements TokenProvider.
func (c ChainProvider) Token(ctx context.Context) (string, error) {
	lastErr := ErrNoCredential
	for _, p := range c {
		if p == nil {
			continue
		}
		token, err := p.Token(ctx)
		if err == nil && token != "" {
			return token, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return "", lastErr
}

// Claims holds the subset of JWT claims the CLI displays.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// Inspect decodes a JWT without verifying its signature. Opaque (non-JWT)
// tokens return a zero Claims and no error.
func Inspect(token string) (Claims, error) {
	if strings.Count(token, ".") != 2 {
		return Claims{}, nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return Claims{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	var claims Claims
	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	switch exp := mapClaims["exp"].(type) {
	case float64:
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	case json.Number:
		if v, err := exp.Int64(); err == nil {
			claims.ExpiresAt = time.Unix(v, 0)
		}
	}
	return claims, nil
}

// CheckExpiry returns ErrTokenExpired when the token's exp claim is before
// now+leeway. Tokens without an exp claim never expire.
func CheckExpiry(token string, now time.Time, leeway time.Duration) error {
	claims, err := Inspect(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt.IsZero() {
		return nil
	}
	if !claims.ExpiresAt.After(now.Add(leeway)) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}
