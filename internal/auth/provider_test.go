package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestStaticProvider(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty token", token: "", wantErr: ErrNoCredential},
		{name: "whitespace token", token: "   ", wantErr: ErrNoCredential},
		{name: "opaque token", token: "sk-live-123"},
		{
			name:  "jwt valid",
			token: signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": now.Add(time.Hour).Unix()}),
		},
		{
			name:    "jwt expired",
			token:   signedToken(t, jwt.MapClaims{"sub": "user-1", "exp": now.Add(-time.Minute).Unix()}),
			wantErr: ErrNoCredential,
		},
		{
			name:    "jwt inside leeway",
			token:   signedToken(t, jwt.MapClaims{"exp": now.Add(5 * time.Second).Unix()}),
			wantErr: ErrNoCredential,
		},
		{
			name:  "jwt without exp",
			token: signedToken(t, jwt.MapClaims{"sub": "user-1"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewStaticProvider(tt.token)
			p.now = func() time.Time { return now }

			got, err := p.Token(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, got)
		})
	}
}

func TestStaticProviderCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticProvider("tok").Token(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspect(t *testing.T) {
	exp := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	token := signedToken(t, jwt.MapClaims{"sub": "user-9", "email": "a@example.com", "exp": exp.Unix()})

	claims, err := Inspect(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.True(t, exp.Equal(claims.ExpiresAt))

	claims, err = Inspect("opaque")
	require.NoError(t, err)
	assert.Zero(t, claims)

	_, err = Inspect("not.a.jwt")
	assert.Error(t, err)
}

func TestChainProvider(t *testing.T) {
	failing := TokenFunc(func(context.Context) (string, error) { return "", errors.New("keyring locked") })
	empty := NewStaticProvider("")
	good := NewStaticProvider("tok-2")

	token, err := ChainProvider{nil, failing, empty, good}.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	_, err = ChainProvider{empty}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)

	_, err = ChainProvider{}.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredential)
}
