package cli

import (
	"os"
	"testing"
	"time"

	clierrors "github.com/agentdeck/agentctl/internal/errors"
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

func TestAuthLoginAndStatus(t *testing.T) {
	configPath := testEnv(t, "")
	t.Setenv("AGENTCTL_TOKEN", "")

	token := signedToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "dev@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	_, stderr, err := executeCommand("auth", "login",
		"--context", "prod", "--api-url", "https://api.example.com", "--token", token)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Logged in")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "current-context: prod")
	assert.Contains(t, string(data), "api-url: https://api.example.com")

	stdout, _, err := executeCommand("auth", "status")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Context\tprod")
	assert.Contains(t, stdout, "API URL\thttps://api.example.com")
	assert.Contains(t, stdout, "Subject\tuser-1")
	assert.Contains(t, stdout, "Email\tdev@example.com")
}

func TestAuthLoginRejectsExpiredToken(t *testing.T) {
	configPath := testEnv(t, "")
	t.Setenv("AGENTCTL_TOKEN", "")

	token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	_, _, err := executeCommand("auth", "login", "--token", token)
	require.Error(t, err)
	assert.Equal(t, clierrors.ExitCodeAuth, clierrors.ExitCodeFromError(err))

	_, statErr := os.Stat(configPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAuthLoginNeedsTokenWhenNotInteractive(t *testing.T) {
	testEnv(t, "")
	t.Setenv("AGENTCTL_TOKEN", "")

	_, _, err := executeCommand("auth", "login")
	require.Error(t, err)
	assert.Equal(t, clierrors.ExitCodeValidation, clierrors.ExitCodeFromError(err))
}

func TestAuthStatusWithoutCredential(t *testing.T) {
	testEnv(t, "")
	t.Setenv("AGENTCTL_TOKEN", "")

	_, _, err := executeCommand("auth", "status")
	require.Error(t, err)
	assert.Equal(t, clierrors.ExitCodeAuth, clierrors.ExitCodeFromError(err))
}

func TestAuthLogout(t *testing.T) {
	testEnv(t, "")
	t.Setenv("AGENTCTL_TOKEN", "")

	_, stderr, err := executeCommand("auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Not logged in")

	_, _, err = executeCommand("auth", "login", "--token", "opaque-token")
	require.NoError(t, err)
	_, stderr, err = executeCommand("auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Logged out")

	_, _, err = executeCommand("auth", "status")
	assert.Error(t, err)
}
