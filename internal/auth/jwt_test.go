package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGenerateTokenAndExtract(t *testing.T) {
	secret := "test-secret"
	userID := "2b8c2c1e-54f0-4f45-9d21-3f2f6f9f0a11"
	identity := "idtok-abc"

	signed, expiresAt, err := GenerateToken(userID, identity, secret, time.Hour)
	assert.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.True(t, expiresAt.After(time.Now()))

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	assert.NoError(t, err)
	assert.True(t, parsed.Valid)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", parsed)

	gotIdentity, err := IdentityTokenFromContext(c)
	assert.NoError(t, err)
	assert.Equal(t, identity, gotIdentity)

	gotUserID, err := UserIDFromContext(c)
	assert.NoError(t, err)
	assert.Equal(t, userID, gotUserID)
}

func TestGenerateTokenValidation(t *testing.T) {
	_, _, err := GenerateToken("", "idtok", "secret", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("user", "", "secret", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("user", "idtok", "", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("user", "idtok", "secret", 0)
	assert.Error(t, err)
}

func TestIdentityTokenFromContextMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := IdentityTokenFromContext(c)
	assert.Error(t, err)

	httpErr, ok := err.(*echo.HTTPError)
	assert.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}
