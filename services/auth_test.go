package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/interviewhelper/backend/repository"
	"github.com/interviewhelper/backend/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJWTConfig = JWTConfig{
	Secret:        "test-secret",
	Issuer:        "InterviewHelperAPI",
	Audience:      "InterviewHelperClient",
	ExpireMinutes: 60,
}

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	repo := repository.NewGORMRepository(testhelpers.SetupTestDB(t))
	return NewAuthService(repo, testJWTConfig)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()

	user, token, err := auth.Register(ctx, RegisterInput{Username: "alex", Email: "alex@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "free", user.SubscriptionTier)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	verified, err := auth.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	_, token, err = auth.Authenticate(ctx, "alex@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = auth.Authenticate(ctx, "alex@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = auth.Authenticate(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsExistingUser(t *testing.T) {
	auth := newTestAuthService(t)
	ctx := context.Background()
	_, _, err := auth.Register(ctx, RegisterInput{Username: "alex", Email: "alex@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, _, err = auth.Register(ctx, RegisterInput{Username: "alex2", Email: "alex@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUserExists)
	_, _, err = auth.Register(ctx, RegisterInput{Username: "alex", Email: "other@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestVerifyTokenRejectsForeignTokens(t *testing.T) {
	auth := newTestAuthService(t)
	user, _, err := auth.Register(context.Background(), RegisterInput{Username: "alex", Email: "alex@example.com", Password: "secret123"})
	require.NoError(t, err)

	sign := func(secret, issuer, audience string, expires time.Time) string {
		claims := &TokenClaims{
			UserID: user.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
				ExpiresAt: jwt.NewNumericDate(expires),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}

	future := time.Now().Add(time.Hour)
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign("other", testJWTConfig.Issuer, testJWTConfig.Audience, future)},
		{"wrong issuer", sign(testJWTConfig.Secret, "someone", testJWTConfig.Audience, future)},
		{"wrong audience", sign(testJWTConfig.Secret, testJWTConfig.Issuer, "someone", future)},
		{"expired", sign(testJWTConfig.Secret, testJWTConfig.Issuer, testJWTConfig.Audience, time.Now().Add(-time.Minute))},
		{"garbage", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.VerifyToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}

	_, err = auth.VerifyToken(context.Background(), sign(testJWTConfig.Secret, testJWTConfig.Issuer, testJWTConfig.Audience, future))
	assert.NoError(t, err)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", bearerToken(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(req))

	req = httptest.NewRequest(http.MethodGet, "/interview/1/ws?access_token=xyz", nil)
	assert.Equal(t, "xyz", bearerToken(req))
}

func TestMiddleware(t *testing.T) {
	auth := newTestAuthService(t)
	user, token, err := auth.Register(context.Background(), RegisterInput{Username: "alex", Email: "alex@example.com", Password: "secret123"})
	require.NoError(t, err)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, user.ID, got.ID)
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNewAuthServiceDefaultLifetime(t *testing.T) {
	auth := NewAuthService(nil, JWTConfig{Secret: "x"})
	assert.Equal(t, 2*time.Hour, auth.lifetime)
}
