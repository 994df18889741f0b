package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
	"github.com/justtherip/packvault/internal/repository"
)

const testSecret = "test-secret-key"

type fakeUserRepo struct {
	repository.UserRepo

	users   map[uuid.UUID]models.User
	creates int
}

func (f *fakeUserRepo) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(_ context.Context, id uuid.UUID, email string) (models.User, error) {
	f.creates++
	u := models.User{ID: id, Email: email}
	f.users[id] = u
	return u, nil
}

type fakeStorage struct {
	repository.Storage

	users *fakeUserRepo
}

func (f *fakeStorage) User() repository.UserRepo { return f.users }

func newVerifier(t *testing.T) (*Verifier, *fakeStorage) {
	t.Helper()

	storage := &fakeStorage{users: &fakeUserRepo{users: map[uuid.UUID]models.User{}}}
	v, err := NewVerifier(Config{SecretKey: testSecret}, storage)
	require.NoError(t, err)
	return v, storage
}

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(userID uuid.UUID, email string) accessClaims {
	return accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: email,
	}
}

func request(t *testing.T, token string) *http.Request {
	t.Helper()

	r, err := http.NewRequest(http.MethodGet, "/api/balance", nil)
	require.NoError(t, err)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestVerifyRequest(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("verifies and provisions a profile on first sight", func(t *testing.T) {
		v, storage := newVerifier(t)
		token := signToken(t, testSecret, jwt.SigningMethodHS256, validClaims(userID, "pat@example.com"))

		identity, err := v.VerifyRequest(ctx, request(t, token))

		require.NoError(t, err)
		require.Equal(t, userID, identity.UserID)
		require.Equal(t, "pat@example.com", identity.Email)
		require.False(t, identity.Anonymous())
		require.Equal(t, 1, storage.users.creates)
	})

	t.Run("existing profile is not recreated", func(t *testing.T) {
		v, storage := newVerifier(t)
		storage.users.users[userID] = models.User{ID: userID}
		token := signToken(t, testSecret, jwt.SigningMethodHS256, validClaims(userID, "pat@example.com"))

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.NoError(t, err)
		require.Zero(t, storage.users.creates)
	})

	t.Run("missing header", func(t *testing.T) {
		v, _ := newVerifier(t)

		_, err := v.VerifyRequest(ctx, request(t, ""))

		require.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("expired token", func(t *testing.T) {
		v, _ := newVerifier(t)
		claims := validClaims(userID, "")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		token := signToken(t, testSecret, jwt.SigningMethodHS256, claims)

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token without expiry", func(t *testing.T) {
		v, _ := newVerifier(t)
		claims := validClaims(userID, "")
		claims.ExpiresAt = nil
		token := signToken(t, testSecret, jwt.SigningMethodHS256, claims)

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		v, _ := newVerifier(t)
		token := signToken(t, "other-key", jwt.SigningMethodHS256, validClaims(userID, ""))

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		v, _ := newVerifier(t)
		token := signToken(t, testSecret, jwt.SigningMethodHS512, validClaims(userID, ""))

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("subject that is not a user id", func(t *testing.T) {
		v, _ := newVerifier(t)
		claims := validClaims(userID, "")
		claims.Subject = "service-account"
		token := signToken(t, testSecret, jwt.SigningMethodHS256, claims)

		_, err := v.VerifyRequest(ctx, request(t, token))

		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewVerifier(t *testing.T) {
	t.Run("secret is required", func(t *testing.T) {
		_, err := NewVerifier(Config{}, &fakeStorage{})
		require.Error(t, err)
	})
}
