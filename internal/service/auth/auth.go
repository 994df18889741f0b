package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/handlers/userctx"
	"github.com/justtherip/packvault/internal/repository"
)

const defaultSigningMethod = "HS256"

var (
	// ErrNoToken means the request carried no bearer token at all.
	// Optional-auth paths treat this as the anonymous caller.
	ErrNoToken = errors.New("no bearer token")

	ErrInvalidToken = errors.New("invalid bearer token")
)

// accessClaims is the shape issued by the external auth system: the
// user id in the subject, the email alongside.
type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type Config struct {
	// Secret key the external auth system signs access tokens with.
	// Required to be set
	SecretKey string

	// JWT MAC algorithm. If not set than default is used
	Alg string
}

// Verifier checks bearer tokens issued elsewhere and makes sure a
// profile row exists for the verified user. It never issues tokens.
type Verifier struct {
	key     []byte
	alg     jwt.SigningMethod
	storage repository.Storage
}

func NewVerifier(cfg Config, storage repository.Storage) (*Verifier, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if alg == nil {
		return nil, fmt.Errorf("unknown signing method %q", cfg.Alg)
	}

	return &Verifier{
		key:     []byte(cfg.SecretKey),
		alg:     alg,
		storage: storage,
	}, nil
}

// Verify parses and validates one access token
func (v *Verifier) Verify(token string) (userctx.Identity, error) {
	claims := &accessClaims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return v.key, nil
		},
		jwt.WithValidMethods([]string{v.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return userctx.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return userctx.Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	return userctx.Identity{UserID: userID, Email: claims.Email}, nil
}

// VerifyRequest authenticates one HTTP request and guarantees the
// caller has a profile row. Profiles are provisioned lazily on the
// first verified request.
func (v *Verifier) VerifyRequest(ctx context.Context, r *http.Request) (userctx.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return userctx.Identity{}, ErrNoToken
	}

	identity, err := v.Verify(token)
	if err != nil {
		return userctx.Identity{}, err
	}

	if err := v.ensureProfile(ctx, identity); err != nil {
		return userctx.Identity{}, err
	}
	return identity, nil
}

func (v *Verifier) ensureProfile(ctx context.Context, identity userctx.Identity) error {
	_, err := v.storage.User().GetUser(ctx, identity.UserID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return err
	}

	// Two first requests can race here; losing the insert is fine
	_, err = v.storage.User().CreateUser(ctx, identity.UserID, identity.Email)
	if err != nil {
		if _, getErr := v.storage.User().GetUser(ctx, identity.UserID); getErr == nil {
			return nil
		}
		return err
	}
	return nil
}
