// Package auth implements password authentication and bearer-token issuance
// for the backend: bcrypt credential verification, short-lived access
// tokens, refresh rotation through a TokenStore, and administrative user
// provisioning.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/planmeter/planmeter/pkg/jwt"
	"github.com/planmeter/planmeter/store"
)

// Config holds authentication settings, populated from the environment.
type Config struct {
	SecretKey       string        `env:"AUTH_SECRET_KEY,required"` // HMAC signing secret, shared across instances
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"24h"`
	BcryptCost      int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
}

// Store is the subset of persistence operations authentication depends on.
type Store interface {
	CreateUser(ctx context.Context, u *store.User) (*store.User, error)
	User(ctx context.Context, id string) (*store.User, error)
	UserByUsername(ctx context.Context, username string) (*store.User, error)
}

// Principal is the resolved identity handed to role-restricted operations.
type Principal struct {
	UserID   string
	Username string
	Role     store.Role
}

// TokenPair is the credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service authenticates users and manages token lifecycles.
type Service struct {
	store  Store
	tokens TokenStore
	jwt    *jwt.Service
	cfg    Config
	log    *slog.Logger
}

// NewService returns an auth service. A nil logger disables logging.
func NewService(cfg Config, s Store, tokens TokenStore, log *slog.Logger) (*Service, error) {
	signer, err := jwt.New(cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  s,
		tokens: tokens,
		jwt:    signer,
		cfg:    cfg,
		log:    log,
	}, nil
}

// Login verifies the credentials and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Authenticate verifies a username/password pair against the stored bcrypt
// hash. Unknown usernames and wrong passwords both return
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Refresh redeems a refresh token for a new pair, rotating the old token
// out. A refresh token can be redeemed exactly once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.Parse(refreshToken)
	if err != nil {
		return nil, errors.Join(ErrInvalidRefreshToken, err)
	}
	if claims.TokenType != jwt.TokenTypeRefresh {
		return nil, errors.Join(ErrInvalidRefreshToken, fmt.Errorf("token type %q", claims.TokenType))
	}

	live, err := s.tokens.Take(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, errors.Join(ErrInvalidRefreshToken, errors.New("token already redeemed or revoked"))
	}

	// Re-read the user so a role or credential change invalidates old
	// refresh chains.
	user, err := s.store.User(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// VerifyAccess validates a bearer access token and resolves its principal.
func (s *Service) VerifyAccess(_ context.Context, accessToken string) (*Principal, error) {
	claims, err := s.jwt.Parse(accessToken)
	if err != nil {
		return nil, errors.Join(ErrInvalidAccessToken, err)
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		return nil, errors.Join(ErrInvalidAccessToken, fmt.Errorf("token type %q", claims.TokenType))
	}
	return &Principal{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     store.Role(claims.Role),
	}, nil
}

// CreateUser provisions a user with a bcrypt-hashed password. Subscription
// and usage fields start empty; the subscription service owns them.
func (s *Service) CreateUser(ctx context.Context, username, password string, role store.Role) (*store.User, error) {
	if !role.Valid() {
		return nil, errors.Join(ErrInvalidRole, fmt.Errorf("role %q", role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateUser(ctx, &store.User{
		Username: username,
		Role:     role,
		Password: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, errors.Join(ErrUsernameTaken, fmt.Errorf("username %q", username))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "user created",
		slog.String("user_id", created.ID),
		slog.String("role", string(created.Role)))
	return created, nil
}

// issuePair mints an access/refresh pair and registers the refresh ID for
// rotation.
func (s *Service) issuePair(ctx context.Context, user *store.User) (*TokenPair, error) {
	now := time.Now()

	access, err := s.jwt.Generate(jwt.Claims{
		ID:        uuid.NewString(),
		Subject:   user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		TokenType: jwt.TokenTypeAccess,
		ExpiresAt: now.Add(s.cfg.AccessTokenTTL).Unix(),
		IssuedAt:  now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshID := uuid.NewString()
	refresh, err := s.jwt.Generate(jwt.Claims{
		ID:        refreshID,
		Subject:   user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		TokenType: jwt.TokenTypeRefresh,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL).Unix(),
		IssuedAt:  now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Save(ctx, refreshID, user.ID, s.cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
