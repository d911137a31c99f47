// Package services contains server-side business logic. This file implements
// AuthService, which turns credentials into a token pair, keeps the
// server-side refresh-token cache consistent, and handles refresh rotation
// and registration.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/cache"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/unitofwork"
	"golang.org/x/sync/errgroup"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenIssuer mints signed tokens from a user identity. Implementations
// must not mutate the user.
type TokenIssuer interface {
	GenerateAccessToken(user *models.User) (string, error)
	GenerateRefreshToken(user *models.User) (string, error)
}

// PasswordHasher is the opaque password-hash primitive. The service only
// ever verifies against a stored hash or produces a new hash; the algorithm
// is a pluggable collaborator.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(hash, plaintext string) bool
}

// AuthService provides authentication-related operations:
//   - SignIn: verify credentials and mint tokens
//   - Refresh: rotate a refresh token into a fresh pair
//   - Register: create users
//
// Each call scopes its own unit of work; one AuthService is safe to share
// across requests.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	cache                        cache.Store
	issuer                       TokenIssuer
	passwords                    PasswordHasher
	logger                       logging.Logger
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService from its collaborators.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	c cache.Store,
	issuer TokenIssuer,
	passwords PasswordHasher,
	logger logging.Logger,
	refreshTokenValidity time.Duration,
) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		cache:                        c,
		issuer:                       issuer,
		passwords:                    passwords,
		logger:                       logger,
		refreshTokenValidityDuration: refreshTokenValidity,
	}
}

// SignIn verifies the supplied credentials against the stored record and, on
// success, issues a token pair and records the refresh token in the cache
// under both lookup directions with a shared expiry.
//
// Failure taxonomy: common.ErrorNotFound when the username has no record,
// common.ErrorInvalidCredentials when the password or the role does not
// match (indistinguishable on purpose), and an error wrapping
// common.ErrorCacheUnavailable when either cache write fails — in which
// case the issued tokens must be treated as not committed.
func (s *AuthService) SignIn(ctx context.Context, username, password, role string) (*TokenPair, error) {
	uow, err := unitofwork.New(ctx, s.db, s.repomanager)
	if err != nil {
		return nil, fmt.Errorf("acquiring unit of work: %w", err)
	}
	defer uow.Close()

	user, err := uow.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "sign-in user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	// role comparison is case-insensitive; username lookup above is not
	if !s.passwords.Verify(user.PasswordHash, password) || !strings.EqualFold(user.Role, role) {
		return nil, common.ErrorInvalidCredentials
	}

	return s.issueTokenPair(ctx, user)
}

// Refresh exchanges a valid refresh token for a fresh token pair, rotating
// both cache entries. The token must resolve through the lookup direction
// AND still be the user's current token (pairing invariant); anything else
// fails with common.ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.cache.GetString(ctx, cache.RefreshTokenLookupKey(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}

	current, err := s.cache.GetString(ctx, cache.RefreshTokenKey(userID))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	if current != refreshToken {
		// stale lookup entry from an overwritten session
		return nil, common.ErrInvalidToken
	}

	uow, err := unitofwork.New(ctx, s.db, s.repomanager)
	if err != nil {
		return nil, fmt.Errorf("acquiring unit of work: %w", err)
	}
	defer uow.Close()

	user, err := uow.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		s.logger.Error(ctx, "refresh user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	return s.issueTokenPair(ctx, user)
}

// Register hashes the password and creates the user inside an explicit
// transaction. Duplicate usernames fail with common.ErrorAlreadyExists.
func (s *AuthService) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	uow, err := unitofwork.New(ctx, s.db, s.repomanager)
	if err != nil {
		return nil, fmt.Errorf("acquiring unit of work: %w", err)
	}
	defer uow.Close()

	if err := uow.BeginTransaction(ctx); err != nil {
		return nil, err
	}

	if _, err := uow.Users().GetByUsername(ctx, username); err == nil {
		_ = uow.RollbackTransaction(ctx)
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		_ = uow.RollbackTransaction(ctx)
		s.logger.Error(ctx, "register user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	if _, err := uow.Users().Create(ctx, user); err != nil {
		_ = uow.RollbackTransaction(ctx)
		s.logger.Error(ctx, "register user create failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := uow.CommitTransaction(ctx); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "username", username)
	return user, nil
}

// issueTokenPair mints both tokens and performs the dual cache write. The
// two writes are independent and run concurrently; the pair is only
// returned when both complete.
func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := s.issuer.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error(ctx, "access token generation failed", "error", err)
		return nil, common.ErrorInternal
	}
	refreshToken, err := s.issuer.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error(ctx, "refresh token generation failed", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.storeRefreshToken(ctx, user.ID, refreshToken); err != nil {
		s.logger.Error(ctx, "refresh token cache write failed", "error", err)
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// storeRefreshToken writes the two co-dependent cache entries with a shared
// expiry. There is no compensation for a partial write: if either set
// fails, the whole operation fails and no tokens reach the caller.
func (s *AuthService) storeRefreshToken(ctx context.Context, userID, refreshToken string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.cache.SetString(gctx, cache.RefreshTokenKey(userID), refreshToken, s.refreshTokenValidityDuration)
	})
	g.Go(func() error {
		return s.cache.SetString(gctx, cache.RefreshTokenLookupKey(refreshToken), userID, s.refreshTokenValidityDuration)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	return nil
}
