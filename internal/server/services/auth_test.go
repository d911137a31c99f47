package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/cache"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes ---

type fakeUsersRepo struct {
	byUsername map[string]*models.User
	byID       map[string]*models.User

	createOut *models.User
	createErr error
	getErr    error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	u.ID = "created-id"
	return u, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byUsername[username]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

type fakeRepoManager struct {
	users *fakeUsersRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.users }

// fakeCache is an in-memory cache.Store that records TTLs and can be told
// to fail writes for keys matching a prefix.
type fakeCache struct {
	mu         sync.Mutex
	values     map[string]string
	ttls       map[string]time.Duration
	failPrefix string
	sets       int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPrefix != "" && strings.HasPrefix(key, c.failPrefix) {
		return fmt.Errorf("%w: injected failure", common.ErrorCacheUnavailable)
	}
	c.values[key] = value
	c.ttls[key] = ttl
	c.sets++
	return nil
}

func (c *fakeCache) GetString(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", common.ErrorNotFound
	}
	return v, nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	delete(c.ttls, key)
	return nil
}

// --- helpers ---

const refreshValidity = 30 * 24 * time.Hour

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()
	h, err := password.NewBcryptHasher(bcrypt.MinCost).Hash(plaintext)
	require.NoError(t, err)
	return h
}

func storedAlice(t *testing.T) *models.User {
	return &models.User{
		ID:           "u-1",
		Username:     "alice",
		PasswordHash: mustHash(t, "correct"),
		Role:         "User",
	}
}

func newService(t *testing.T, rm *fakeRepoManager, c cache.Store) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	issuer := auth.NewJWTIssuer([]byte("k"), time.Hour, refreshValidity)
	hasher := password.NewBcryptHasher(bcrypt.MinCost)

	return NewAuthService(db, rm, c, issuer, hasher, logger, refreshValidity), mock
}

func rmWithAlice(t *testing.T) *fakeRepoManager {
	alice := storedAlice(t)
	return &fakeRepoManager{users: &fakeUsersRepo{
		byUsername: map[string]*models.User{"alice": alice},
		byID:       map[string]*models.User{"u-1": alice},
	}}
}

// --- SignIn ---

func TestSignIn_Success(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	// stored role is "User"; the supplied role matches case-insensitively
	pair, err := svc.SignIn(ctx, "alice", "correct", "user")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// both entries exist, are mutually consistent and share the 30-day TTL
	userID, err := fc.GetString(ctx, cache.RefreshTokenLookupKey(pair.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, "u-1", userID)

	tok, err := fc.GetString(ctx, cache.RefreshTokenKey("u-1"))
	require.NoError(t, err)
	require.Equal(t, pair.RefreshToken, tok)

	require.Equal(t, refreshValidity, fc.ttls[cache.RefreshTokenKey("u-1")])
	require.Equal(t, refreshValidity, fc.ttls[cache.RefreshTokenLookupKey(pair.RefreshToken)])
}

func TestSignIn_UnknownUser(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	pair, err := svc.SignIn(context.Background(), "ghost", "whatever", "user")
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.Nil(t, pair)
	require.Zero(t, fc.sets)
}

func TestSignIn_WrongPassword(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	pair, err := svc.SignIn(context.Background(), "alice", "wrong", "user")
	require.ErrorIs(t, err, common.ErrorInvalidCredentials)
	require.Nil(t, pair)
	require.Zero(t, fc.sets)
}

func TestSignIn_WrongRole(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	pair, err := svc.SignIn(context.Background(), "alice", "correct", "admin")
	// same failure as a wrong password: the caller cannot tell which
	require.ErrorIs(t, err, common.ErrorInvalidCredentials)
	require.Nil(t, pair)
	require.Zero(t, fc.sets)
}

func TestSignIn_RoleMatchIsCaseInsensitive(t *testing.T) {
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	for _, role := range []string{"User", "user", "USER", "uSeR"} {
		_, err := svc.SignIn(context.Background(), "alice", "correct", role)
		require.NoError(t, err, "role %q must match stored role \"User\"", role)
	}
}

func TestSignIn_CacheWriteFailure(t *testing.T) {
	fc := newFakeCache()
	fc.failPrefix = "refresh_token_lookup:"
	svc, _ := newService(t, rmWithAlice(t), fc)

	pair, err := svc.SignIn(context.Background(), "alice", "correct", "user")
	require.ErrorIs(t, err, common.ErrorCacheUnavailable)
	require.Nil(t, pair, "tokens must not be returned when a cache write fails")
}

func TestSignIn_RepositoryFailureIsInternal(t *testing.T) {
	rm := &fakeRepoManager{users: &fakeUsersRepo{getErr: errors.New("db down")}}
	svc, _ := newService(t, rm, newFakeCache())

	_, err := svc.SignIn(context.Background(), "alice", "correct", "user")
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestSignIn_RepeatedOverwritesSession(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	first, err := svc.SignIn(ctx, "alice", "correct", "user")
	require.NoError(t, err)
	second, err := svc.SignIn(ctx, "alice", "correct", "user")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// the user key now holds the new token only
	tok, err := fc.GetString(ctx, cache.RefreshTokenKey("u-1"))
	require.NoError(t, err)
	require.Equal(t, second.RefreshToken, tok)

	// the overwritten token no longer resolves to a usable session
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	// while the current one does
	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

// --- Refresh ---

func TestRefresh_Success(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	pair, err := svc.SignIn(ctx, "alice", "correct", "user")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, rotated.AccessToken)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// both directions rotated together
	userID, err := fc.GetString(ctx, cache.RefreshTokenLookupKey(rotated.RefreshToken))
	require.NoError(t, err)
	require.Equal(t, "u-1", userID)

	tok, err := fc.GetString(ctx, cache.RefreshTokenKey("u-1"))
	require.NoError(t, err)
	require.Equal(t, rotated.RefreshToken, tok)
}

func TestRefresh_UnknownToken(t *testing.T) {
	svc, _ := newService(t, rmWithAlice(t), newFakeCache())

	_, err := svc.Refresh(context.Background(), "nonsense")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestRefresh_UnpairedLookupEntry(t *testing.T) {
	ctx := context.Background()
	fc := newFakeCache()
	svc, _ := newService(t, rmWithAlice(t), fc)

	// a lookup entry whose user key points at a different token
	require.NoError(t, fc.SetString(ctx, cache.RefreshTokenLookupKey("stale"), "u-1", refreshValidity))
	require.NoError(t, fc.SetString(ctx, cache.RefreshTokenKey("u-1"), "current", refreshValidity))

	_, err := svc.Refresh(ctx, "stale")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	rm := &fakeRepoManager{users: &fakeUsersRepo{byUsername: map[string]*models.User{}}}
	svc, mock := newService(t, rm, newFakeCache())

	mock.ExpectBegin()
	mock.ExpectCommit()

	user, err := svc.Register(context.Background(), "bob", "pw", "User")
	require.NoError(t, err)
	require.Equal(t, "created-id", user.ID)
	require.NotEqual(t, "pw", user.PasswordHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	rm := rmWithAlice(t)
	svc, mock := newService(t, rm, newFakeCache())

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), "alice", "pw", "User")
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegister_CreateFailureRollsBack(t *testing.T) {
	rm := &fakeRepoManager{users: &fakeUsersRepo{
		byUsername: map[string]*models.User{},
		createErr:  errors.New("insert failed"),
	}}
	svc, mock := newService(t, rm, newFakeCache())

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), "bob", "pw", "User")
	require.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}
