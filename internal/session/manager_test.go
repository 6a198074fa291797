package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/revocation"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

// stubStore wraps a MemoryStore and can fail or skip individual operations.
type stubStore struct {
	*revocation.MemoryStore

	mu             sync.Mutex
	failReads      bool
	failWhitelist  bool
	failBlacklist  bool
	failRemove     bool
	removeCalls    int
	blacklistCalls int
}

func newStubStore() *stubStore {
	return &stubStore{MemoryStore: revocation.NewMemoryStore()}
}

var errBackendDown = errors.New("connection refused")

func (s *stubStore) SetWhitelisted(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	fail := s.failWhitelist
	s.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return s.MemoryStore.SetWhitelisted(ctx, jti, ttl)
}

func (s *stubStore) SetBlacklisted(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	s.blacklistCalls++
	fail := s.failBlacklist
	s.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return s.MemoryStore.SetBlacklisted(ctx, jti, ttl)
}

func (s *stubStore) RemoveWhitelisted(ctx context.Context, jti string) error {
	s.mu.Lock()
	s.removeCalls++
	fail := s.failRemove
	s.mu.Unlock()
	if fail {
		return errBackendDown
	}
	return s.MemoryStore.RemoveWhitelisted(ctx, jti)
}

func (s *stubStore) IsWhitelisted(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	fail := s.failReads
	s.mu.Unlock()
	if fail {
		return false, errBackendDown
	}
	return s.MemoryStore.IsWhitelisted(ctx, jti)
}

func (s *stubStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	fail := s.failReads
	s.mu.Unlock()
	if fail {
		return false, errBackendDown
	}
	return s.MemoryStore.IsBlacklisted(ctx, jti)
}

type testEnv struct {
	mgr     *Manager
	store   *stubStore
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	iss, err := tokens.NewIssuer([]byte("test-jwt-secret"), []byte("test-refresh-secret"))
	require.NoError(t, err)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	store := newStubStore()
	return &testEnv{mgr: NewManager(iss, store, m), store: store, metrics: m}
}

func TestManager_FreshLoginIsValid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	ok, err := env.mgr.IsValid(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := env.mgr.Status(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.Equal(t, StateWhitelisted, st)

	claims, err := env.mgr.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "viewer", claims.Role)
	assert.Equal(t, "1", claims.Subject)
}

func TestManager_RefreshJTIIsNotWhitelisted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	ok, err := env.mgr.IsValid(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_UnknownJTIIsInvalid(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	ok, err := env.mgr.IsValid(ctx, tokens.NewJTI())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_SignedButNeverWhitelistedIsRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair, err := env.mgr.Issuer().Issue(9, "admin")
	require.NoError(t, err)

	_, err = env.mgr.Authenticate(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.TokenChecks.WithLabelValues(metrics.CheckUnknown)))
}

func TestManager_LogoutInvalidates(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)
	require.NoError(t, env.mgr.Logout(ctx, pair.AccessJTI))

	ok, err := env.mgr.IsValid(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.False(t, ok)

	wl, err := env.store.MemoryStore.IsWhitelisted(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.False(t, wl)

	_, err = env.mgr.Authenticate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.TokenChecks.WithLabelValues(metrics.CheckRevoked)))
}

func TestManager_BlacklistWinsWithoutWhitelistRemoval(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	env.store.failRemove = true
	require.NoError(t, env.mgr.Logout(ctx, pair.AccessJTI))

	wl, err := env.store.MemoryStore.IsWhitelisted(ctx, pair.AccessJTI)
	require.NoError(t, err)
	require.True(t, wl, "whitelist entry survives the failed cleanup")

	ok, err := env.mgr.IsValid(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.False(t, ok)

	st, err := env.mgr.Status(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.Equal(t, StateBlacklisted, st)
}

func TestManager_LogoutIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	require.NoError(t, env.mgr.Logout(ctx, pair.AccessJTI))
	once := env.store.Len()
	stOnce, err := env.mgr.Status(ctx, pair.AccessJTI)
	require.NoError(t, err)

	require.NoError(t, env.mgr.Logout(ctx, pair.AccessJTI))
	stTwice, err := env.mgr.Status(ctx, pair.AccessJTI)
	require.NoError(t, err)

	assert.Equal(t, once, env.store.Len())
	assert.Equal(t, stOnce, stTwice)
	assert.Equal(t, StateBlacklisted, stTwice)
}

func TestManager_ConcurrentLogoutOfSameJTI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.mgr.Logout(ctx, pair.AccessJTI))
		}()
		go func() {
			defer wg.Done()
			_, err := env.mgr.IsValid(ctx, pair.AccessJTI)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ok, err := env.mgr.IsValid(ctx, pair.AccessJTI)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_StorageErrorsFailClosed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "admin")
	require.NoError(t, err)

	env.store.failReads = true

	ok, err := env.mgr.IsValid(ctx, pair.AccessJTI)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	claims, err := env.mgr.Authenticate(ctx, pair.AccessToken)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.TokenChecks.WithLabelValues(metrics.CheckError)))
}

func TestManager_LoginFailsWhenWhitelistWriteFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.failWhitelist = true

	pair, err := env.mgr.Login(context.Background(), 1, "viewer")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Empty(t, pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

func TestManager_LogoutFailsWhenBlacklistWriteFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	env.store.failBlacklist = true
	err = env.mgr.Logout(ctx, pair.AccessJTI)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Zero(t, env.store.removeCalls, "whitelist is kept when the blacklist write fails")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Logouts.WithLabelValues(metrics.ResultError)))
}

func TestManager_AuthenticateRejectsBadTokens(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	for _, raw := range []string{"", "garbage", pair.RefreshToken} {
		_, err := env.mgr.Authenticate(ctx, raw)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.TokenChecks.WithLabelValues(metrics.CheckInvalid)))
}

func TestManager_RevokeRefresh(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 1, "viewer")
	require.NoError(t, err)

	usable, err := env.mgr.RefreshUsable(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.True(t, usable)

	require.NoError(t, env.mgr.RevokeRefresh(ctx, pair.RefreshToken, "1"))

	usable, err = env.mgr.RefreshUsable(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.False(t, usable)

	assert.ErrorIs(t, env.mgr.RevokeRefresh(ctx, pair.AccessToken, "1"), ErrUnauthenticated)
}

func TestManager_RevokeRefreshRejectsOtherSubject(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.mgr.Login(ctx, 2, "viewer")
	require.NoError(t, err)

	err = env.mgr.RevokeRefresh(ctx, pair.RefreshToken, "1")
	assert.ErrorIs(t, err, ErrForeignToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, env.store.blacklistCalls)

	usable, err := env.mgr.RefreshUsable(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.True(t, usable)
}

func TestManager_RevokedRefreshOutlivesRetentionWindow(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	iss, err := tokens.NewIssuer([]byte("a"), []byte("r"))
	require.NoError(t, err)
	store := revocation.NewMemoryStore().WithClock(func() time.Time { return clock })
	mgr := NewManager(iss, store, nil)
	ctx := context.Background()

	pair, err := iss.Issue(1, "viewer")
	require.NoError(t, err)
	require.NoError(t, mgr.RevokeRefresh(ctx, pair.RefreshToken, "1"))

	clock = clock.Add(revocation.TTL + time.Hour)
	usable, err := mgr.RefreshUsable(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.False(t, usable)
}

func TestManager_RevokeRefreshUsesIssuerClock(t *testing.T) {
	t.Parallel()

	wall := time.Now()
	issued := wall.Add(-tokens.RefreshTTL + 12*time.Hour)

	iss, err := tokens.NewIssuer([]byte("a"), []byte("r"))
	require.NoError(t, err)
	iss.Now = func() time.Time { return issued }

	pair, err := iss.Issue(1, "viewer")
	require.NoError(t, err)

	storeNow := wall
	store := revocation.NewMemoryStore().WithClock(func() time.Time { return storeNow })
	mgr := NewManager(iss, store, nil)
	ctx := context.Background()

	// On the issuer's clock nearly the whole refresh lifetime is left.
	require.NoError(t, mgr.RevokeRefresh(ctx, pair.RefreshToken, "1"))

	storeNow = storeNow.Add(revocation.TTL + time.Hour)
	usable, err := mgr.RefreshUsable(ctx, pair.RefreshJTI)
	require.NoError(t, err)
	assert.False(t, usable)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		role    string
		allowed []string
		want    bool
	}{
		{name: "admin on admin route", role: "admin", allowed: []string{"admin"}, want: true},
		{name: "viewer on admin route", role: "viewer", allowed: []string{"admin"}, want: false},
		{name: "viewer on shared route", role: "viewer", allowed: []string{"admin", "viewer"}, want: true},
		{name: "empty role", role: "", allowed: []string{"admin", ""}, want: false},
		{name: "no allowed roles", role: "admin", allowed: nil, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Authorize(tt.role, tt.allowed...))
		})
	}
}
