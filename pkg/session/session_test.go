package session

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStores(t *testing.T) {
	bolt, err := OpenBoltStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer bolt.Close()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("token")
			assert.ErrorIs(t, err, ErrNoKey)

			require.NoError(t, store.Set("token", "abc"))
			value, err := store.Get("token")
			require.NoError(t, err)
			assert.Equal(t, "abc", value)

			require.NoError(t, store.Set("token", "def"))
			value, err = store.Get("token")
			require.NoError(t, err)
			assert.Equal(t, "def", value)

			require.NoError(t, store.Remove("token"))
			_, err = store.Get("token")
			assert.ErrorIs(t, err, ErrNoKey)

			assert.NoError(t, store.Remove("missing"))
		})
	}
}

func TestBoltStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	s := New(store, WithClock(fixedClock(epoch)))
	require.NoError(t, s.Login("abc", epoch.Add(time.Hour)))
	s.Close()
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	restored := New(store, WithClock(fixedClock(epoch.Add(time.Minute))))
	defer restored.Close()

	ok, err := restored.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", restored.Token())
	assert.Equal(t, epoch.Add(time.Hour), restored.ExpiresAt())
}

func TestSession_LoginLogout(t *testing.T) {
	store := NewMemoryStore()
	s := New(store, WithClock(fixedClock(epoch)))
	defer s.Close()

	assert.False(t, s.IsLoggedIn())
	assert.Empty(t, s.Token())

	require.NoError(t, s.Login("abc", epoch.Add(time.Hour)))
	assert.True(t, s.IsLoggedIn())
	assert.Equal(t, "abc", s.Token())

	stored, err := store.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", stored)
	stored, err = store.Get(ExpirationTimeKey)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T13:00:00Z", stored)

	require.NoError(t, s.Logout())
	assert.False(t, s.IsLoggedIn())
	assert.True(t, s.ExpiresAt().IsZero())
	_, err = store.Get(TokenKey)
	assert.ErrorIs(t, err, ErrNoKey)
	_, err = store.Get(ExpirationTimeKey)
	assert.ErrorIs(t, err, ErrNoKey)

	assert.Error(t, s.Login("", epoch.Add(time.Hour)))
}

func TestSession_Restore(t *testing.T) {
	tests := []struct {
		name        string
		stored      map[string]string
		expectedIn  bool
		expectedKey bool
	}{
		{
			name:       "nothing_stored",
			stored:     map[string]string{},
			expectedIn: false,
		},
		{
			name:        "plenty_left",
			stored:      map[string]string{TokenKey: "abc", ExpirationTimeKey: epoch.Add(10 * time.Minute).Format(time.RFC3339Nano)},
			expectedIn:  true,
			expectedKey: true,
		},
		{
			name:       "exactly_a_minute_left",
			stored:     map[string]string{TokenKey: "abc", ExpirationTimeKey: epoch.Add(time.Minute).Format(time.RFC3339Nano)},
			expectedIn: false,
		},
		{
			name:       "already_expired",
			stored:     map[string]string{TokenKey: "abc", ExpirationTimeKey: epoch.Add(-time.Hour).Format(time.RFC3339Nano)},
			expectedIn: false,
		},
		{
			name:       "missing_expiration",
			stored:     map[string]string{TokenKey: "abc"},
			expectedIn: false,
		},
		{
			name:       "unreadable_expiration",
			stored:     map[string]string{TokenKey: "abc", ExpirationTimeKey: "tomorrow"},
			expectedIn: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			for k, v := range tt.stored {
				require.NoError(t, store.Set(k, v))
			}

			s := New(store, WithClock(fixedClock(epoch)))
			defer s.Close()

			ok, err := s.Restore()
			require.NoError(t, err)
			assert.Equal(t, tt.expectedIn, ok)
			assert.Equal(t, tt.expectedIn, s.IsLoggedIn())

			_, err = store.Get(TokenKey)
			if tt.expectedKey {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrNoKey)
			}
		})
	}
}

func TestSession_ExpiresAutomatically(t *testing.T) {
	var expired atomic.Int32
	store := NewMemoryStore()
	s := New(store, WithOnExpire(func() { expired.Add(1) }))
	defer s.Close()

	require.NoError(t, s.Login("abc", time.Now().Add(30*time.Millisecond)))
	assert.True(t, s.IsLoggedIn())

	require.Eventually(t, func() bool { return !s.IsLoggedIn() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), expired.Load())

	_, err := store.Get(TokenKey)
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestSession_NewLoginReplacesTimer(t *testing.T) {
	s := New(NewMemoryStore())
	defer s.Close()

	require.NoError(t, s.Login("short", time.Now().Add(20*time.Millisecond)))
	require.NoError(t, s.Login("long", time.Now().Add(time.Hour)))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "long", s.Token())
}

func TestSession_LogoutCancelsTimer(t *testing.T) {
	var expired atomic.Int32
	s := New(NewMemoryStore(), WithOnExpire(func() { expired.Add(1) }))

	require.NoError(t, s.Login("abc", time.Now().Add(20*time.Millisecond)))
	require.NoError(t, s.Logout())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), expired.Load())
}

func TestSession_CloseKeepsStore(t *testing.T) {
	var expired atomic.Int32
	store := NewMemoryStore()
	s := New(store, WithOnExpire(func() { expired.Add(1) }))

	require.NoError(t, s.Login("abc", time.Now().Add(20*time.Millisecond)))
	s.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), expired.Load())

	token, err := store.Get(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

type brokenStore struct{}

func (brokenStore) Get(string) (string, error) { return "", errors.New("disk on fire") }
func (brokenStore) Set(string, string) error   { return errors.New("disk on fire") }
func (brokenStore) Remove(string) error        { return errors.New("disk on fire") }

func TestSession_StoreErrors(t *testing.T) {
	s := New(brokenStore{})
	defer s.Close()

	assert.ErrorContains(t, s.Login("abc", time.Now().Add(time.Hour)), "storing token")
	assert.False(t, s.IsLoggedIn())

	_, err := s.Restore()
	assert.ErrorContains(t, err, "reading token")

	assert.ErrorContains(t, s.Logout(), "removing token")
}

// expiryFailingStore fails to store the expiration time only.
type expiryFailingStore struct {
	*MemoryStore
}

func (s expiryFailingStore) Set(key, value string) error {
	if key == ExpirationTimeKey {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(key, value)
}

func TestSession_LoginRollsBackToken(t *testing.T) {
	store := expiryFailingStore{MemoryStore: NewMemoryStore()}
	s := New(store)
	defer s.Close()

	err := s.Login("abc", time.Now().Add(time.Hour))
	assert.ErrorContains(t, err, "storing expiration time")
	assert.False(t, s.IsLoggedIn())

	_, err = store.Get(TokenKey)
	assert.ErrorIs(t, err, ErrNoKey)

	restored, err := New(store).Restore()
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestExpiryFromToken(t *testing.T) {
	exp := epoch.Add(time.Hour)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}).SignedString([]byte("any"))
	require.NoError(t, err)

	got, err := ExpiryFromToken(signed)
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("any"))
	require.NoError(t, err)
	_, err = ExpiryFromToken(noExp)
	assert.Error(t, err)

	_, err = ExpiryFromToken("garbage")
	assert.Error(t, err)
}
