package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainsession "github.com/mith/outpass-portal/internal/domain/session"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client), mr
}

func testSession(id string) domainsession.Session {
	return domainsession.Session{
		ID:        id,
		Status:    domainsession.StatusAnonymous,
		Captcha:   "AB12CD",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1")
	sess.Commit(domainsession.Identity{
		ID:          "u1",
		Username:    "mit02501",
		DisplayName: "Asha",
		Role:        domainsession.RoleStudent,
		Hostel:      "Boys Hostel A",
	}, "tok-1")

	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, domainsession.StatusAuthenticated, got.Status)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "mit02501", got.Identity.Username)
	assert.Equal(t, "tok-1", got.Token)
	assert.Equal(t, "AB12CD", got.Captcha)
}

func TestSessionStore_SaveEmptyID(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Save(context.Background(), domainsession.Session{})
	require.Error(t, err)
}

func TestSessionStore_SaveExpired(t *testing.T) {
	store, _ := newTestStore(t)

	sess := testSession("sid-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute)

	err := store.Save(context.Background(), sess)
	require.Error(t, err)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_TTLFollowsExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Save(ctx, sess))

	// Advancing miniredis past the session expiry evicts the key.
	mr.FastForward(31 * time.Minute)

	_, err := store.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_GetCleansStaleRecord(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	// Record whose embedded expiry has passed even though the key is live.
	sess := testSession("sid-1")
	sess.ExpiresAt = time.Now().Add(time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	sess.ExpiresAt = time.Now().Add(-time.Second)
	raw, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NoError(t, mr.Set("portal:session:sid-1", string(raw)))

	_, err = store.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("portal:session:sid-1"))
}

func TestSessionStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := testSession("sid-1")
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, "sid-1"))

	_, err := store.Get(ctx, "sid-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent session is a no-op.
	require.NoError(t, store.Delete(ctx, "sid-1"))
	require.NoError(t, store.Delete(ctx, ""))
}

func TestSessionStore_BumpLoginSeq(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("sid-1")))

	first, err := store.BumpLoginSeq(ctx, "sid-1")
	require.NoError(t, err)
	second, err := store.BumpLoginSeq(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	// The counter tracks the session entry's lifetime.
	assert.True(t, mr.Exists("portal:session:seq:sid-1"))
	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists("portal:session:seq:sid-1"))

	_, err = store.BumpLoginSeq(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_DeleteRemovesLoginSeq(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("sid-1")))
	_, err := store.BumpLoginSeq(ctx, "sid-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "sid-1"))
	assert.False(t, mr.Exists("portal:session:seq:sid-1"))
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewSessionStoreWithPrefix(client, "alt:")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("sid-1")))
	assert.True(t, mr.Exists("alt:sid-1"))
}
