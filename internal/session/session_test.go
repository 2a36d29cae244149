package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("api-secret"))
	require.NoError(t, err)
	return token
}

func TestSet_ReplacesWholesale(t *testing.T) {
	prev := model.Session{Token: "old", Identity: &model.Identity{ID: "1", Email: "old@example.com"}}

	next := Set(prev, "new", &model.Identity{ID: "2", Email: "new@example.com", Role: model.RoleAdmin})
	assert.Equal(t, "new", next.Token)
	assert.Equal(t, "2", next.Identity.ID)

	next = Set(prev, "new", nil)
	assert.Nil(t, next.Identity)

	next = Set(prev, "", &model.Identity{ID: "3"})
	assert.False(t, next.Authenticated())
	assert.Nil(t, next.Identity)
}

func TestSet_CopiesIdentity(t *testing.T) {
	identity := &model.Identity{ID: "1"}
	next := Set(model.Session{}, "t", identity)
	identity.ID = "changed"
	assert.Equal(t, "1", next.Identity.ID)
}

func TestStore_PersistAndRehydrate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	key := repository.Key("persist:root", "auth")

	store := NewStore(repo, key, nil)
	require.NoError(t, store.SetSession(ctx, "token-1", &model.Identity{ID: "u1", Email: "u1@example.com", Role: model.RoleUser}))

	restored := NewStore(repo, key, nil)
	require.NoError(t, restored.Rehydrate(ctx))
	assert.Equal(t, "token-1", restored.Token())
	require.NotNil(t, restored.Session().Identity)
	assert.Equal(t, "u1@example.com", restored.Session().Identity.Email)

	require.NoError(t, restored.Logout(ctx))
	assert.False(t, restored.Session().Authenticated())

	_, err := repo.Load(ctx, key)
	require.ErrorIs(t, err, repository.ErrNotFound)

	fresh := NewStore(repo, key, nil)
	require.NoError(t, fresh.Rehydrate(ctx))
	assert.Equal(t, model.Session{}, fresh.Session())
}

func TestStore_RehydrateIgnoresCorruptState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, "k", []byte("{not-json")))

	store := NewStore(repo, "k", nil)
	require.NoError(t, store.Rehydrate(ctx))
	assert.False(t, store.Session().Authenticated())
}

func TestStore_RehydrateDropsIdentityWithoutToken(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.Save(ctx, "k", []byte(`{"user":{"id":"u1"}}`)))

	store := NewStore(repo, "k", nil)
	require.NoError(t, store.Rehydrate(ctx))
	assert.Nil(t, store.Session().Identity)
}

func TestStore_SessionIsACopy(t *testing.T) {
	store := NewStore(nil, "k", nil)
	require.NoError(t, store.SetSession(context.Background(), "t", &model.Identity{ID: "u1"}))

	s := store.Session()
	s.Identity.ID = "mutated"

	assert.Equal(t, "u1", store.Session().Identity.ID)
}

func TestIdentityFromToken(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"userId": "64f0c",
		"email":  "rider@example.com",
		"role":   "admin",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	identity, err := IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "64f0c", identity.ID)
	assert.Equal(t, "rider@example.com", identity.Email)
	assert.True(t, identity.IsAdmin())
}

func TestIdentityFromToken_ExpiredStillDecodes(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{
		"sub": "u7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	identity, err := IdentityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u7", identity.ID)
	assert.Equal(t, model.RoleUser, identity.Role)
}

func TestIdentityFromToken_Errors(t *testing.T) {
	_, err := IdentityFromToken("not-a-token")
	require.Error(t, err)

	_, err = IdentityFromToken(signedToken(t, jwt.MapClaims{"role": "user"}))
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestStore_ReplaceTokenOnlyWhenUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	store := NewStore(repo, "k", nil)
	require.NoError(t, store.SetSession(ctx, "token-1", &model.Identity{ID: "u1"}))

	replaced, err := store.ReplaceToken(ctx, "token-1", "token-2")
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, "token-2", store.Token())
	require.NotNil(t, store.Session().Identity)
	assert.Equal(t, "u1", store.Session().Identity.ID)

	replaced, err = store.ReplaceToken(ctx, "token-1", "token-3")
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.Equal(t, "token-2", store.Token())

	require.NoError(t, store.Logout(ctx))
	replaced, err = store.ReplaceToken(ctx, "token-2", "token-3")
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.False(t, store.Session().Authenticated())

	require.NoError(t, store.SetSession(ctx, "token-4", &model.Identity{ID: "u2"}))
	replaced, err = store.ReplaceToken(ctx, "token-4", "")
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Equal(t, model.Session{}, store.Session())

	_, err = repo.Load(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
