package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkRepositoryContract(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Load(ctx, "persist:root:cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Save(ctx, "persist:root:cart", []byte(`{"lines":[],"totalItemCount":0}`)))
	require.NoError(t, repo.Save(ctx, "persist:root:auth", []byte(`{"token":"t1"}`)))

	got, err := repo.Load(ctx, "persist:root:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[],"totalItemCount":0}`, string(got))

	require.NoError(t, repo.Save(ctx, "persist:root:cart", []byte(`{"lines":[],"totalItemCount":2}`)))
	got, err = repo.Load(ctx, "persist:root:cart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[],"totalItemCount":2}`, string(got))

	require.NoError(t, repo.Delete(ctx, "persist:root:cart"))
	_, err = repo.Load(ctx, "persist:root:cart")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "persist:root:missing"))

	got, err = repo.Load(ctx, "persist:root:auth")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"t1"}`, string(got))
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	defer repo.Close()

	checkRepositoryContract(t, repo)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	payload := []byte(`{"a":1}`)
	require.NoError(t, repo.Save(ctx, "k", payload))
	payload[2] = 'b'

	got, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[2] = 'c'
	again, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	checkRepositoryContract(t, repo)

	reopened, err := NewFileRepository(path)
	require.NoError(t, err)
	got, err := reopened.Load(context.Background(), "persist:root:auth")
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"t1"}`, string(got))
}

func TestFileRepository_RejectsInvalidJSON(t *testing.T) {
	repo, err := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	err = repo.Save(context.Background(), "k", []byte("not json"))
	require.Error(t, err)
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	repo, err := NewFileRepository(path)
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	repo, err := Open(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	repo, err = Open(ctx, "file://"+filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	assert.IsType(t, &FileRepository{}, repo)

	_, err = Open(ctx, "ftp://example.com/state")
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "persist:root:cart", Key("persist:root", "cart"))
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	r := &PostgresRepository{}
	calls := 0

	err := r.withRetry(context.Background(), func() error {
		calls++
		return assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_HonoursContext(t *testing.T) {
	r := &PostgresRepository{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	err := r.withRetry(ctx, func() error {
		calls++
		return errConnRefused{}
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}

type errConnRefused struct{}

func (errConnRefused) Error() string { return "dial tcp: connection refused" }
