package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marqueewinq/shooter/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestGroupLifecycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	tasks := map[string]string{
		"t1": "https://a.example.com",
		"t2": "https://b.example.com",
		"t3": "https://c.example.com",
	}
	require.NoError(t, st.CreateGroup(ctx, "g1", tasks))

	progress, err := st.GroupProgress(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", progress.State)
	assert.Equal(t, 3, progress.Total)
	assert.False(t, progress.Ready)

	require.NoError(t, st.CompleteTask(ctx, "t1", "/out/a"))
	require.NoError(t, st.CompleteTask(ctx, "t2", "/out/b"))
	require.NoError(t, st.FailTask(ctx, "t3", "page could not be loaded"))

	progress, err = st.GroupProgress(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "FAILURE", progress.State)
	assert.Equal(t, 2, progress.Completed)
	assert.Equal(t, 1, progress.Failed)
	assert.True(t, progress.Ready)
	assert.False(t, progress.AllSuccessful)
}

func TestGroupProgress_AllSuccessful(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateGroup(ctx, "g1", map[string]string{"t1": "https://a.example.com"}))
	require.NoError(t, st.CompleteTask(ctx, "t1", "/out/a"))

	progress, err := st.GroupProgress(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", progress.State)
	assert.True(t, progress.AllSuccessful)
}

func TestGroupProgress_UnknownGroup(t *testing.T) {
	st := openStore(t)

	_, err := st.GroupProgress(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
}

func TestGroupOutputPaths(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateGroup(ctx, "g1", map[string]string{
		"t1": "https://a.example.com",
		"t2": "https://b.example.com",
	}))
	require.NoError(t, st.CompleteTask(ctx, "t1", "/out/a"))
	require.NoError(t, st.FailTask(ctx, "t2", "boom"))

	paths, err := st.GroupOutputPaths(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/a"}, paths)

	_, err = st.GroupOutputPaths(ctx, "unknown")
	assert.ErrorIs(t, err, store.ErrGroupNotFound)
}

func TestFinishUnknownTask(t *testing.T) {
	st := openStore(t)

	assert.Error(t, st.CompleteTask(context.Background(), "ghost", "/out"))
	assert.Error(t, st.FailTask(context.Background(), "ghost", "boom"))
}
