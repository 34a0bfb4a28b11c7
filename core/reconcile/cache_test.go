package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marvin-sync/core/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingBuild(calls *int32) BuildFunc {
	return func(ctx context.Context) (*model.LibraryIndex, error) {
		atomic.AddInt32(calls, 1)
		time.Sleep(10 * time.Millisecond)
		return model.NewLibraryIndex(model.LibraryIdentity{}), nil
	}
}

func TestIndexCache_ReusesWhileIdentityUnchanged(t *testing.T) {
	var calls int32
	cache := NewIndexCache(0)
	id := model.LibraryIdentity{UUID: "lib", LastModified: time.Unix(100, 0)}

	first, err := cache.Get(context.Background(), id, countingBuild(&calls))
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), id, countingBuild(&calls))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, id, first.Identity)
}

func TestIndexCache_RebuildsOnModification(t *testing.T) {
	var calls int32
	cache := NewIndexCache(0)
	ctx := context.Background()

	_, err := cache.Get(ctx, model.LibraryIdentity{UUID: "lib", LastModified: time.Unix(100, 0)}, countingBuild(&calls))
	require.NoError(t, err)
	_, err = cache.Get(ctx, model.LibraryIdentity{UUID: "lib", LastModified: time.Unix(200, 0)}, countingBuild(&calls))
	require.NoError(t, err)
	_, err = cache.Get(ctx, model.LibraryIdentity{UUID: "other", LastModified: time.Unix(200, 0)}, countingBuild(&calls))
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls)
}

func TestIndexCache_TTLAndInvalidate(t *testing.T) {
	var calls int32
	cache := NewIndexCache(time.Nanosecond)
	id := model.LibraryIdentity{UUID: "lib"}

	_, _ = cache.Get(context.Background(), id, countingBuild(&calls))
	time.Sleep(time.Millisecond)
	_, _ = cache.Get(context.Background(), id, countingBuild(&calls))
	assert.Equal(t, int32(2), calls)

	cache = NewIndexCache(0)
	_, _ = cache.Get(context.Background(), id, countingBuild(&calls))
	cache.Invalidate()
	assert.Nil(t, cache.Current())
	_, _ = cache.Get(context.Background(), id, countingBuild(&calls))
	assert.Equal(t, int32(4), calls)
}

func TestIndexCache_ConcurrentCallersShareBuild(t *testing.T) {
	var calls int32
	cache := NewIndexCache(0)
	id := model.LibraryIdentity{UUID: "lib"}
	build := func(ctx context.Context) (*model.LibraryIndex, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return model.NewLibraryIndex(model.LibraryIdentity{}), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), id, build)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls)
}

func TestIndexCache_BuildError(t *testing.T) {
	cache := NewIndexCache(0)
	_, err := cache.Get(context.Background(), model.LibraryIdentity{UUID: "lib"}, func(context.Context) (*model.LibraryIndex, error) {
		return nil, errors.New("locked")
	})
	assert.EqualError(t, err, "locked")
	assert.Nil(t, cache.Current())
}
