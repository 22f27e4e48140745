package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsertRefusesDuplicate(t *testing.T) {
	r := NewRegistry()
	first := NewSession(context.Background(), "sid", nil)
	second := NewSession(context.Background(), "sid", nil)

	require.True(t, r.Insert(first))
	assert.False(t, r.Insert(second))

	got, ok := r.Get("sid")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistryDetachOnlyOwnInstance(t *testing.T) {
	r := NewRegistry()
	old := NewSession(context.Background(), "sid", nil)
	require.True(t, r.Insert(old))
	_, ok := r.Remove("sid")
	require.True(t, ok)

	fresh := NewSession(context.Background(), "sid", nil)
	require.True(t, r.Insert(fresh))

	assert.False(t, r.Holds(old))
	assert.False(t, r.Detach(old))
	assert.True(t, r.Holds(fresh))
	assert.True(t, r.Detach(fresh))
	assert.Zero(t, r.Len())
}

func TestRegistryRemoveMissing(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Remove("ghost")
	assert.False(t, ok)
}

func TestRegistryConcurrentKeys(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sid := domain.SessionID(fmt.Sprintf("s-%d", i))
			s := NewSession(context.Background(), sid, nil)
			assert.True(t, r.Insert(s))
			_, ok := r.Get(sid)
			assert.True(t, ok)
			if i%2 == 0 {
				_, ok = r.Remove(sid)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, r.Len())
	assert.Len(t, r.Snapshot(), 32)
}
