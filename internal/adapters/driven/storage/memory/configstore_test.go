package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetGetUnset(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("retrieval.top_k", 6))
	require.NoError(t, store.Set("llm.model", "llama3.2"))

	v, ok := store.Get("retrieval.top_k")
	require.True(t, ok)
	assert.Equal(t, 6, v)
	assert.Equal(t, []string{"llm.model", "retrieval.top_k"}, store.Keys())

	require.NoError(t, store.Unset("llm.model"))
	require.NoError(t, store.Unset("missing"))
	_, ok = store.Get("llm.model")
	assert.False(t, ok)
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key.%d", n%5)
			_ = store.Set(key, n)
			_, _ = store.Get(key)
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 5)
}
