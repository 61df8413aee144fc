package obliviousdb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOmapInsertGet(t *testing.T) {
	o := NewOmap()
	o.Insert([]byte("alice"), []byte("wonderland"))
	o.Insert([]byte("bob"), []byte("builder"))

	v, ok := o.Get([]byte("alice"))
	require.True(t, ok)
	require.Equal(t, []byte("wonderland"), v)

	v, ok = o.Get([]byte("bob"))
	require.True(t, ok)
	require.Equal(t, []byte("builder"), v)

	_, ok = o.Get([]byte("carol"))
	require.False(t, ok)
}

func TestOmapOverwriteIsLastWriteWins(t *testing.T) {
	o := NewOmap()
	o.Insert([]byte("k"), []byte("v1"))
	o.Insert([]byte("k"), []byte("v2"))
	o.Insert([]byte("k"), []byte("v3"))

	v, ok := o.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v3"), v)
	require.Equal(t, 1, o.Len())
}

func TestOmapRemove(t *testing.T) {
	o := NewOmap()
	o.Insert([]byte("x"), []byte("y"))
	require.True(t, o.Remove([]byte("x")))
	_, ok := o.Get([]byte("x"))
	require.False(t, ok)
	require.False(t, o.Remove([]byte("x")))
}

func TestOmapMixedInsertOverwriteWorkload(t *testing.T) {
	o := NewOmap()
	reference := NewLinearOram()

	const numKeys = 5000
	const numOps = 10000
	for i := 0; i < numOps; i++ {
		key := []byte(fmt.Sprintf("key-%d", i%numKeys))
		value := []byte(fmt.Sprintf("value-%d", i))
		o.Insert(key, value)
		reference.Insert(key, value)
	}

	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		want, wantOK := reference.Get(key)
		got, gotOK := o.Get(key)
		require.Equal(t, wantOK, gotOK, "key %s presence mismatch", key)
		if wantOK {
			require.Equal(t, want, got, "key %s value mismatch", key)
		}
	}
}
