package obliviousdb

import "testing"

func fixedKey(n byte, length int) []byte {
	k := make([]byte, length)
	for i := range k {
		k[i] = n
	}
	return k
}

func TestCuckooHashMapSetGet(t *testing.T) {
	m := NewCuckooHashMap[int](8, IntCodec{})
	m.Set(fixedKey(1, 8), 100)
	m.Set(fixedKey(2, 8), 200)

	v, ok := m.Get(fixedKey(1, 8))
	if !ok || v != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", v, ok)
	}
	v, ok = m.Get(fixedKey(2, 8))
	if !ok || v != 200 {
		t.Errorf("Get(key2) = (%d, %v), want (200, true)", v, ok)
	}
}

func TestCuckooHashMapOverwrite(t *testing.T) {
	m := NewCuckooHashMap[int](8, IntCodec{})
	key := fixedKey(9, 8)
	m.Set(key, 1)
	m.Set(key, 2)
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after overwrite", m.Len())
	}
	v, ok := m.Get(key)
	if !ok || v != 2 {
		t.Errorf("Get() = (%d, %v), want (2, true)", v, ok)
	}
}

func TestCuckooHashMapManyKeys(t *testing.T) {
	m := NewCuckooHashMap[int](8, IntCodec{})
	const n = 2000
	for i := 0; i < n; i++ {
		var k [8]byte
		putUint64(k[:], uint64(i))
		m.Set(k[:], i*7)
	}
	if m.Len() != n {
		t.Fatalf("Len() = %d, want %d", m.Len(), n)
	}
	for i := 0; i < n; i++ {
		var k [8]byte
		putUint64(k[:], uint64(i))
		v, ok := m.Get(k[:])
		if !ok || v != i*7 {
			t.Fatalf("Get(%d) = (%d, %v), want (%d, true)", i, v, ok, i*7)
		}
	}
}

func TestCuckooHashMapRemove(t *testing.T) {
	m := NewCuckooHashMap[int](8, IntCodec{})
	key := fixedKey(3, 8)
	m.Set(key, 5)
	if !m.Remove(key) {
		t.Fatalf("Remove() = false, want true")
	}
	if _, ok := m.Get(key); ok {
		t.Errorf("key still present after Remove")
	}
	if m.Remove(key) {
		t.Errorf("second Remove() should report false")
	}
}
