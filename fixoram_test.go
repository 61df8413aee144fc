package obliviousdb

import "testing"

func TestFixORAMWriteThenRead(t *testing.T) {
	f := NewFixORAM[uint64](1, Uint64Codec{}, MaxCacheSize)
	id := BlockID{PageIdx: 1, UID: 7}

	path := f.RandomPath()
	newPath := f.RandomPath()
	f.Write(id, path, newPath, 42)

	got, ok := f.Read(id, newPath, f.RandomPath())
	if !ok {
		t.Fatalf("Read: block not found after Write")
	}
	if got != 42 {
		t.Errorf("Read() = %d, want 42", got)
	}
}

func TestFixORAMManyBlocksSurviveAccesses(t *testing.T) {
	f := NewFixORAM[uint64](1, Uint64Codec{}, MaxCacheSize)

	const n = 500
	paths := make([]int, n)
	for i := 0; i < n; i++ {
		id := BlockID{PageIdx: i, UID: 1}
		path := f.RandomPath()
		newPath := f.RandomPath()
		f.Write(id, path, newPath, uint64(i*31))
		paths[i] = newPath
	}

	for i := 0; i < n; i++ {
		id := BlockID{PageIdx: i, UID: 1}
		newPath := f.RandomPath()
		got, ok := f.Read(id, paths[i], newPath)
		if !ok {
			t.Fatalf("block %d missing after interleaved writes", i)
		}
		if got != uint64(i*31) {
			t.Errorf("block %d = %d, want %d", i, got, i*31)
		}
		paths[i] = newPath
	}
}

func TestFixORAMReadMissingReturnsNotOK(t *testing.T) {
	f := NewFixORAM[uint64](1, Uint64Codec{}, MaxCacheSize)
	_, ok := f.Read(BlockID{PageIdx: 99}, f.RandomPath(), f.RandomPath())
	if ok {
		t.Errorf("Read on an empty store should report not-found")
	}
}
