package obliviousdb

import (
	"bytes"
	"testing"
)

func TestFlexORAMWriteThenRead(t *testing.T) {
	f := NewFlexORAM(BufferSize, MaxCacheSize)
	id := BlockID{PageIdx: 3}
	path := f.RandomPath()
	newPath := f.RandomPath()
	payload := bytes.Repeat([]byte("hello"), 10)

	f.Write(id, path, newPath, payload)
	got, ok := f.Read(id, newPath, f.RandomPath())
	if !ok {
		t.Fatalf("Read: block not found")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Read() = %q, want %q", got, payload)
	}
}

func TestFlexORAMVariableLengthRecordsCoexist(t *testing.T) {
	f := NewFlexORAM(BufferSize, MaxCacheSize)
	sizes := []int{1, 17, 200, 5, 900}
	paths := make([]int, len(sizes))
	for i, n := range sizes {
		id := BlockID{PageIdx: i}
		path := f.RandomPath()
		newPath := f.RandomPath()
		f.Write(id, path, newPath, bytes.Repeat([]byte{byte(i + 1)}, n))
		paths[i] = newPath
	}
	for i, n := range sizes {
		id := BlockID{PageIdx: i}
		got, ok := f.Read(id, paths[i], f.RandomPath())
		if !ok {
			t.Fatalf("record %d missing", i)
		}
		if !bytes.Equal(got, bytes.Repeat([]byte{byte(i + 1)}, n)) {
			t.Errorf("record %d corrupted, len=%d want=%d", i, len(got), n)
		}
	}
}

func TestFlexORAMRemove(t *testing.T) {
	f := NewFlexORAM(BufferSize, MaxCacheSize)
	id := BlockID{PageIdx: 1}
	path := f.RandomPath()
	newPath := f.RandomPath()
	f.Write(id, path, newPath, []byte("gone soon"))

	val, ok := f.Remove(id, newPath)
	if !ok || !bytes.Equal(val, []byte("gone soon")) {
		t.Fatalf("Remove() = (%q, %v), want (%q, true)", val, ok, "gone soon")
	}

	_, ok = f.Read(id, f.RandomPath(), f.RandomPath())
	if ok {
		t.Errorf("record should be gone after Remove")
	}
}
