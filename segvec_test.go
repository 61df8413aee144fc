package obliviousdb

import (
	"bytes"
	"testing"
)

func record(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func TestSegmentedVectorGetSetWithinFirstSegment(t *testing.T) {
	v := NewSegmentedVector(8)
	v.Set(10, record(0xaa, 8))
	got := v.Get(10)
	if !bytes.Equal(got, record(0xaa, 8)) {
		t.Errorf("Get(10) = %x, want %x", got, record(0xaa, 8))
	}
	if v.Get(11) != nil && !bytes.Equal(v.Get(11), make([]byte, 8)) {
		t.Errorf("untouched index should read back as zero")
	}
}

func TestSegmentedVectorForkSelfPreservesOldValues(t *testing.T) {
	v := NewSegmentedVector(8)
	for i := 0; i < MinSegmentSize; i++ {
		v.Set(i, record(byte(i), 8))
	}

	v.DoubleSizeAndForkSelf()
	if v.Capacity() != MinSegmentSize*2 {
		t.Fatalf("Capacity() = %d, want %d", v.Capacity(), MinSegmentSize*2)
	}

	// every original index must still read back unchanged immediately
	// after the fork, before any write forces materialization.
	for i := 0; i < MinSegmentSize; i++ {
		got := v.Get(i)
		want := record(byte(i), 8)
		if !bytes.Equal(got, want) {
			t.Fatalf("after fork, Get(%d) = %x, want %x", i, got, want)
		}
	}

	// the aliased upper half must read the same value as its lower
	// twin until one of the pair is written.
	for i := 0; i < MinSegmentSize; i++ {
		aliasIdx := i + MinSegmentSize
		if !bytes.Equal(v.Get(aliasIdx), v.Get(i)) {
			t.Fatalf("alias at %d should match original %d before materialization", aliasIdx, i)
		}
	}
}

func TestSegmentedVectorForkSelfMaterializesOnWrite(t *testing.T) {
	v := NewSegmentedVector(8)
	v.Set(0, record(0x01, 8))
	v.DoubleSizeAndForkSelf()

	// writing the alias must not disturb the original.
	v.Set(MinSegmentSize, record(0x02, 8))

	if !bytes.Equal(v.Get(0), record(0x01, 8)) {
		t.Errorf("original index 0 changed after writing its alias")
	}
	if !bytes.Equal(v.Get(MinSegmentSize), record(0x02, 8)) {
		t.Errorf("alias index did not take the new write")
	}
}

func TestSegmentedVectorMultipleForks(t *testing.T) {
	v := NewSegmentedVector(4)
	v.Set(5, record(0x55, 4))
	v.DoubleSizeAndForkSelf()
	v.DoubleSizeAndForkSelf()
	v.DoubleSizeAndForkSelf()

	if v.Capacity() != MinSegmentSize*8 {
		t.Fatalf("Capacity() = %d, want %d", v.Capacity(), MinSegmentSize*8)
	}
	if !bytes.Equal(v.Get(5), record(0x55, 4)) {
		t.Errorf("value at index 5 lost across repeated forks")
	}
}
