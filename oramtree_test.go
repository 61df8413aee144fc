package obliviousdb

import (
	"bytes"
	"testing"
)

func TestORAMTreeReadWritePath(t *testing.T) {
	tr := NewORAMTree(8, MaxCacheSize)
	values := make([][]byte, tr.NumLayers())
	for i := range values {
		values[i] = record(byte(i+1), 8)
	}
	tr.WritePath(0, values)

	got, caps := tr.ReadPath(0)
	if len(caps) != tr.NumLayers() {
		t.Fatalf("ReadPath returned %d capacities, want %d", len(caps), tr.NumLayers())
	}
	for i := range values {
		if !bytes.Equal(got[i], values[i]) {
			t.Errorf("layer %d = %x, want %x", i, got[i], values[i])
		}
	}
}

func TestORAMTreeScaleGrowsTotalSize(t *testing.T) {
	tr := NewORAMTree(8, 64)
	before := tr.TotalSize()
	for i := 0; i < 10; i++ {
		tr.Scale(4)
	}
	if tr.TotalSize() <= before {
		t.Errorf("TotalSize() did not grow after repeated Scale calls")
	}
	if tr.NumLayers() < 1 {
		t.Errorf("tree must always have at least one layer")
	}
}

func TestORAMTreeScaleEventuallyAddsLayer(t *testing.T) {
	tr := NewORAMTree(8, 16)
	initialLayers := tr.NumLayers()
	grew := false
	for i := 0; i < 50; i++ {
		tr.Scale(4)
		if tr.NumLayers() > initialLayers {
			grew = true
			break
		}
	}
	if !grew {
		t.Errorf("expected a small topVecMaxSize to eventually force a new top layer")
	}
}

func TestCalcDeepestIdenticalPathsReachLeaf(t *testing.T) {
	logSizes := []uint8{12, 11, 10, 1}
	// identical paths share every bit, so the block may live as deep
	// as the leaf layer (index 0), the most specific placement.
	deepest := CalcDeepest(5, 5, logSizes)
	if deepest != 0 {
		t.Errorf("CalcDeepest(identical paths) = %d, want 0 (leaf)", deepest)
	}
}

func TestCalcDeepestOneSharedBitReachesOnlyRoot(t *testing.T) {
	logSizes := []uint8{12, 11, 10, 1}
	// 0b00 and 0b10 share exactly one trailing bit, enough only for
	// the root layer's requirement (logSize 1).
	deepest := CalcDeepest(0, 2, logSizes)
	if deepest != 3 {
		t.Errorf("CalcDeepest(one shared bit) = %d, want 3 (root)", deepest)
	}
}

func TestCalcDeepestNoSharedBitsStaysInStash(t *testing.T) {
	logSizes := []uint8{12, 11, 10, 1}
	// no trailing bits shared at all: not even the root's requirement
	// of one matching bit is met, so the block cannot be placed.
	deepest := CalcDeepest(0, 1, logSizes)
	if int(deepest) != len(logSizes) {
		t.Errorf("CalcDeepest(no shared bits) = %d, want %d (stash only)", deepest, len(logSizes))
	}
}
