package obliviousdb

import "math/bits"

// ORAMTree is an ordered sequence of SegmentedVectors, all sharing one
// record size, forming the backbone of the path-style ORAM.
// Layer 0 is the leaf layer (widest, most addressed); the last layer is
// the root (smallest, effectively cached). Capacities are strictly
// non-increasing from leaf to root and always powers of two.
type ORAMTree struct {
	layers        []*SegmentedVector
	topVecMaxSize int
	totalSize     int
	recordSize    int
	newStorage    StorageFactory
}

// NewORAMTree creates a tree of recordSize-byte records with a single
// leaf layer of MinSegmentSize capacity. topVecMaxSize bounds the root
// layer's capacity before a new, smaller layer is appended above it.
func NewORAMTree(recordSize, topVecMaxSize int) *ORAMTree {
	return NewORAMTreeWithStorage(recordSize, topVecMaxSize, MemStorageFactory)
}

// NewORAMTreeWithStorage is NewORAMTree with an explicit backend for
// every layer's segments, used by callers threading a Config through
// (Db, Omap) to select file-backed storage.
func NewORAMTreeWithStorage(recordSize, topVecMaxSize int, newStorage StorageFactory) *ORAMTree {
	leaf := NewSegmentedVectorWithStorage(recordSize, newStorage)
	return &ORAMTree{
		layers:        []*SegmentedVector{leaf},
		topVecMaxSize: topVecMaxSize,
		totalSize:     leaf.Capacity(),
		recordSize:    recordSize,
		newStorage:    newStorage,
	}
}

// ReadPath returns the record at index%capacity for every layer, leaf
// first, along with each layer's current capacity.
func (t *ORAMTree) ReadPath(index int) ([][]byte, []int) {
	path := make([][]byte, len(t.layers))
	capacities := make([]int, len(t.layers))
	for i, layer := range t.layers {
		c := layer.Capacity()
		capacities[i] = c
		path[i] = layer.Get(index % c)
	}
	return path, capacities
}

// WritePath writes values[i] to layer i at index%capacity.
func (t *ORAMTree) WritePath(index int, values [][]byte) {
	for i, layer := range t.layers {
		layer.Set(index%layer.Capacity(), values[i])
	}
}

// Scale grows the tree to better approach targetBranchingFactor.
// If some non-top layer's branching factor relative to the layer above
// it has fallen to half the target or below, that layer is doubled to
// restore balance; otherwise the top (root) layer is doubled, and if it
// then exceeds topVecMaxSize, a fresh top layer is appended and grown
// in-place up to the tree's current minimum layer size.
func (t *ORAMTree) Scale(targetBranchingFactor int) {
	if targetBranchingFactor < 2 {
		targetBranchingFactor = 2
	}
	initMinLayerSize := t.MinLayerSize()

	minBranchingFactor := int(^uint(0) >> 1) // max int
	minBranchingFactorLayer := 0
	for i := 0; i < len(t.layers)-1; i++ {
		bf := t.layers[i].Capacity() / t.layers[i+1].Capacity()
		if bf < minBranchingFactor {
			minBranchingFactor = bf
			minBranchingFactorLayer = i
		}
	}

	if len(t.layers) > 1 && minBranchingFactor*2 <= targetBranchingFactor {
		t.totalSize += t.layers[minBranchingFactorLayer].Capacity()
		t.layers[minBranchingFactorLayer].DoubleSizeAndForkSelf()
		return
	}

	top := t.layers[len(t.layers)-1]
	t.totalSize += top.Capacity()
	top.DoubleSizeAndForkSelf()
	if top.Capacity() > t.topVecMaxSize {
		newTop := NewSegmentedVectorWithStorage(t.recordSize, t.newStorage)
		for newTop.Capacity() < initMinLayerSize {
			newTop.DoubleSizeAndForkSelf()
		}
		t.totalSize += newTop.Capacity()
		t.layers = append(t.layers, newTop)
	}
}

// MinLayerSize returns the root layer's current capacity.
func (t *ORAMTree) MinLayerSize() int {
	return t.layers[len(t.layers)-1].Capacity()
}

// TotalSize returns the tree's total page count across all layers.
func (t *ORAMTree) TotalSize() int {
	return t.totalSize
}

// NumLayers returns the number of layers in the tree.
func (t *ORAMTree) NumLayers() int {
	return len(t.layers)
}

// LayerCapacities returns each layer's current capacity, leaf first.
func (t *ORAMTree) LayerCapacities() []int {
	caps := make([]int, len(t.layers))
	for i, l := range t.layers {
		caps[i] = l.Capacity()
	}
	return caps
}

// CalcDeepest returns the topmost (smallest-index) layer a block at
// logical path selfIdx may legally reside in while the tree is
// currently servicing an access at otherIdx — the "deepest level" a
// block can be evicted to. It is the smallest layer k whose log-capacity
// is at most the number of trailing bits selfIdx and otherIdx share; if
// no such layer exists the block may not reside in the tree at all
// (returns len(layerLogSizes)), meaning it must stay in the stash.
func CalcDeepest(selfIdx, otherIdx int, layerLogSizes []uint8) uint8 {
	tzcnt := uint8(bits.TrailingZeros(uint(selfIdx ^ otherIdx)))
	for i, logSize := range layerLogSizes {
		if tzcnt >= logSize {
			return uint8(i)
		}
	}
	return uint8(len(layerLogSizes))
}

// LayerLogSizes converts layer capacities to their base-2 logarithms,
// as CalcDeepest requires.
func LayerLogSizes(capacities []int) []uint8 {
	logs := make([]uint8, len(capacities))
	for i, c := range capacities {
		logs[i] = uint8(bits.TrailingZeros(uint(c)))
	}
	return logs
}
