package obliviousdb

import (
	"encoding/binary"
	"sync"
)

// PosBlockFanout (B) is the number of position entries packed into a
// single recursive position-map block.
// Packing B entries per block shrinks the position map by a factor of
// B at each level of recursion, bounding recursion depth to
// O(log_B N).
const PosBlockFanout = 4

// posEntry is one tracked position: the physical path the referenced
// block (a deeper recursion level's page, or the real data block) is
// currently assigned to, plus a version counter bumped on every
// re-assignment (kept for parity with the reference design's
// staleness bookkeeping, though this implementation does not need it
// for correctness since every level is re-randomized on every visit).
type posEntry struct {
	path    int
	version uint32
}

// posBlock packs PosBlockFanout position entries behind a single
// FixORAM BlockID, so one recursion level's FixORAM has N/B blocks for
// an N-entry level below it.
type posBlock [PosBlockFanout]posEntry

type posBlockCodec struct{}

func (posBlockCodec) Size() int { return PosBlockFanout * 12 }

func (posBlockCodec) Encode(v posBlock) []byte {
	b := make([]byte, PosBlockFanout*12)
	for i, e := range v {
		off := i * 12
		putUint64(b[off:], uint64(e.path))
		binary.LittleEndian.PutUint32(b[off+8:], e.version)
	}
	return b
}

func (posBlockCodec) Decode(b []byte) posBlock {
	var v posBlock
	for i := range v {
		off := i * 12
		v[i] = posEntry{
			path:    int(getUint64(b[off:])),
			version: binary.LittleEndian.Uint32(b[off+8:]),
		}
	}
	return v
}

// RecOramPosMap is the recursive position map: a tower of
// FixORAM[posBlock] levels, each B times smaller than the one below
// it, terminating in a small plaintext base level once the entry count
// drops low enough to store directly (fork-self semantics still apply
// to the base so it can grow). Access walks the tower top-down (base
// toward data), re-randomizing every level's relevant page on every
// visit and finally handing back the data block's position, freshly
// re-assigned for the caller's own ORAM to use as its new home.
type RecOramPosMap struct {
	mu       sync.Mutex
	base     *SegmentedVector // recordSize=8; holds the physical path of levels[last]'s relevant page
	levels   []*FixORAM[posBlock]
	randPath func() int // samples a fresh path in the data store's own domain
}

// NewRecOramPosMap builds a position map over numData logical data
// indices, where randomDataPath samples a fresh position in the data
// store's own path domain (typically the data store's own RandomPath
// method) — kept dynamic since that domain grows as the data store
// scales. Each recursion level's own FixORAM tree uses the package
// default topVecMaxSize/load factor.
func NewRecOramPosMap(numData int, randomDataPath func() int) *RecOramPosMap {
	return NewRecOramPosMapWithConfig(numData, randomDataPath, MaxCacheSize, FixStashLoadFactor)
}

// NewRecOramPosMapWithConfig is NewRecOramPosMap with explicit tree
// parameters for each recursion level's FixORAM, used by callers
// threading a Config through (Db, Omap).
func NewRecOramPosMapWithConfig(numData int, randomDataPath func() int, topVecMaxSize int, loadFactor float64) *RecOramPosMap {
	return NewRecOramPosMapWithStorage(numData, randomDataPath, topVecMaxSize, loadFactor, MemStorageFactory)
}

// NewRecOramPosMapWithStorage is NewRecOramPosMapWithConfig with an
// explicit backend for the base level and every recursion level's
// FixORAM, used by callers threading a Config through (Db, Omap) to
// select file-backed storage.
func NewRecOramPosMapWithStorage(numData int, randomDataPath func() int, topVecMaxSize int, loadFactor float64, newStorage StorageFactory) *RecOramPosMap {
	const baseThreshold = MinSegmentSize
	counts := []int{numData}
	for counts[len(counts)-1] > baseThreshold {
		n := counts[len(counts)-1]
		counts = append(counts, (n+PosBlockFanout-1)/PosBlockFanout)
	}
	levels := make([]*FixORAM[posBlock], len(counts)-1)
	for i := range levels {
		levels[i] = NewFixORAMWithStorage[posBlock](1, posBlockCodec{}, topVecMaxSize, loadFactor, newStorage)
	}
	return &RecOramPosMap{
		base:     NewSegmentedVectorWithStorage(8, newStorage),
		levels:   levels,
		randPath: randomDataPath,
	}
}

// Access returns dataIdx's current position in the data store (oldPath)
// and the fresh position it has just been re-assigned to (newPath),
// atomically re-assigning every recursion level it passed through to
// freshly sampled paths too, following the "every access samples new
// positions top-down" rule of path-ORAM position maps. The caller is
// responsible for actually relocating dataIdx's record in its own
// store from oldPath to newPath.
func (m *RecOramPosMap) Access(dataIdx int) (oldPath, newPath int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.levels) == 0 {
		for m.base.Capacity() <= dataIdx {
			m.base.DoubleSizeAndForkSelf()
		}
		old := int(getUint64(m.base.Get(dataIdx)))
		fresh := m.randPath()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(fresh))
		m.base.Set(dataIdx, buf[:])
		return old, fresh
	}

	supers := make([]int, len(m.levels)+1)
	supers[0] = dataIdx
	for i := 0; i < len(m.levels); i++ {
		supers[i+1] = supers[i] / PosBlockFanout
	}
	baseIdx := supers[len(m.levels)]
	for m.base.Capacity() <= baseIdx {
		m.base.DoubleSizeAndForkSelf()
	}

	relocTo := make([]int, len(m.levels))
	for i := range relocTo {
		relocTo[i] = m.levels[i].RandomPath()
	}

	path := int(getUint64(m.base.Get(baseIdx)))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(relocTo[len(relocTo)-1]))
	m.base.Set(baseIdx, buf[:])

	freshDataPath := m.randPath()

	for i := len(m.levels) - 1; i >= 0; i-- {
		superIdx := supers[i+1]
		sub := supers[i] % PosBlockFanout
		// Offset by one so superIdx 0 never becomes the empty-slot
		// sentinel BlockID{0, 0}.
		id := BlockID{PageIdx: superIdx + 1}

		newPointer := freshDataPath
		if i > 0 {
			newPointer = relocTo[i-1]
		}

		var nextPhysPath int
		m.levels[i].Mutate(id, path, relocTo[i], func(v posBlock, found bool) (posBlock, bool) {
			nextPhysPath = v[sub].path
			v[sub] = posEntry{path: newPointer, version: v[sub].version + 1}
			return v, true
		})
		path = nextPhysPath
	}
	return path, freshDataPath
}
