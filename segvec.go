package obliviousdb

import (
	"math/bits"
	"sync"
)

// SegmentedVector is a logical, power-of-two-capacity array of
// recordSize-byte records backed by a growing list of EncryptedVector
// segments. Segment 0 has capacity MinSegmentSize; segment
// k>=1 has capacity equal to the sum of all prior segments. Doubling
// ("fork-self") appends a fresh empty segment equal in size to the
// whole vector so far and aliases every existing physical slot into
// the new upper half until a write forces materialization.
type SegmentedVector struct {
	mu         sync.RWMutex
	segments   []*EncryptedVector
	versions   []uint8 // per-logical-index: log2(capacity at last materialization)
	counters   []uint32
	size       int
	logSize    uint8
	key        *[KeySize]byte
	recordSize int
	newStorage StorageFactory
}

// NewSegmentedVector creates a SegmentedVector of recordSize-byte
// records with a single segment of MinSegmentSize capacity, entirely
// in memory.
func NewSegmentedVector(recordSize int) *SegmentedVector {
	return NewSegmentedVectorWithStorage(recordSize, MemStorageFactory)
}

// NewSegmentedVectorWithStorage is NewSegmentedVector with an explicit
// backend for every segment, used by callers threading a Config
// through (Db, Omap) to select file-backed storage.
func NewSegmentedVectorWithStorage(recordSize int, newStorage StorageFactory) *SegmentedVector {
	key := randomKey()
	store, err := newStorage(MinSegmentSize)
	if err != nil {
		panic(err)
	}
	seg := NewEncryptedVector(store, MinSegmentSize, recordSize, key)
	initVersion := uint8(bits.TrailingZeros(uint(MinSegmentSize)))
	versions := make([]uint8, MinSegmentSize)
	for i := range versions {
		versions[i] = initVersion
	}
	return &SegmentedVector{
		segments:   []*EncryptedVector{seg},
		versions:   versions,
		counters:   make([]uint32, MinSegmentSize),
		size:       MinSegmentSize,
		logSize:    initVersion,
		key:        key,
		recordSize: recordSize,
		newStorage: newStorage,
	}
}

// doubleSize appends a fresh, empty segment exactly as large as the
// current vector and doubles the logical size.
func (v *SegmentedVector) doubleSize() {
	store, err := v.newStorage(v.size)
	if err != nil {
		panic(err)
	}
	seg := NewEncryptedVector(store, v.size, v.recordSize, v.key)
	v.segments = append(v.segments, seg)
	v.size *= 2
	v.logSize++
}

// DoubleSizeAndForkSelf is the fork-self growth operation:
// the vector's capacity doubles, and every existing logical index's
// value remains reachable, unmodified, through its old version byte
// until a Set eagerly materializes it.
func (v *SegmentedVector) DoubleSizeAndForkSelf() {
	v.mu.Lock()
	defer v.mu.Unlock()
	originalSize := v.size
	v.doubleSize()
	v.versions = append(v.versions, v.versions[:originalSize]...)
	counters := make([]uint32, v.size)
	copy(counters, v.counters)
	v.counters = counters
}

// innerIndices maps a physical index (already reduced modulo the
// current version's addressable range) to (segment, offset within
// segment).
func (v *SegmentedVector) innerIndices(physical int) (int, int) {
	segIdxPow2 := physical / MinSegmentSize
	segIdx := bits.Len(uint(segIdxPow2))
	within := physical - ((1 << segIdx) / 2 * MinSegmentSize)
	return segIdx, within
}

// Capacity returns the current logical size of the vector.
func (v *SegmentedVector) Capacity() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.size
}

// Get returns the recordSize-byte record at logical index i, or
// recordSize zero bytes if i is out of range.
func (v *SegmentedVector) Get(i int) []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i < 0 || i >= v.size {
		return make([]byte, v.recordSize)
	}
	version := v.versions[i]
	actual := i & ((1 << version) - 1)
	seg, within := v.innerIndices(actual)
	return v.segments[seg].Get(within, v.counters[actual])
}

// Set writes value (recordSize bytes) at logical index i, materializing
// any aliased indices that still point at the same physical slot under
// an older version.
func (v *SegmentedVector) Set(i int, value []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || i >= v.size {
		return
	}
	version := v.versions[i]
	versionSize := 1 << version
	if versionSize != v.size {
		originalIdx := i & (versionSize - 1)
		fromSeg, fromWithin := v.innerIndices(originalIdx)
		originalRaw := v.segments[fromSeg].RawGet(fromWithin)
		v.versions[originalIdx] = v.logSize
		for toIdx := originalIdx + versionSize; toIdx < v.size; toIdx += versionSize {
			if toIdx != i {
				toSeg, toWithin := v.innerIndices(toIdx)
				v.segments[toSeg].RawPut(toWithin, originalRaw)
			}
			v.versions[toIdx] = v.logSize
			v.counters[toIdx] = v.counters[originalIdx]
		}
	}
	seg, within := v.innerIndices(i)
	v.counters[i]++
	v.segments[seg].Put(within, value, v.counters[i])
}

// RecordSize returns the fixed plaintext record size of this vector.
func (v *SegmentedVector) RecordSize() int {
	return v.recordSize
}
