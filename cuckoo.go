package obliviousdb

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"

	"golang.org/x/sync/errgroup"
)

const cuckooBucketSize = 4

// cuckooItem is one key/value pair as it moves through the two tables
// and, on overflow, the stash.
type cuckooItem[V any] struct {
	key   []byte
	value V
}

// CuckooHashMap is a two-table cuckoo hash map over SegmentedVector
// buckets: each bucket holds up to cuckooBucketSize entries,
// bucket indices are salted SHA-256 digests of the key, and an
// eviction chain bounded by CuckooMaxIter displaces colliding entries
// between the two tables before giving up into an in-memory stash.
// The stash path is expected to be rare and is not made oblivious: a
// full-bucket collision leaks that a collision happened, which this
// design accepts.
type CuckooHashMap[V any] struct {
	mu sync.Mutex

	keyLen     int
	valCodec   Codec[V]
	salt       []byte // one 32-byte salt; both bucket indices derive from one digest of it
	tables     [2]*SegmentedVector
	maxIter    int
	newStorage StorageFactory

	stashMu sync.Mutex
	stash   map[string]cuckooItem[V]

	count int
}

// NewCuckooHashMap creates an empty map over fixed-length keys
// (keyLen bytes), values serialized by valCodec, with both tables
// starting at MinSegmentSize buckets and the package default eviction
// round bound.
func NewCuckooHashMap[V any](keyLen int, valCodec Codec[V]) *CuckooHashMap[V] {
	return NewCuckooHashMapWithMaxIter(keyLen, valCodec, CuckooMaxIter)
}

// NewCuckooHashMapWithMaxIter is NewCuckooHashMap with an explicit
// eviction-round bound, used by callers threading a Config through
// (Db, Omap).
func NewCuckooHashMapWithMaxIter[V any](keyLen int, valCodec Codec[V], maxIter int) *CuckooHashMap[V] {
	return NewCuckooHashMapWithStorage(keyLen, valCodec, maxIter, MemStorageFactory)
}

// NewCuckooHashMapWithStorage is NewCuckooHashMapWithMaxIter with an
// explicit backend for the bucket tables, used by callers threading a
// Config through (Db, Omap) to select file-backed storage.
func NewCuckooHashMapWithStorage[V any](keyLen int, valCodec Codec[V], maxIter int, newStorage StorageFactory) *CuckooHashMap[V] {
	entrySize := 1 + keyLen + valCodec.Size()
	bucketSize := cuckooBucketSize * entrySize
	m := &CuckooHashMap[V]{
		keyLen:     keyLen,
		valCodec:   valCodec,
		salt:       newSalt(),
		maxIter:    maxIter,
		newStorage: newStorage,
		stash:      make(map[string]cuckooItem[V]),
	}
	for i := range m.tables {
		m.tables[i] = NewSegmentedVectorWithStorage(bucketSize, newStorage)
	}
	return m
}

func newSalt() []byte {
	s := make([]byte, 32)
	if _, err := rand.Read(s); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return s
}

// keyDigest is the single salted SHA-256 digest both bucket indices
// are carved out of: bytes [0:8] give table 0's index, [8:16] give
// table 1's.
func (m *CuckooHashMap[V]) keyDigest(key []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write(m.salt)
	h.Write(key)
	var digest [sha256.Size]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

func (m *CuckooHashMap[V]) bucketIndex(table int, digest [sha256.Size]byte) int {
	v := binary.LittleEndian.Uint64(digest[table*8 : table*8+8])
	return int(v % uint64(m.tables[table].Capacity()))
}

func (m *CuckooHashMap[V]) entrySize() int {
	return 1 + m.keyLen + m.valCodec.Size()
}

func (m *CuckooHashMap[V]) encodeBucket(items []cuckooItem[V]) []byte {
	es := m.entrySize()
	out := make([]byte, cuckooBucketSize*es)
	for i := 0; i < len(items) && i < cuckooBucketSize; i++ {
		off := i * es
		out[off] = 1
		copy(out[off+1:], items[i].key)
		copy(out[off+1+m.keyLen:], m.valCodec.Encode(items[i].value))
	}
	return out
}

func (m *CuckooHashMap[V]) decodeBucket(raw []byte) []cuckooItem[V] {
	es := m.entrySize()
	var items []cuckooItem[V]
	for i := 0; i < cuckooBucketSize; i++ {
		off := i * es
		if raw[off] == 0 {
			continue
		}
		key := make([]byte, m.keyLen)
		copy(key, raw[off+1:off+1+m.keyLen])
		value := m.valCodec.Decode(raw[off+1+m.keyLen : off+es])
		items = append(items, cuckooItem[V]{key: key, value: value})
	}
	return items
}

// Get looks up key, probing both tables concurrently (via
// golang.org/x/sync/errgroup) before falling back to the overflow
// stash.
func (m *CuckooHashMap[V]) Get(key []byte) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	digest := m.keyDigest(key)
	var results [2][]cuckooItem[V]
	g, _ := errgroup.WithContext(context.Background())
	for t := 0; t < 2; t++ {
		t := t
		g.Go(func() error {
			idx := m.bucketIndex(t, digest)
			results[t] = m.decodeBucket(m.tables[t].Get(idx))
			return nil
		})
	}
	_ = g.Wait()

	for _, table := range results {
		for _, it := range table {
			if bytesEqual(it.key, key) {
				return it.value, true
			}
		}
	}

	m.stashMu.Lock()
	it, ok := m.stash[string(key)]
	m.stashMu.Unlock()
	if ok {
		return it.value, true
	}
	var zero V
	return zero, false
}

// Set inserts or overwrites the value stored under key.
func (m *CuckooHashMap[V]) Set(key []byte, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.removeLocked(key) {
		m.count--
	}
	m.insertLocked(cuckooItem[V]{key: append([]byte(nil), key...), value: value})
	m.count++
	m.maybeGrow()
}

// Remove deletes key if present, reporting whether it was found.
func (m *CuckooHashMap[V]) Remove(key []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := m.removeLocked(key)
	if found {
		m.count--
	}
	return found
}

func (m *CuckooHashMap[V]) removeLocked(key []byte) bool {
	digest := m.keyDigest(key)
	removed := false
	for t := 0; t < 2; t++ {
		idx := m.bucketIndex(t, digest)
		items := m.decodeBucket(m.tables[t].Get(idx))
		kept := items[:0]
		for _, it := range items {
			if bytesEqual(it.key, key) {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		if removed {
			m.tables[t].Set(idx, m.encodeBucket(kept))
			return true
		}
	}
	m.stashMu.Lock()
	if _, ok := m.stash[string(key)]; ok {
		delete(m.stash, string(key))
		removed = true
	}
	m.stashMu.Unlock()
	return removed
}

// insertLocked runs the cuckoo eviction chain: starting with table 0,
// place the current item in its bucket of the current table if that
// bucket has room, or else evict a random occupant and retry with it in
// the other table, bounded by maxIter rounds, finally spilling into the
// overflow stash.
func (m *CuckooHashMap[V]) insertLocked(item cuckooItem[V]) {
	cur := item
	table := 0
	for i := 0; i < m.maxIter; i++ {
		idx := m.bucketIndex(table, m.keyDigest(cur.key))
		items := m.decodeBucket(m.tables[table].Get(idx))
		if len(items) < cuckooBucketSize {
			items = append(items, cur)
			m.tables[table].Set(idx, m.encodeBucket(items))
			return
		}
		victim := mrand.IntN(len(items))
		evicted := items[victim]
		items[victim] = cur
		m.tables[table].Set(idx, m.encodeBucket(items))
		cur = evicted
		table = 1 - table
	}
	m.stashMu.Lock()
	m.stash[string(cur.key)] = cur
	m.stashMu.Unlock()
}

// maybeGrow rehashes both tables into double-capacity tables once the
// stash starts absorbing overflow, since bucket indices depend on
// table capacity and cannot be preserved by the segmented vector's
// in-place fork-self doubling.
func (m *CuckooHashMap[V]) maybeGrow() {
	m.stashMu.Lock()
	overflow := len(m.stash)
	m.stashMu.Unlock()
	if overflow == 0 {
		return
	}

	var all []cuckooItem[V]
	for t := 0; t < 2; t++ {
		tableCap := m.tables[t].Capacity()
		for i := 0; i < tableCap; i++ {
			all = append(all, m.decodeBucket(m.tables[t].Get(i))...)
		}
	}
	m.stashMu.Lock()
	for _, it := range m.stash {
		all = append(all, it)
	}
	m.stash = make(map[string]cuckooItem[V])
	m.stashMu.Unlock()

	targetCap := m.tables[0].Capacity() * 2
	es := m.entrySize()
	bucketSize := cuckooBucketSize * es
	m.salt = newSalt()
	for t := 0; t < 2; t++ {
		nv := NewSegmentedVectorWithStorage(bucketSize, m.newStorage)
		for nv.Capacity() < targetCap {
			nv.DoubleSizeAndForkSelf()
		}
		m.tables[t] = nv
	}
	for _, it := range all {
		m.insertLocked(it)
	}
}

// Len returns the number of keys currently stored.
func (m *CuckooHashMap[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
