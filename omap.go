package obliviousdb

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Omap is the top-level oblivious key/value map: a cuckoo hash
// table maps each key's digest to a stable integer index, a recursive
// position map (RecOramPosMap) tracks where that index's record
// currently lives, and a FlexORAM holds the actual (key, value) bytes.
// Every operation sends the record to a freshly sampled position, so
// repeated accesses to the same key never repeat a path.
type Omap struct {
	mu      sync.Mutex
	keyIdx  *CuckooHashMap[int]
	nextIdx int
	pos     *RecOramPosMap
	values  *FlexORAM
}

// NewOmap creates an empty Omap using the package default Config.
func NewOmap() *Omap {
	cfg, _ := Config{}.Validate()
	return NewOmapWithConfig(cfg)
}

// NewOmapWithConfig creates an empty Omap whose component engines use
// cfg's thresholds instead of the package defaults: cfg must already
// be validated (Db.NewWithConfig does this before calling through).
func NewOmapWithConfig(cfg Config) *Omap {
	newStorage := MemStorageFactory
	if cfg.DataDir != "" {
		newStorage = FileStorageFactory(cfg.DataDir)
	}
	values := NewFlexORAMWithStorage(BufferSize, cfg.TopVecMaxSize, cfg.FlexStashLoadFactor, newStorage)
	o := &Omap{
		keyIdx: NewCuckooHashMapWithStorage[int](sha256.Size, IntCodec{}, cfg.CuckooMaxIter, newStorage),
		values: values,
	}
	o.pos = NewRecOramPosMapWithStorage(cfg.TopVecMaxSize, values.RandomPath, cfg.TopVecMaxSize, cfg.FixStashLoadFactor, newStorage)
	return o
}

func keyDigest(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

func encodeRecord(key, value []byte) []byte {
	out := make([]byte, 2+len(key)+len(value))
	binary.LittleEndian.PutUint16(out[:2], uint16(len(key)))
	copy(out[2:], key)
	copy(out[2+len(key):], value)
	return out
}

func decodeRecord(raw []byte) (key, value []byte) {
	kl := int(binary.LittleEndian.Uint16(raw[:2]))
	return raw[2 : 2+kl], raw[2+kl:]
}

// randomBlockIdx returns a PageIdx vanishingly unlikely to collide
// with any real, sequentially-allocated index, so a cuckoo miss's
// FlexORAM access has the same shape as a hit's.
func randomBlockIdx() int {
	return int(rand.Int64())
}

// Get returns the value stored under key, if present. It performs
// exactly one FlexORAM access whether or not key is present, sampling
// a uniformly random old path on a miss instead of skipping the
// access, so a first-access miss is indistinguishable from a hit.
func (o *Omap) Get(key []byte) ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx, ok := o.keyIdx.Get(keyDigest(key))
	var oldPath, newPath, pageIdx int
	if ok {
		oldPath, newPath = o.pos.Access(idx)
		pageIdx = idx
	} else {
		oldPath, newPath = o.values.RandomPath(), o.values.RandomPath()
		pageIdx = randomBlockIdx()
	}
	raw, found := o.values.Read(BlockID{PageIdx: pageIdx}, oldPath, newPath)
	if !ok || !found {
		return nil, false
	}
	_, value := decodeRecord(raw)
	return value, true
}

// Insert stores value under key, overwriting any prior value.
func (o *Omap) Insert(key, value []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	digest := keyDigest(key)
	idx, existed := o.keyIdx.Get(digest)
	if !existed {
		idx = o.nextIdx
		o.nextIdx++
		o.keyIdx.Set(digest, idx)
	}
	oldPath, newPath := o.pos.Access(idx)
	o.values.Write(BlockID{PageIdx: idx}, oldPath, newPath, encodeRecord(key, value))
}

// Remove deletes key, reporting whether it was present. Like Get, it
// performs exactly one FlexORAM access whether or not key is present,
// sampling a uniformly random old path on a miss.
func (o *Omap) Remove(key []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	digest := keyDigest(key)
	idx, ok := o.keyIdx.Get(digest)
	var oldPath, pageIdx int
	if ok {
		oldPath, _ = o.pos.Access(idx)
		pageIdx = idx
	} else {
		oldPath = o.values.RandomPath()
		pageIdx = randomBlockIdx()
	}
	_, found := o.values.Remove(BlockID{PageIdx: pageIdx}, oldPath)
	if ok {
		o.keyIdx.Remove(digest)
	}
	return ok && found
}

// Len returns the number of keys currently stored.
func (o *Omap) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.keyIdx.Len()
}
