package obliviousdb

import (
	"encoding/binary"
	"math/rand/v2"
	"sort"
	"sync"
)

// flexHeaderSize is the per-entry overhead inside a FlexORAM page: a
// BlockID, its assigned path, and a 2-byte payload length.
const flexHeaderSize = blockIDSize + 8 + 2

// flexEntry is one variable-length record held by a FlexORAM, either
// resident in a page or pending placement in the stash.
type flexEntry struct {
	id   BlockID
	path int
	data []byte
}

func (e flexEntry) wireSize() int { return flexHeaderSize + len(e.data) }

// FlexORAM is a variable-record oblivious RAM: unlike FixORAM's
// fixed slot count, each page packs as many variable-length records as
// fit in its byte budget, and eviction uses best-fit-decreasing bin
// packing rather than a fixed number of slots. It underlies the OMAP's
// value storage, where serialized values vary in length.
type FlexORAM struct {
	mu         sync.Mutex
	pageBudget int // usable plaintext bytes per page, after the 2-byte occupancy count
	tree       *ORAMTree
	loadFactor float64

	stashMu   sync.Mutex
	stash     map[BlockID]flexEntry
	stashSize int
}

// NewFlexORAM creates an empty FlexORAM whose pages are pageBudget
// plaintext bytes (a 2-byte record count followed by up to
// pageBudget-2 bytes of packed records), bounded by topVecMaxSize the
// way ORAMTree requires, rescaling at the package default load factor.
func NewFlexORAM(pageBudget, topVecMaxSize int) *FlexORAM {
	return NewFlexORAMWithLoadFactor(pageBudget, topVecMaxSize, FlexStashLoadFactor)
}

// NewFlexORAMWithLoadFactor is NewFlexORAM with an explicit rescale
// threshold, used by callers threading a Config through (Db, Omap).
func NewFlexORAMWithLoadFactor(pageBudget, topVecMaxSize int, loadFactor float64) *FlexORAM {
	return NewFlexORAMWithStorage(pageBudget, topVecMaxSize, loadFactor, MemStorageFactory)
}

// NewFlexORAMWithStorage is NewFlexORAMWithLoadFactor with an explicit
// backend for the tree's segments, used by callers threading a Config
// through (Db, Omap) to select file-backed storage.
func NewFlexORAMWithStorage(pageBudget, topVecMaxSize int, loadFactor float64, newStorage StorageFactory) *FlexORAM {
	return &FlexORAM{
		pageBudget: pageBudget - 2,
		tree:       NewORAMTreeWithStorage(pageBudget, topVecMaxSize, newStorage),
		loadFactor: loadFactor,
		stash:      make(map[BlockID]flexEntry),
	}
}

// RandomPath returns a uniformly random leaf path index for the tree's
// current leaf-layer capacity.
func (f *FlexORAM) RandomPath() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return rand.IntN(f.tree.layers[0].Capacity())
}

func (f *FlexORAM) stashPut(e flexEntry) {
	f.stashMu.Lock()
	if _, exists := f.stash[e.id]; !exists {
		f.stashSize++
	}
	f.stash[e.id] = e
	f.stashMu.Unlock()
}

func (f *FlexORAM) stashRemove(id BlockID) {
	f.stashMu.Lock()
	if _, ok := f.stash[id]; ok {
		delete(f.stash, id)
		f.stashSize--
	}
	f.stashMu.Unlock()
}

func (f *FlexORAM) stashSnapshot() []flexEntry {
	f.stashMu.Lock()
	defer f.stashMu.Unlock()
	out := make([]flexEntry, 0, len(f.stash))
	for _, e := range f.stash {
		out = append(out, e)
	}
	return out
}

func (f *FlexORAM) encodePage(entries []flexEntry) []byte {
	out := make([]byte, f.pageBudget+2)
	binary.LittleEndian.PutUint16(out[:2], uint16(len(entries)))
	off := 2
	for _, e := range entries {
		copy(out[off:], encodeBlockID(e.id))
		putUint64(out[off+blockIDSize:], uint64(e.path))
		binary.LittleEndian.PutUint16(out[off+blockIDSize+8:], uint16(len(e.data)))
		copy(out[off+flexHeaderSize:], e.data)
		off += flexHeaderSize + len(e.data)
	}
	if off > len(out) {
		panic(ErrRecordTooLarge)
	}
	return out
}

func (f *FlexORAM) decodePage(raw []byte) []flexEntry {
	count := int(binary.LittleEndian.Uint16(raw[:2]))
	entries := make([]flexEntry, 0, count)
	off := 2
	for i := 0; i < count; i++ {
		id := decodeBlockID(raw[off : off+blockIDSize])
		path := int(getUint64(raw[off+blockIDSize:]))
		length := int(binary.LittleEndian.Uint16(raw[off+blockIDSize+8:]))
		data := make([]byte, length)
		copy(data, raw[off+flexHeaderSize:off+flexHeaderSize+length])
		entries = append(entries, flexEntry{id: id, path: path, data: data})
		off += flexHeaderSize + length
	}
	return entries
}

// Read fetches the value stored under id, known to live on pathIdx,
// and re-assigns it to newPath.
func (f *FlexORAM) Read(id BlockID, pathIdx, newPath int) ([]byte, bool) {
	return f.access(id, pathIdx, newPath, false, nil, false)
}

// Write stores value under id on pathIdx, re-assigning it to newPath.
func (f *FlexORAM) Write(id BlockID, pathIdx, newPath int, value []byte) {
	f.access(id, pathIdx, newPath, true, value, false)
}

// Remove deletes id from the store entirely: it is located on pathIdx
// like any other access, but not re-stashed afterward.
func (f *FlexORAM) Remove(id BlockID, pathIdx int) ([]byte, bool) {
	return f.access(id, pathIdx, 0, false, nil, true)
}

func (f *FlexORAM) access(id BlockID, pathIdx, newPath int, write bool, value []byte, remove bool) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maybeScale()

	pathValues, caps := f.tree.ReadPath(pathIdx)
	logSizes := LayerLogSizes(caps)

	var found []byte
	var ok bool
	for _, raw := range pathValues {
		for _, e := range f.decodePage(raw) {
			if e.id == id {
				found, ok = e.data, true
				continue
			}
			f.stashPut(e)
		}
	}
	if !ok {
		f.stashMu.Lock()
		if e, inStash := f.stash[id]; inStash {
			found, ok = e.data, true
		}
		f.stashMu.Unlock()
		if ok {
			f.stashRemove(id)
		}
	}

	if write {
		found, ok = value, true
	}
	if ok && !remove {
		f.stashPut(flexEntry{id: id, path: newPath, data: found})
	}

	f.evictOnto(pathIdx, logSizes)
	return found, ok
}

func (f *FlexORAM) maybeScale() {
	if f.stashSize == 0 {
		return
	}
	total := f.tree.TotalSize() * (f.pageBudget / (flexHeaderSize + 1))
	if total == 0 || float64(f.stashSize)/float64(total) >= f.loadFactor {
		f.tree.Scale(4)
	}
}

// evictOnto performs top-down, best-fit-decreasing eviction: at
// each layer from the leaf toward the root (dst = 0..L-1), stash
// entries eligible for that layer are sorted descending by serialized
// length (ties broken toward the most depth-constrained entries) and
// packed into the page greedily, largest first, skipping any that no
// longer fit — the standard best-fit-decreasing bin-packing
// heuristic, applied per layer instead of per bin.
func (f *FlexORAM) evictOnto(pathIdx int, logSizes []uint8) {
	numLayers := len(logSizes)
	pool := f.stashSnapshot()
	minLayer := make([]uint8, len(pool))
	for i, e := range pool {
		minLayer[i] = CalcDeepest(e.path, pathIdx, logSizes)
	}
	placed := make([]bool, len(pool))

	newPages := make([][]byte, numLayers)
	for layer := 0; layer < numLayers; layer++ {
		type cand struct {
			idx  int
			size int
			ml   uint8
		}
		var eligible []cand
		for i := range pool {
			if placed[i] || int(minLayer[i]) > layer {
				continue
			}
			eligible = append(eligible, cand{i, pool[i].wireSize(), minLayer[i]})
		}
		sort.Slice(eligible, func(a, b int) bool {
			if eligible[a].size != eligible[b].size {
				return eligible[a].size > eligible[b].size
			}
			return eligible[a].ml > eligible[b].ml
		})

		var page []flexEntry
		remaining := f.pageBudget
		for _, c := range eligible {
			if c.size <= remaining {
				page = append(page, pool[c.idx])
				placed[c.idx] = true
				remaining -= c.size
			}
		}
		newPages[layer] = f.encodePage(page)
	}

	for i, e := range pool {
		if placed[i] {
			f.stashRemove(e.id)
		}
	}
	f.tree.WritePath(pathIdx, newPages)
}

// StashLen reports the number of entries currently resident in the
// stash (diagnostic use only).
func (f *FlexORAM) StashLen() int {
	f.stashMu.Lock()
	defer f.stashMu.Unlock()
	return len(f.stash)
}
