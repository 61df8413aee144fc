package obliviousdb

import "sync"

// Db is the external interface to the oblivious key/value store:
// a single process-wide mutex around an Omap, matching the reference
// design's choice to serialize all operations rather than expose any
// finer-grained concurrency at the top level (every layer underneath
// already protects itself, but callers get a simple, linearizable API
// here).
type Db struct {
	mu sync.Mutex
	m  *Omap
}

// New creates an empty Db with default Config.
func New() *Db {
	return &Db{m: NewOmap()}
}

// NewWithConfig validates cfg, applies defaults for any zero-valued
// field, and creates an empty Db whose component engines (the value
// FlexORAM, the recursive position map's FixORAM levels, and the
// cuckoo key index) all use the resulting thresholds in place of the
// package defaults in params.go, and all share cfg.DataDir's storage
// backend.
func NewWithConfig(cfg Config) (*Db, error) {
	validated, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &Db{m: NewOmapWithConfig(validated)}, nil
}

// Get returns the value stored under key, if present.
func (d *Db) Get(key []byte) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m.Get(key)
}

// Insert stores value under key, overwriting any existing value.
func (d *Db) Insert(key, value []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m.Insert(key, value)
}

// Remove deletes key, reporting whether it was present.
func (d *Db) Remove(key []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m.Remove(key)
}

// Len returns the number of keys currently stored.
func (d *Db) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.m.Len()
}

// MetaState is a diagnostic snapshot of the store's internal shape,
// useful for tests and operators who want to see how far the ORAM
// trees have scaled without touching any plaintext.
type MetaState struct {
	Keys            int
	KeyIndexEntries int
	ValueTreeLayers int
	ValueTreeSize   int
	ValueStashLen   int
}

// PrintMetaState returns a snapshot of the store's internal shape.
// Named PrintMetaState for parity with the reference design's
// diagnostic dump, even though it returns a struct rather than
// printing: callers that want text can fmt.Printf it themselves.
func (d *Db) PrintMetaState() MetaState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return MetaState{
		Keys:            d.m.keyIdx.Len(),
		KeyIndexEntries: d.m.nextIdx,
		ValueTreeLayers: d.m.values.tree.NumLayers(),
		ValueTreeSize:   d.m.values.tree.TotalSize(),
		ValueStashLen:   d.m.values.StashLen(),
	}
}
