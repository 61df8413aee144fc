package obliviousdb

import "sync"

// LinearOram is a non-oblivious reference map used only as a test
// oracle: it implements the same Insert/Get/Remove surface as Omap
// over a plain Go map, so a workload can be run against both and
// diffed for correctness without either implementation trusting the
// other. Grounded on the reference design's own linear-scan baseline,
// kept around there for exactly the same purpose.
type LinearOram struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewLinearOram creates an empty LinearOram.
func NewLinearOram() *LinearOram {
	return &LinearOram{data: make(map[string][]byte)}
}

// Get returns the value stored under key, if present.
func (l *LinearOram) Get(key []byte) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.data[string(key)]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Insert stores value under key, overwriting any existing value.
func (l *LinearOram) Insert(key, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	l.data[string(key)] = v
}

// Remove deletes key, reporting whether it was present.
func (l *LinearOram) Remove(key []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.data[string(key)]
	delete(l.data, string(key))
	return ok
}

// Len returns the number of keys currently stored.
func (l *LinearOram) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}
