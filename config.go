package obliviousdb

// Config holds tunable store-wide parameters, adapted from the
// reference design's PathORAM configuration to this store's own
// knobs: instead of a fixed block/bucket/stash geometry, growth is
// driven by load factors and the ORAM trees scale themselves, so
// Config only needs to expose the thresholds that actually vary
// between deployments.
type Config struct {
	// TopVecMaxSize bounds an ORAM tree's root layer before a new,
	// smaller layer is appended above it. Zero selects MaxCacheSize.
	TopVecMaxSize int

	// FixStashLoadFactor is the load factor above which a FixORAM
	// triggers a tree rescale. Zero selects the package default.
	FixStashLoadFactor float64

	// FlexStashLoadFactor is the analogous threshold for FlexORAM.
	// Zero selects the package default.
	FlexStashLoadFactor float64

	// CuckooMaxIter bounds cuckoo eviction rounds before falling
	// through to the stash. Zero selects the package default.
	CuckooMaxIter int

	// DataDir, if non-empty, backs every segment with its own
	// directio-based file under this directory instead of memory.
	// Empty selects the in-memory backend.
	DataDir string
}

// Validate checks the configuration and returns a copy with defaults
// applied for any zero-valued field.
func (c Config) Validate() (Config, error) {
	if c.TopVecMaxSize < 0 || c.FixStashLoadFactor < 0 || c.FlexStashLoadFactor < 0 || c.CuckooMaxIter < 0 {
		return c, ErrInvalidConfig
	}
	if c.TopVecMaxSize == 0 {
		c.TopVecMaxSize = MaxCacheSize
	}
	if c.FixStashLoadFactor == 0 {
		c.FixStashLoadFactor = FixStashLoadFactor
	}
	if c.FlexStashLoadFactor == 0 {
		c.FlexStashLoadFactor = FlexStashLoadFactor
	}
	if c.CuckooMaxIter == 0 {
		c.CuckooMaxIter = CuckooMaxIter
	}
	return c, nil
}
