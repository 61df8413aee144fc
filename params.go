package obliviousdb

// Tunable constants for the oblivious store. Defaults match the
// reference design: a 2 KiB page, a 32-byte AEAD key, a 4096-entry
// minimum segment, and a 64K-entry top-layer cache bound.
const (
	// PageSize is the fixed on-wire size of a page, in bytes.
	PageSize = 2048

	// KeySize is the size, in bytes, of an AEAD key.
	KeySize = 32

	// MinSegmentSize is the capacity of segment 0 of every SegmentedVector.
	// Must be a power of two.
	MinSegmentSize = 4096

	// MaxCacheSize bounds the capacity of the ORAM tree's top (root) layer
	// before a new, smaller layer is appended above it.
	MaxCacheSize = 65536

	// EncryptFlag toggles AEAD sealing of pages. Disabling it is only ever
	// useful for microbenchmarking the non-cryptographic overhead; it must
	// never be false when the store holds real data.
	EncryptFlag = true

	// FixStashLoadFactor is the load factor above which FixORAM triggers a
	// tree rescale.
	FixStashLoadFactor = 0.7

	// FlexStashLoadFactor is the analogous threshold for FlexORAM.
	FlexStashLoadFactor = 0.5

	// CuckooMaxIter bounds the number of eviction rounds a cuckoo insert
	// attempts before falling through to the full-bucket stash.
	CuckooMaxIter = 10

	// nonceSize is the AEAD nonce length: a little-endian page version
	// counter followed by eight zero bytes.
	nonceSize = 12

	// gcmTagSize is the AES-GCM authentication tag length.
	gcmTagSize = 16

	// lengthPrefixSize is the 2-byte plaintext-length header on every page.
	lengthPrefixSize = 2
)

// BufferSize is the usable plaintext capacity of a page once the length
// prefix and AEAD overhead (nonce is derived, not stored; only the tag
// costs space) are removed.
const BufferSize = PageSize - lengthPrefixSize - gcmTagSize
