package obliviousdb

import (
	"os"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/google/uuid"
	"github.com/ncw/directio"
)

// BlockStorage is the untrusted, fixed-size page I/O contract every
// EncryptedVector is built on. Implementations never interpret
// page contents; they just move PageSize-byte buffers to and from a
// block index. Every error from a BlockStorage is fatal to the
// in-flight oblivious operation: the access pattern is already
// committed to by the sequence of block indices chosen, so a partial
// failure cannot be salvaged without leaking which path was touched.
type BlockStorage interface {
	// Read fills buf (len(buf) == PageSize) with the contents of block
	// blockIdx.
	Read(blockIdx int, buf []byte) error

	// Write persists buf (len(buf) == PageSize) as block blockIdx.
	Write(blockIdx int, buf []byte) error

	// Close releases the backing resource. File-backed implementations
	// unlink their file; in-memory implementations are a no-op.
	Close() error
}

// StorageFactory allocates a fresh BlockStorage with room for
// totalPages pages. SegmentedVector and everything built on it take a
// StorageFactory instead of constructing a backend directly, so a
// single Config knob picks the backend for an entire store.
type StorageFactory func(totalPages int) (BlockStorage, error)

// MemStorageFactory is the default StorageFactory: every segment lives
// entirely in memory, via MemBlockStorage.
func MemStorageFactory(totalPages int) (BlockStorage, error) {
	return NewMemBlockStorage(totalPages)
}

// FileStorageFactory returns a StorageFactory whose segments are each
// backed by their own FileBlockStorage file under dir.
func FileStorageFactory(dir string) StorageFactory {
	return func(totalPages int) (BlockStorage, error) {
		return NewFileBlockStorage(dir, totalPages)
	}
}

// MemBlockStorage is a synchronous, RWMutex-protected in-memory
// BlockStorage backed by a single contiguous buffer via
// github.com/dsnet/golib/memfile. It is the default backend (via
// MemStorageFactory) for every segment of every layer unless
// Config.DataDir selects file-backed storage.
type MemBlockStorage struct {
	mu         sync.RWMutex
	buf        []byte
	file       *memfile.File
	totalPages int
}

// NewMemBlockStorage allocates an in-memory store with room for
// totalPages pages, all zero-initialized.
func NewMemBlockStorage(totalPages int) (*MemBlockStorage, error) {
	buf := make([]byte, totalPages*PageSize)
	return &MemBlockStorage{
		buf:        buf,
		file:       memfile.New(&buf),
		totalPages: totalPages,
	}, nil
}

func (s *MemBlockStorage) Read(blockIdx int, buf []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.file.ReadAt(buf, int64(blockIdx)*PageSize)
	return err
}

func (s *MemBlockStorage) Write(blockIdx int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.file.WriteAt(buf, int64(blockIdx)*PageSize)
	return err
}

func (s *MemBlockStorage) Close() error {
	return nil
}

// FileBlockStorage is a file-backed BlockStorage using unbuffered,
// aligned I/O (github.com/ncw/directio) at offset block_idx * PageSize,
// matching the reference design's pwrite/pread contract. The backing
// file is created under a random name and unlinked when Close is
// called. SegmentedVector never calls Close on its segments' storage,
// so files created through FileStorageFactory remain on disk.
type FileBlockStorage struct {
	file       *os.File
	path       string
	totalPages int
}

// NewFileBlockStorage opens (creating if necessary) a page file under
// dir sized to hold totalPages pages.
func NewFileBlockStorage(dir string, totalPages int) (*FileBlockStorage, error) {
	path := dir + "/obliviousdb-" + uuid.NewString() + ".page"
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalPages) * PageSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &FileBlockStorage{file: f, path: path, totalPages: totalPages}, nil
}

func (s *FileBlockStorage) Read(blockIdx int, buf []byte) error {
	if blockIdx < 0 || blockIdx >= s.totalPages {
		return ErrBlockOutOfRange
	}
	_, err := s.file.ReadAt(buf, int64(blockIdx)*PageSize)
	return err
}

func (s *FileBlockStorage) Write(blockIdx int, buf []byte) error {
	if blockIdx < 0 || blockIdx >= s.totalPages {
		return ErrBlockOutOfRange
	}
	_, err := s.file.WriteAt(buf, int64(blockIdx)*PageSize)
	return err
}

// Close closes and unlinks the backing file.
func (s *FileBlockStorage) Close() error {
	err := s.file.Close()
	_ = os.Remove(s.path)
	return err
}
