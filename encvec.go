package obliviousdb

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
)

// EncryptedVector is a fixed-size array of AEAD-sealed pages over a
// BlockStorage handle. Every slot holds the same fixed-size
// plaintext record (recordSize bytes); at rest a page is a 2-byte
// little-endian plaintext length, an AES-256-GCM ciphertext including
// tag, then zero padding out to PageSize. The AEAD key lives only in
// memory, never persisted.
type EncryptedVector struct {
	store      BlockStorage
	size       int
	aead       cipher.AEAD
	recordSize int
}

// NewEncryptedVector creates an EncryptedVector of the given size and
// per-slot plaintext record size, backed by store and sealed with a
// fresh AES-256-GCM instance keyed by key. It panics if recordSize
// cannot fit in a page once AEAD overhead is accounted for.
func NewEncryptedVector(store BlockStorage, size, recordSize int, key *[KeySize]byte) *EncryptedVector {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic("obliviousdb: aes.NewCipher: " + err.Error())
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic("obliviousdb: cipher.NewGCM: " + err.Error())
	}
	if recordSize > BufferSize {
		panic(ErrRecordTooLarge)
	}
	return &EncryptedVector{store: store, size: size, aead: aead, recordSize: recordSize}
}

// nonceFor derives the 12-byte AEAD nonce from a write counter: the
// counter little-endian, followed by eight zero bytes. Associated
// data is empty.
func nonceFor(counter uint32) []byte {
	n := make([]byte, nonceSize)
	binary.LittleEndian.PutUint32(n[:4], counter)
	return n
}

// Get decrypts and returns the recordSize-byte plaintext stored at
// index, using nonceCounter as the write counter that produced it. A
// never-written page returns recordSize zero bytes.
func (v *EncryptedVector) Get(index int, nonceCounter uint32) []byte {
	out := make([]byte, v.recordSize)
	if index < 0 || index >= v.size {
		return out
	}
	page := make([]byte, PageSize)
	if err := v.store.Read(index, page); err != nil {
		panic("obliviousdb: block read failed: " + err.Error())
	}
	length := int(binary.LittleEndian.Uint16(page[:lengthPrefixSize]))
	if length == 0 {
		return out
	}
	ciphertext := page[lengthPrefixSize : lengthPrefixSize+length]
	if !EncryptFlag {
		copy(out, ciphertext)
		return out
	}
	plaintext, err := v.aead.Open(out[:0], nonceFor(nonceCounter), ciphertext, nil)
	if err != nil {
		panic(ErrDecryptionFailed)
	}
	return plaintext
}

// Put encrypts value (must be recordSize bytes) and writes it to index
// under nonceCounter.
func (v *EncryptedVector) Put(index int, value []byte, nonceCounter uint32) {
	if index < 0 || index >= v.size {
		return
	}
	if len(value) != v.recordSize {
		panic("obliviousdb: value does not match configured record size")
	}
	page := make([]byte, PageSize)
	if EncryptFlag {
		ciphertext := v.aead.Seal(nil, nonceFor(nonceCounter), value, nil)
		if lengthPrefixSize+len(ciphertext) > PageSize {
			panic(ErrEncryptionFailed)
		}
		binary.LittleEndian.PutUint16(page[:lengthPrefixSize], uint16(len(ciphertext)))
		copy(page[lengthPrefixSize:], ciphertext)
	} else {
		binary.LittleEndian.PutUint16(page[:lengthPrefixSize], uint16(len(value)))
		copy(page[lengthPrefixSize:], value)
	}
	if err := v.store.Write(index, page); err != nil {
		panic("obliviousdb: block write failed: " + err.Error())
	}
}

// RawGet returns the undecrypted page bytes at index, used to relocate
// still-encrypted data under its original nonce during a fork.
func (v *EncryptedVector) RawGet(index int) []byte {
	page := make([]byte, PageSize)
	if err := v.store.Read(index, page); err != nil {
		panic("obliviousdb: block read failed: " + err.Error())
	}
	return page
}

// RawPut writes raw (already-encrypted) page bytes to index without
// touching the cipher.
func (v *EncryptedVector) RawPut(index int, raw []byte) {
	if err := v.store.Write(index, raw); err != nil {
		panic("obliviousdb: block write failed: " + err.Error())
	}
}

// Size returns the number of page slots in this vector.
func (v *EncryptedVector) Size() int {
	return v.size
}

// randomKey returns a fresh, cryptographically random AEAD key.
func randomKey() *[KeySize]byte {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return &key
}
