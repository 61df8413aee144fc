package obliviousdb

import "encoding/binary"

// Codec describes how a fixed-record ORAM serializes its value type to
// and from a fixed number of plaintext bytes. FixORAM and RecOramPosMap
// are generic over T but the lower layers (EncryptedVector,
// SegmentedVector, ORAMTree) only ever see bytes, so every concrete
// instantiation supplies one of these.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) T
	Size() int
}

// blockIDSize is the wire size of a BlockID: two little-endian int64s.
const blockIDSize = 16

func encodeBlockID(id BlockID) []byte {
	b := make([]byte, blockIDSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(id.PageIdx))
	binary.LittleEndian.PutUint64(b[8:16], uint64(id.UID))
	return b
}

func decodeBlockID(b []byte) BlockID {
	return BlockID{
		PageIdx: int(int64(binary.LittleEndian.Uint64(b[0:8]))),
		UID:     int(int64(binary.LittleEndian.Uint64(b[8:16]))),
	}
}

// Uint64Codec is a Codec for plain uint64 values, used by tests and by
// any FixORAM instantiated over bare counters or identifiers.
type Uint64Codec struct{}

func (Uint64Codec) Encode(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func (Uint64Codec) Decode(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func (Uint64Codec) Size() int { return 8 }

// IntCodec is a Codec for plain int values (stored as a little-endian
// int64), used for the OMAP's key-to-index cuckoo table.
type IntCodec struct{}

func (IntCodec) Encode(v int) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func (IntCodec) Decode(b []byte) int {
	return int(binary.LittleEndian.Uint64(b))
}

func (IntCodec) Size() int { return 8 }
