package obliviousdb

import "errors"

// Fatal errors abort the in-flight operation. They are returned rather
// than panicked where the caller can plausibly recover (bad config,
// out-of-range index); true programmer-contract violations (a record
// that doesn't fit a page) panic
// instead, since salvaging a partially-executed oblivious access would
// leak which path was touched.
var (
	ErrInvalidConfig    = errors.New("obliviousdb: invalid configuration")
	ErrDecryptionFailed = errors.New("obliviousdb: page decryption failed")
	ErrEncryptionFailed = errors.New("obliviousdb: page encryption failed")
	ErrRecordTooLarge   = errors.New("obliviousdb: record exceeds page buffer capacity")
	ErrBlockOutOfRange  = errors.New("obliviousdb: block index out of range")
)
