package configstore

import "encoding/binary"

// Key space partitioning.
const (
	// FileHeaderKey is the reserved key of the first record of every
	// well-formed store. It must never appear on any other record.
	FileHeaderKey uint16 = 0xFFFB

	// MaxUserKey is the highest key value available to callers.
	MaxUserKey uint16 = 0xFFFA

	// MinReservedKey is the first key value not available to callers: it
	// and every key above it are reserved (FileHeaderKey is the one in use).
	MinReservedKey uint16 = 0xFFFB

	// InvalidKey denotes "no key" / "invalid".
	InvalidKey uint16 = 0xFFFF
)

// kvpHeaderSize is the on-disk size of a record header: a 2-byte key
// followed by a 2-byte total-size field.
const kvpHeaderSize = 4

// FileHeaderSize is the fixed on-disk size of the file header record: its
// 4-byte KVP header, a 1-byte signature, a 1-byte version, a 4-byte
// file_size, and a 4-byte crc.
const FileHeaderSize = 14

// File header field offsets, relative to the start of the store image.
const (
	offKey       = 0
	offSize      = 2
	offSignature = 4
	offVersion   = 5
	offFileSize  = 6
	offCRC       = 10
)

const (
	fileSignature byte = 0xC6
	fileVersion   byte = 0x00
)

// putKvpHeader writes a record header (key, size) at buf[p:].
func putKvpHeader(buf []byte, p int, key, size uint16) {
	binary.LittleEndian.PutUint16(buf[p+offKey:], key)
	binary.LittleEndian.PutUint16(buf[p+offSize:], size)
}

// kvpKey reads the key field of the record at buf[p:].
func kvpKey(buf []byte, p int) uint16 {
	return binary.LittleEndian.Uint16(buf[p+offKey:])
}

// kvpSize reads the size field (total record length, header included) of
// the record at buf[p:].
func kvpSize(buf []byte, p int) uint16 {
	return binary.LittleEndian.Uint16(buf[p+offSize:])
}

// putUint32 writes a little-endian uint32 field at buf[offset:].
func putUint32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

// canDereference reports whether the record header at offset p can be read
// safely and whether its declared size fits within [p, pEnd): it requires
// p != pEnd, at least a full header's worth of bytes available,
// size >= kvpHeaderSize, and size no larger than the remaining span.
func canDereference(buf []byte, p, pEnd int) bool {
	if p == pEnd {
		return false
	}
	if pEnd-p < kvpHeaderSize {
		return false
	}
	size := kvpSize(buf, p)
	if size < kvpHeaderSize {
		return false
	}
	return int(size) <= pEnd-p
}

// fullSize returns the full size (header included) of the record at p, or
// the remaining distance to pEnd if the record cannot be dereferenced
// cleanly (a truncated or corrupt tail). Returns 0 if p == pEnd.
func fullSize(buf []byte, p, pEnd int) int {
	if p == pEnd {
		return 0
	}
	if canDereference(buf, p, pEnd) {
		return int(kvpSize(buf, p))
	}
	return pEnd - p
}

// next advances p by fullSize(p, pEnd) and clamps to pEnd if the result
// would otherwise land on a position that isn't itself dereferenceable.
// Starting from any valid p, repeated calls to next are guaranteed to
// terminate at exactly pEnd — the format is self-delimiting by the
// per-record size field, and traversal must never read past pEnd even over
// a truncated or corrupt tail.
func next(buf []byte, p, pEnd int) int {
	np := p + fullSize(buf, p, pEnd)
	if np != pEnd && !canDereference(buf, np, pEnd) {
		return pEnd
	}
	return np
}
