package configstore

import "encoding/binary"

// Validate parses a candidate store image and reports the length of its
// accepted prefix.
//
// It returns 0 if data is not a well-formed store. Otherwise it returns a
// value in [FileHeaderSize, len(data)]: the length of the valid image. Any
// bytes beyond that length are trailing garbage the caller may discard.
//
// Checks run in order; the first failure rejects the whole image:
//  1. len(data) >= FileHeaderSize.
//  2. The first record's key is FileHeaderKey and its size >= FileHeaderSize.
//  3. signature == 0xC6 and version == 0x00.
//  4. header.size <= file_size <= len(data).
//  5. CRC over [FileHeaderSize, file_size) matches the stored crc.
//  6. Walking records from just after the file header reaches exactly
//     file_size, with no intermediate record bearing FileHeaderKey.
func Validate(data []byte) int {
	n := len(data)
	if n < FileHeaderSize {
		return 0
	}

	if !canDereference(data, 0, n) {
		return 0
	}

	if kvpKey(data, 0) != FileHeaderKey || kvpSize(data, 0) < FileHeaderSize {
		return 0
	}

	if data[offSignature] != fileSignature || data[offVersion] != fileVersion {
		return 0
	}

	fileSize := binary.LittleEndian.Uint32(data[offFileSize:])
	crc := binary.LittleEndian.Uint32(data[offCRC:])

	if uint32(kvpSize(data, 0)) > fileSize || fileSize > uint32(n) {
		return 0
	}

	if crcOf(data[FileHeaderSize:fileSize]) != crc {
		return 0
	}

	end := int(fileSize)

	// Walk records starting just after the file header (which may be
	// larger than FileHeaderSize in a future version — advancing via next
	// rather than a hardcoded constant keeps this forward-compatible).
	p := next(data, 0, end)
	for p != end {
		if kvpKey(data, p) == FileHeaderKey {
			// The header key must only ever appear on the first record.
			return 0
		}
		p = next(data, p, end)
	}

	return end
}
