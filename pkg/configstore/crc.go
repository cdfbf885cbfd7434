package configstore

import "hash/crc32"

// crcSeed is the initial register value for addCRC, and also the CRC of an
// empty span: CRC(nil, crcSeed) == crcSeed.
const crcSeed uint32 = 0xFFFFFFFF

// addCRC folds data into a running CRC-32 register using the reflected
// polynomial 0xEDB88320 (the same polynomial as crc32.IEEE), with no final
// bit inversion. This is the folding primitive the file header's CRC is
// built from: crc(a || b) == addCRC(crc(a), b).
//
// hash/crc32's exported Update inverts its seed on entry and its result on
// exit (so that repeated Update calls compose into the conventional,
// finalized IEEE checksum). We want the raw, un-finalized register instead,
// so we invert the seed going in and invert the result coming back out,
// which cancels Update's internal inversions and leaves the bare register.
func addCRC(seed uint32, data []byte) uint32 {
	return ^crc32.Update(^seed, crc32.IEEETable, data)
}

// crcOf computes the CRC-32 of data as a standalone span, seeded with
// crcSeed.
func crcOf(data []byte) uint32 {
	return addCRC(crcSeed, data)
}
