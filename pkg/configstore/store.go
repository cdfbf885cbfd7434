package configstore

import (
	"fmt"
	"math"
)

// maxKvpSize is the largest value a record's size field can hold (the field
// is a uint16), and therefore the largest single record, header included.
const maxKvpSize = math.MaxUint16

// reserveCapacity grows the backing buffer so it can hold need bytes without
// further reallocation, preserving existing contents. It fails with
// ErrTooBig if need exceeds the store's configured max size.
//
// Growth reallocates to exactly need bytes (not a doubling growth factor):
// the store's size is bounded and callers are expected to size their
// records deliberately, not amortize append costs.
func (s *Store) reserveCapacity(need int) error {
	if need > s.maxSize {
		return fmt.Errorf("reserve %d bytes exceeds max size %d: %w", need, s.maxSize, ErrTooBig)
	}

	if need <= cap(s.buf) {
		return nil
	}

	grown := make([]byte, len(s.buf), need)
	copy(grown, s.buf)
	s.buf = grown

	return nil
}

// ReserveCapacity pre-grows the store's backing buffer to at least n bytes.
// Not required before inserting records, but can reduce reallocation and
// fragmentation for callers that know their working set size upfront.
func (s *Store) ReserveCapacity(n int) error {
	if !s.isOpen() {
		return ErrClosed
	}

	return s.reserveCapacity(n)
}

// begin returns the offset of the first record after the file header.
func (s *Store) begin() int {
	return next(s.buf, 0, len(s.buf))
}

// end returns the one-past-end sentinel offset.
func (s *Store) end() int {
	return len(s.buf)
}

// insert inserts a new record of the given key and value size at pos,
// shifting everything at and after pos to the right. The payload is left
// uninitialized. Returns the new store-end offset (s.end()) on failure to
// reserve capacity, matching the "returns end() on failure" cursor
// discipline used throughout the mutable store API.
func (s *Store) insert(pos int, key uint16, valueSize int) (int, error) {
	if valueSize < 0 || valueSize > maxKvpSize-kvpHeaderSize {
		return s.end(), fmt.Errorf("value size %d overflows record size field: %w", valueSize, ErrTooBig)
	}

	kvpLen := valueSize + kvpHeaderSize

	if err := s.reserveCapacity(len(s.buf) + kvpLen); err != nil {
		return s.end(), err
	}

	oldLen := len(s.buf)
	s.buf = s.buf[:oldLen+kvpLen]
	copy(s.buf[pos+kvpLen:], s.buf[pos:oldLen])
	putKvpHeader(s.buf, pos, key, uint16(kvpLen))

	return pos, nil
}

// erase removes the record at pos, shifting everything after it to the
// left. Returns the offset of the record now occupying pos (which may equal
// s.end() if the erased record was last).
func (s *Store) erase(pos int) int {
	size := int(kvpSize(s.buf, pos))
	copy(s.buf[pos:], s.buf[pos+size:])
	s.buf = s.buf[:len(s.buf)-size]

	return pos
}

// TryGet returns the offset of the first record with the given key, or
// false if no such record exists.
func (s *Store) TryGet(key uint16) (int, bool) {
	p, end := s.begin(), s.end()
	for p != end && kvpKey(s.buf, p) != key {
		p = next(s.buf, p, end)
	}

	return p, p != end
}

// NextInRange scans forward from prev (or from the beginning, if !hasPrev)
// for the next record whose key k satisfies first <= k < last and
// (k - first) mod step == 0. Returns (s.end(), false) if none match, or if
// step < 1.
func (s *Store) NextInRange(prev int, hasPrev bool, first, last, step uint16) (int, bool) {
	end := s.end()

	if step < 1 {
		return end, false
	}

	var p int
	if hasPrev {
		p = next(s.buf, prev, end)
	} else {
		p = s.begin()
	}

	for p != end {
		if inRange(kvpKey(s.buf, p), first, last, step) {
			return p, true
		}
		p = next(s.buf, p, end)
	}

	return end, false
}

// EraseKeysInRange removes every record whose key matches the given
// range/step predicate. Rejects first > last or step < 1 with ErrInvalid.
func (s *Store) EraseKeysInRange(first, last, step uint16) error {
	if first > last || step < 1 {
		return fmt.Errorf("invalid range [%d, %d) step %d: %w", first, last, step, ErrInvalid)
	}

	p, end := s.begin(), s.end()
	for p != end {
		if inRange(kvpKey(s.buf, p), first, last, step) {
			p = s.erase(p)
			end = s.end()
		} else {
			p = next(s.buf, p, end)
		}
	}

	return nil
}

func inRange(k, first, last, step uint16) bool {
	return k >= first && k < last && (k-first)%step == 0
}

// PutUnique ensures exactly one record with the given key and size exists,
// writing data (if non-nil) into its payload. Any existing record with the
// key but a different size is erased before the new one is inserted; any
// further duplicates of the key found after the retained (or newly
// inserted) record are erased defensively.
func (s *Store) PutUnique(key uint16, data []byte, valueSize int) (int, error) {
	if valueSize < 0 || valueSize > maxKvpSize-kvpHeaderSize {
		return s.end(), fmt.Errorf("value size %d overflows record size field: %w", valueSize, ErrTooBig)
	}

	wantSize := uint16(valueSize + kvpHeaderSize)

	p, end := s.begin(), s.end()
	found := false

	for {
		p, end = s.findFrom(p, key)
		if p == end {
			break
		}

		if kvpSize(s.buf, p) != wantSize {
			p = s.erase(p)
			end = s.end()
			continue
		}

		// Found a record with the right key and size. Erase any further
		// duplicates of key after it, defensively.
		dup := next(s.buf, p, end)
		for {
			dup, end = s.findFrom(dup, key)
			if dup == end {
				break
			}
			dup = s.erase(dup)
			end = s.end()
		}

		found = true

		break
	}

	if !found {
		var err error

		p, err = s.insert(s.end(), key, valueSize)
		if err != nil {
			return s.end(), err
		}
	}

	if data != nil {
		if err := s.WriteValue(p, 0, data); err != nil {
			return s.end(), err
		}
	}

	return p, nil
}

// findFrom scans from p (inclusive) for the next record with the given key,
// returning (match, end) or (end, end) if none is found.
func (s *Store) findFrom(p int, key uint16) (int, int) {
	end := s.end()
	for p != end && kvpKey(s.buf, p) != key {
		p = next(s.buf, p, end)
	}

	return p, end
}

// AllocUnique finds the first key k in first, first+step, first+2*step, ...
// (while k < last) that is absent from the store, inserts a record of
// (k, valueSize) at the end, and returns it. Fails with ErrNotFound if the
// range is exhausted or the increment overflows uint16 before a free key is
// found.
func (s *Store) AllocUnique(first, last uint16, valueSize int, step uint16) (int, error) {
	if step < 1 {
		return s.end(), fmt.Errorf("step must be >= 1: %w", ErrInvalid)
	}

	k := first

	for k < last {
		if _, ok := s.TryGet(k); !ok {
			return s.insert(s.end(), k, valueSize)
		}

		next32 := uint32(k) + uint32(step)
		if next32 > math.MaxUint16 {
			return s.end(), fmt.Errorf("key increment overflows: %w", ErrNotFound)
		}

		k = uint16(next32)
	}

	return s.end(), fmt.Errorf("no free key in [%d, %d): %w", first, last, ErrNotFound)
}

// WriteValue writes data into the payload of the record at cursor,
// starting at offset, then zero-fills the remainder of the payload past
// offset+len(data). This "write-and-clear-tail" behavior means writes past
// the written region are clobbered; callers must write the full payload in
// one call, or reconstruct it themselves before writing partial updates.
func (s *Store) WriteValue(cursor, offset int, data []byte) error {
	payloadSize := int(kvpSize(s.buf, cursor)) - kvpHeaderSize

	last := offset + len(data)
	if last > payloadSize {
		return fmt.Errorf("write [%d, %d) exceeds payload size %d: %w", offset, last, payloadSize, ErrTooBig)
	}

	base := cursor + kvpHeaderSize
	copy(s.buf[base+offset:base+last], data)

	for i := base + last; i < base+payloadSize; i++ {
		s.buf[i] = 0
	}

	return nil
}

// Payload returns the payload bytes of the record at cursor. The returned
// slice aliases the store's internal buffer and is only valid until the
// next mutating operation.
func (s *Store) Payload(cursor int) []byte {
	size := int(kvpSize(s.buf, cursor))

	return s.buf[cursor+kvpHeaderSize : cursor+size]
}

// Key returns the key of the record at cursor.
func (s *Store) Key(cursor int) uint16 {
	return kvpKey(s.buf, cursor)
}

// Size returns the full size (header included) of the record at cursor.
func (s *Store) Size(cursor int) int {
	return int(kvpSize(s.buf, cursor))
}

// Begin returns the offset of the first record after the file header.
func (s *Store) Begin() int { return s.begin() }

// End returns the one-past-end sentinel offset.
func (s *Store) End() int { return s.end() }

// Next advances cursor to the next record boundary.
func (s *Store) Next(cursor int) int {
	return next(s.buf, cursor, s.end())
}
