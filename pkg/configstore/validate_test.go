package configstore

import "testing"

func TestValidate_TooShort(t *testing.T) {
	t.Parallel()

	if got := Validate(make([]byte, FileHeaderSize-1)); got != 0 {
		t.Fatalf("Validate(short buffer) = %d, want 0", got)
	}
}

func TestValidate_EmptyStoreRoundTrips(t *testing.T) {
	t.Parallel()

	buf := newEmptyImage()
	finalizeHeader(buf)

	got := Validate(buf)
	if got != len(buf) {
		t.Fatalf("Validate(empty store) = %d, want %d", got, len(buf))
	}
}

func TestValidate_BadSignatureRejected(t *testing.T) {
	t.Parallel()

	buf := newEmptyImage()
	finalizeHeader(buf)
	buf[offSignature] ^= 0xFF

	if got := Validate(buf); got != 0 {
		t.Fatalf("Validate(bad signature) = %d, want 0", got)
	}
}

func TestValidate_BadVersionRejected(t *testing.T) {
	t.Parallel()

	buf := newEmptyImage()
	finalizeHeader(buf)
	buf[offVersion] = 0xFF

	if got := Validate(buf); got != 0 {
		t.Fatalf("Validate(bad version) = %d, want 0", got)
	}
}

func TestValidate_CorruptedCRCRejected(t *testing.T) {
	t.Parallel()

	buf := newEmptyImage()
	finalizeHeader(buf)
	buf[len(buf)-1] ^= 0xFF

	if got := Validate(buf); got != 0 {
		t.Fatalf("Validate(corrupted crc byte) = %d, want 0", got)
	}
}

func TestValidate_WithRecords(t *testing.T) {
	t.Parallel()

	s := &Store{buf: newEmptyImage(), maxSize: 1 << 20}

	pos, err := s.insert(s.end(), 10, 4)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := s.WriteValue(pos, 0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}

	if _, err := s.insert(s.end(), 11, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}

	finalizeHeader(s.buf)

	got := Validate(s.buf)
	if got != len(s.buf) {
		t.Fatalf("Validate(populated store) = %d, want %d", got, len(s.buf))
	}
}

func TestValidate_TornImageRejected(t *testing.T) {
	t.Parallel()

	s := &Store{buf: newEmptyImage(), maxSize: 1 << 20}

	if _, err := s.insert(s.end(), 10, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	finalizeHeader(s.buf)
	fullLen := len(s.buf)

	// Simulate a crash mid-write: only part of the second write landed.
	torn := append([]byte(nil), s.buf...)
	torn = torn[:fullLen-2]

	if got := Validate(torn); got != 0 {
		t.Fatalf("Validate(torn tail) = %d, want 0 (stale header claims a file_size the bytes don't support)", got)
	}
}

func TestValidate_TrailingGarbageIgnored(t *testing.T) {
	t.Parallel()

	s := &Store{buf: newEmptyImage(), maxSize: 1 << 20}

	if _, err := s.insert(s.end(), 10, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	finalizeHeader(s.buf)
	validLen := len(s.buf)

	withGarbage := append(append([]byte(nil), s.buf...), 0xDE, 0xAD, 0xBE, 0xEF)

	got := Validate(withGarbage)
	if got != validLen {
		t.Fatalf("Validate(trailing garbage) = %d, want %d", got, validLen)
	}
}
