package configstore

import (
	"bytes"
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/configstore/pkg/fs"
)

// Commit recomputes the file header (file_size and crc) and persists the
// store's current contents to disk.
//
// In ReplicaNone mode this overwrites the store's own file in place:
// write, truncate, fsync. A crash after the write but before the truncate
// leaves the new image followed by stale bytes; the next Open accepts the
// validated prefix and, when writable, truncates the file back to it (see
// Validate). A crash during the write itself can leave an image that fails
// validation.
//
// In ReplicaSwap mode the full image is written to a replica file (the
// primary path plus ".tmp"), fsynced, then atomically renamed over the
// primary. A crash before the rename leaves the primary untouched and the
// replica is removed by the next writable swap-mode Open; a crash after the
// rename is indistinguishable from a successful commit. Because the rename replaces the file out from
// under the held lock, Commit always closes the store afterward in swap
// mode — callers must Open again to continue.
func (s *Store) Commit() error {
	if !s.isOpen() {
		return ErrClosed
	}

	if !s.writable {
		return fmt.Errorf("commit on read-only store: %w", ErrInvalid)
	}

	finalizeHeader(s.buf)

	switch s.replica {
	case ReplicaSwap:
		return s.commitSwap()
	default:
		return s.commitInPlace()
	}
}

// finalizeHeader stamps the current buffer length into the header's
// file_size field and recomputes its crc over everything past the header.
func finalizeHeader(buf []byte) {
	putUint32(buf, offFileSize, uint32(len(buf)))
	putUint32(buf, offCRC, crcOf(buf[FileHeaderSize:]))
}

func (s *Store) commitInPlace() error {
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek: %w: %w", err, ErrIO)
	}

	// Write before truncating. On a shrinking commit the reverse order has
	// a crash window where the file is already short but still carries the
	// old header's larger file_size, which Validate rejects outright; with
	// write-then-truncate a crash leaves a recoverable torn tail instead.
	if _, err := s.file.Write(s.buf); err != nil {
		return fmt.Errorf("write: %w: %w", err, ErrIO)
	}

	if err := s.file.Truncate(int64(len(s.buf))); err != nil {
		return fmt.Errorf("truncate: %w: %w", err, ErrIO)
	}

	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("fsync: %w: %w", err, ErrIO)
	}

	return nil
}

func (s *Store) commitSwap() error {
	replica := replicaPath(s.path)

	writer := fs.NewAtomicWriter(s.fsys)
	if err := writer.Write(replica, bytes.NewReader(s.buf), fs.AtomicWriteOptions{SyncDir: true, Perm: filePerm}); err != nil {
		return fmt.Errorf("write replica %s: %w: %w", replica, err, ErrIO)
	}

	if err := atomic.ReplaceFile(replica, s.path); err != nil {
		return fmt.Errorf("swap replica into %s: %w: %w", s.path, err, ErrIO)
	}

	// The rename invalidated our lock on the old inode; the descriptor no
	// longer refers to the file at s.path. Close rather than pretend this
	// handle remains usable.
	return s.Close()
}

// Close releases the store's lock and underlying file descriptor. It is
// safe to call more than once.
func (s *Store) Close() error {
	if !s.isOpen() {
		return nil
	}

	lockErr := flockRelease(int(s.file.Fd()))
	closeErr := s.file.Close()

	*s = Store{}

	if closeErr != nil {
		return fmt.Errorf("close: %w: %w", closeErr, ErrIO)
	}

	if lockErr != nil {
		return fmt.Errorf("unlock: %w: %w", lockErr, ErrIO)
	}

	return nil
}
