package configstore

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/configstore/pkg/fs"
)

// ReplicaType selects how Commit persists a store's contents.
type ReplicaType int

const (
	// ReplicaNone commits in place: the store's own file descriptor is
	// overwritten, then truncated and fsynced. A crash between the write
	// and the truncate leaves stale bytes after the valid image, which the
	// next writable Open truncates away (see Validate); a crash during the
	// write itself can leave an image that fails validation.
	ReplicaNone ReplicaType = iota

	// ReplicaSwap commits via a temporary replica file that is fsynced and
	// then atomically renamed over the primary path. The replica path is
	// always the primary path with ".tmp" appended; a writable Open in swap
	// mode removes any leftover replica from a prior crashed commit, while
	// a read-only Open leaves it in place.
	ReplicaSwap
)

// Options configures Open.
type Options struct {
	// Path is the store file's path.
	Path string

	// Flags are passed to os.OpenFile, e.g. os.O_RDWR|os.O_CREATE. Whether
	// the store is writable is derived from these flags. An empty (or newly
	// created) file is accepted only when both os.O_CREATE and os.O_TRUNC
	// are set; otherwise Open fails with ErrNotFound.
	Flags int

	// MaxSize is the largest the store's file is allowed to grow to, in
	// bytes, before the filesystem block-overhead adjustment (see
	// effectiveMaxSize). Read-only opens skip the adjustment and keep
	// MaxSize as given as the cap for in-memory growth.
	MaxSize int

	// Replica selects the commit strategy. Defaults to ReplicaNone.
	Replica ReplicaType

	// FS is the filesystem implementation to use. Defaults to [fs.NewReal]
	// when nil.
	FS fs.FS
}

// filePerm is the mode used when creating a new store file.
const filePerm = 0o644

// Store is a single open handle on a config store file: an in-memory
// mutable image of its contents, plus the open file descriptor and lock
// that back it.
//
// A Store is not safe for concurrent use by multiple goroutines.
type Store struct {
	fsys     fs.FS
	file     fs.File
	path     string
	buf      []byte
	maxSize  int
	writable bool
	replica  ReplicaType
}

func (s *Store) isOpen() bool {
	return s.file != nil
}

// Open opens or creates a store file at opts.Path and returns a ready
// Store.
func Open(opts Options) (*Store, error) {
	s := &Store{}
	if err := s.Open(opts); err != nil {
		return nil, err
	}

	return s, nil
}

// Open opens or creates a store file into s. It fails with ErrAlready if s
// is already open.
func (s *Store) Open(opts Options) error {
	if s.isOpen() {
		return ErrAlready
	}

	tmp := &Store{}
	if err := tmp.open(opts); err != nil {
		return err
	}

	s.adopt(tmp)

	return nil
}

// adopt transfers ownership of tmp's resources into s and resets tmp to a
// zero value, so that a deferred Close(tmp) becomes a no-op. Building in a
// temporary and moving on success keeps partially constructed state from
// ever being observable on the receiver.
func (s *Store) adopt(tmp *Store) {
	*s = *tmp
	*tmp = Store{}
}

func (s *Store) open(opts Options) error {
	if opts.Path == "" {
		return fmt.Errorf("empty path: %w", ErrInvalid)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	writable := opts.Flags&(os.O_WRONLY|os.O_RDWR) != 0

	f, err := fsys.OpenFile(opts.Path, opts.Flags, filePerm)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", opts.Path, err, ErrIO)
	}

	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	if err := flockAcquire(int(f.Fd()), writable); err != nil {
		return fmt.Errorf("lock %s: %w", opts.Path, err)
	}

	// Deviation from spec.md §4.5 step 2, which unlinks any leftover
	// replica unconditionally before the primary is opened: the unlink here
	// runs under the lock and only for writable opens. See DESIGN.md.
	if opts.Replica == ReplicaSwap && writable {
		if err := fsys.Remove(replicaPath(opts.Path)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove leftover replica: %w: %w", err, ErrIO)
		}
	}

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w: %w", opts.Path, err, ErrIO)
	}

	size := info.Size()

	var content []byte

	switch {
	case size == 0:
		if opts.Flags&os.O_CREATE == 0 || opts.Flags&os.O_TRUNC == 0 {
			return fmt.Errorf("empty file requires O_CREATE|O_TRUNC: %w", ErrNotFound)
		}

		content = newEmptyImage()
	case size < FileHeaderSize:
		return fmt.Errorf("file too small (%d bytes): %w", size, ErrRange)
	default:
		content, err = io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read %s: %w: %w", opts.Path, err, ErrIO)
		}

		validLen := Validate(content)
		if validLen == 0 {
			return fmt.Errorf("validate %s: %w", opts.Path, ErrCorrupt)
		}

		if validLen < len(content) {
			// A prior non-swap writer crashed after writing new content but
			// before shrinking the file to match. Swap-mode commits never
			// leave this state (the rename only ever exposes a complete
			// image), so reconciling here would be acting on a replica we
			// have no reason to distrust and no business touching.
			if writable && opts.Replica != ReplicaSwap {
				if err := f.Truncate(int64(validLen)); err != nil {
					return fmt.Errorf("truncate %s: %w: %w", opts.Path, err, ErrIO)
				}

				if err := f.Sync(); err != nil {
					return fmt.Errorf("fsync %s: %w: %w", opts.Path, err, ErrIO)
				}
			}

			content = content[:validLen]
		}
	}

	maxSize := opts.MaxSize
	if writable {
		maxSize, err = effectiveMaxSize(opts.Path, opts.MaxSize)
		if err != nil {
			return err
		}
	}

	s.fsys = fsys
	s.file = f
	s.path = opts.Path
	s.buf = content
	s.maxSize = maxSize
	s.writable = writable
	s.replica = opts.Replica

	ok = true

	return nil
}

// newEmptyImage builds the minimal valid store image: just the file
// header, with file_size pointing at itself and crc computed over a zero
// length span. Commit must be called to persist it.
func newEmptyImage() []byte {
	buf := make([]byte, FileHeaderSize)
	putKvpHeader(buf, 0, FileHeaderKey, FileHeaderSize)
	buf[offSignature] = fileSignature
	buf[offVersion] = fileVersion
	putUint32(buf, offFileSize, FileHeaderSize)
	putUint32(buf, offCRC, crcOf(nil))

	return buf
}

// replicaPath returns the fixed swap-commit replica path for primary: the
// primary path with ".tmp" appended. This is a literal suffix, not a
// randomly generated temp name, so that a leftover replica from a crashed
// commit can always be found and removed on the next Open.
func replicaPath(primary string) string {
	return primary + ".tmp"
}

// effectiveMaxSize adjusts a requested max size down to account for
// filesystem block overhead: the filesystem holding path allocates storage
// in blocks, and every block written carries 16 bytes of assumed overhead
// (e.g. for a wear-leveling or journaling layer below the filesystem). It
// fails with ErrNoSpace if the adjusted size is 16 bytes or less, or does
// not fit in an int32.
func effectiveMaxSize(path string, requested int) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("max size must be positive: %w", ErrInvalid)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(path), &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w: %w", filepath.Dir(path), err, ErrIO)
	}

	blockSize := int64(stat.Bsize)
	if blockSize <= 0 {
		blockSize = 1
	}

	blocks := (int64(requested) + blockSize - 1) / blockSize
	overhead := blocks * 16

	effective := int64(requested) - overhead
	if effective <= 16 || effective > math.MaxInt32 {
		return 0, fmt.Errorf("effective max size %d after block overhead: %w", effective, ErrNoSpace)
	}

	return int(effective), nil
}
