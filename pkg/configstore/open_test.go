package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	s, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
	})
	require.NoError(t, err)
	defer s.Close()

	if got, want := s.begin(), s.end(); got != want {
		t.Fatalf("new store begin=%d end=%d, want empty store (begin == end)", got, want)
	}
}

func TestOpen_RejectsDoubleOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	s, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
	})
	require.NoError(t, err)
	defer s.Close()

	err = s.Open(Options{Path: path, Flags: os.O_RDWR})
	require.ErrorIs(t, err, ErrAlready)
}

func TestOpen_RejectsExclusiveLockContention(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	first, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
	})
	require.NoError(t, err)
	defer first.Close()

	require.NoError(t, first.Commit())

	_, err = Open(Options{Path: path, Flags: os.O_RDWR, MaxSize: 4096})
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestOpen_SharedLockAllowsConcurrentReaders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	writer, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
	})
	require.NoError(t, err)
	require.NoError(t, writer.Commit())
	require.NoError(t, writer.Close())

	reader1, err := Open(Options{Path: path, Flags: os.O_RDONLY})
	require.NoError(t, err)
	defer reader1.Close()

	reader2, err := Open(Options{Path: path, Flags: os.O_RDONLY})
	require.NoError(t, err)
	defer reader2.Close()
}

func TestOpen_EmptyFileWithoutCreateFlagsFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(Options{Path: path, Flags: os.O_RDWR})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_TooSmallFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	_, err := Open(Options{Path: path, Flags: os.O_RDONLY})
	require.ErrorIs(t, err, ErrRange)
}

func TestOpen_CorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	buf := newEmptyImage()
	finalizeHeader(buf)
	buf[offSignature] ^= 0xFF

	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err := Open(Options{Path: path, Flags: os.O_RDONLY})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_ReconcilesTornTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	s, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
	})
	require.NoError(t, err)

	if _, err := s.insert(s.end(), 1, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	require.NoError(t, s.Commit())
	require.NoError(t, s.Close())

	// Simulate a crash mid-write: append a few bytes of garbage that
	// corrupt the on-disk tail without touching the committed header.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(Options{Path: path, Flags: os.O_RDWR, MaxSize: 4096})
	require.NoError(t, err)
	defer reopened.Close()

	if got, want := reopened.end(), FileHeaderSize+kvpHeaderSize+4; got != want {
		t.Fatalf("reconciled store length = %d, want %d (trailing garbage discarded)", got, want)
	}
}

func TestOpen_SwapMode_NeverTruncatesTornTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.cfg")

	s, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR | os.O_CREATE | os.O_TRUNC,
		MaxSize: 4096,
		Replica: ReplicaSwap,
	})
	require.NoError(t, err)

	if _, err := s.insert(s.end(), 1, 4); err != nil {
		t.Fatalf("insert: %v", err)
	}

	require.NoError(t, s.Commit())

	// Swap commits never leave a torn tail behind, so a writer that opens
	// such a file in swap mode has no business reconciling it: append
	// garbage as if some other mechanism produced one, and confirm Open
	// leaves the physical file untouched rather than truncating it.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	before, err := os.Stat(path)
	require.NoError(t, err)

	reopened, err := Open(Options{
		Path:    path,
		Flags:   os.O_RDWR,
		MaxSize: 4096,
		Replica: ReplicaSwap,
	})
	require.NoError(t, err)
	defer reopened.Close()

	after, err := os.Stat(path)
	require.NoError(t, err)

	require.Equal(t, before.Size(), after.Size(), "swap-mode open must not truncate the physical file")

	// The in-memory image is still reconciled to the valid prefix; only the
	// on-disk file is left alone.
	if got, want := reopened.end(), FileHeaderSize+kvpHeaderSize+4; got != want {
		t.Fatalf("in-memory image length = %d, want %d (trailing garbage ignored in memory)", got, want)
	}
}

func TestEffectiveMaxSize_RejectsTooSmall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := effectiveMaxSize(filepath.Join(dir, "store.cfg"), 1)
	require.ErrorIs(t, err, ErrNoSpace)
}
