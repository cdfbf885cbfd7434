package configstore

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock indicates a lock could not be acquired without blocking:
// another process already holds a conflicting lock on the file.
var ErrWouldBlock = errors.New("configstore: would block")

// flockAcquire takes a whole-file advisory lock on fd, non-blocking, and
// exclusive iff exclusive is true. It retries on EINTR, which flock can
// return if the calling goroutine's thread receives a signal while
// blocked in the syscall (non-blocking mode makes this rare but not
// impossible across platforms).
func flockAcquire(fd int, exclusive bool) error {
	how := unix.LOCK_SH | unix.LOCK_NB
	if exclusive {
		how = unix.LOCK_EX | unix.LOCK_NB
	}

	for {
		err := unix.Flock(fd, how)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return fmt.Errorf("flock: %w", ErrWouldBlock)
		default:
			return fmt.Errorf("flock: %w: %w", err, ErrIO)
		}
	}
}

// flockRelease drops the advisory lock on fd. Closing the descriptor would
// do this implicitly, but Close calls it explicitly so the lock's release
// is visible at the point Close is called, not deferred to whenever the
// runtime finalizes the fd.
func flockRelease(fd int) error {
	for {
		err := unix.Flock(fd, unix.LOCK_UN)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}
