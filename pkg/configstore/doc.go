// Package configstore implements a single-file, crash-consistent key-value
// store for small, durable records identified by fixed-width numeric keys.
//
// It is intended for embedded and on-device configuration storage: a single
// writer (or multiple readers) persist small opaque byte payloads under
// 16-bit keys, with integrity verified by CRC on every open and a hard cap
// on total store size.
//
// # File format
//
// A store is a sequence of key-value records (KVPs) packed back-to-back in a
// single file, little-endian, unpadded. The first record is always the
// reserved file header, carrying a signature, version, the valid length of
// the image, and a CRC-32 over everything after it. See [Validate] for the
// exact acceptance rules.
//
// # Usage
//
// An empty file is only accepted when Flags include both os.O_CREATE and
// os.O_TRUNC, so this example creates a fresh store:
//
//	s, err := configstore.Open(configstore.Options{
//	    Path:    "/etc/app/config.db",
//	    MaxSize: 8192,
//	    Flags:   os.O_CREATE | os.O_TRUNC | os.O_RDWR,
//	})
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	cur, err := s.PutUnique(42, []byte("hello"), 5)
//	if err != nil {
//	    return err
//	}
//	_ = cur
//
//	if err := s.Commit(); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// A [Store] is not safe for concurrent use by multiple goroutines. Across
// processes, [Open] takes a non-blocking advisory whole-file lock: exclusive
// for writers, shared for readers. Lock contention is reported as an error
// immediately; callers that want to retry must do so themselves.
package configstore
