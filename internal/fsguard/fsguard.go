// Package fsguard bounds the number of file descriptors the storage core
// holds open at once, and provides advisory per-path reader/writer locks so
// that renames and unlinks never race with concurrent reads of the same
// path. It is built on golang.org/x/sync/semaphore plus a GC'd per-path
// lock map in the shape of original_source/util/fs.rs's OPEN_FILE_LOCKS.
package fsguard

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/turbobuild/castore/internal/fslog"
)

// DefaultPermits is the default number of file descriptors the guard
// allows open simultaneously, mirroring util/fs.rs's DEFAULT_OPEN_FILE_PERMITS.
const DefaultPermits = 10

var (
	semMu sync.Mutex
	sem   = semaphore.NewWeighted(DefaultPermits)
)

// Init raises the process-wide permit pool to limit. It is meant to be
// called once, at process start, before any store begins issuing I/O;
// calling it concurrently with in-flight acquires is safe but may
// transiently shrink the pool below what's already checked out.
func Init(limit int64) {
	if limit < DefaultPermits {
		fslog.Errorf(nil, "fsguard.Init(%d) must be >= %d, ignoring", limit, DefaultPermits)
		return
	}
	semMu.Lock()
	defer semMu.Unlock()
	sem = semaphore.NewWeighted(limit)
}

func acquire(ctx context.Context) (func(), error) {
	semMu.Lock()
	s := sem
	semMu.Unlock()
	if err := s.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.Release(1) }) }, nil
}

// pathLockEntry is a reference-counted reader/writer lock for one path.
type pathLockEntry struct {
	mu   sync.RWMutex
	refs int32
}

const gcHeadroom = 6

var (
	locksMu sync.Mutex
	locks   = make(map[string]*pathLockEntry)
)

func getLock(path string) *pathLockEntry {
	locksMu.Lock()
	defer locksMu.Unlock()
	e, ok := locks[path]
	if !ok {
		e = &pathLockEntry{}
		locks[path] = e
	}
	atomic.AddInt32(&e.refs, 1)
	// Opportunistic GC: only bother scanning when the map is nearing the
	// point where it would need to grow again, same heuristic as the
	// original's "map.capacity() - map.len() < 5".
	if len(locks) >= gcHeadroom && cap32(len(locks))-len(locks) < gcHeadroom-1 {
		for k, v := range locks {
			if atomic.LoadInt32(&v.refs) == 0 {
				delete(locks, k)
			}
		}
	}
	return e
}

// cap32 approximates a map's allocated bucket capacity by rounding up to
// the next power of two, since Go's map type exposes no direct analogue
// of Rust's HashMap::capacity().
func cap32(n int) int {
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

func releaseLock(e *pathLockEntry) {
	atomic.AddInt32(&e.refs, -1)
}

// lockPath takes the advisory lock for path in the given mode until the
// returned release func is called, after also acquiring an FS Guard permit.
func lockPath(ctx context.Context, path string, write bool) (func(), error) {
	release, err := acquire(ctx)
	if err != nil {
		return nil, err
	}
	e := getLock(path)
	if write {
		e.mu.Lock()
	} else {
		e.mu.RLock()
	}
	return func() {
		if write {
			e.mu.Unlock()
		} else {
			e.mu.RUnlock()
		}
		releaseLock(e)
		release()
	}, nil
}

// OpenRead opens path for reading, bounded by the permit pool but without
// taking the advisory path lock (the caller is not at risk of racing a
// concurrent rename/unlink of the same path, e.g. a freshly created temp
// file only this goroutine knows about).
func OpenRead(ctx context.Context, path string) (*os.File, func(), error) {
	release, err := acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		release()
		return nil, nil, err
	}
	return f, release, nil
}

// OpenReadLocked opens path for reading while holding the path's advisory
// read lock for as long as the returned release func is not called.
func OpenReadLocked(ctx context.Context, path string) (*os.File, func(), error) {
	unlock, err := lockPath(ctx, path, false)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return f, unlock, nil
}

// Create creates (or truncates) path for writing, bounded by the permit pool.
func Create(ctx context.Context, path string) (*os.File, func(), error) {
	release, err := acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		release()
		return nil, nil, err
	}
	return f, release, nil
}

// RenameDestLocked renames from to to, holding to's advisory write lock for
// the duration of the rename so that no concurrent open of to can observe a
// half-renamed state.
func RenameDestLocked(ctx context.Context, from, to string) error {
	unlock, err := lockPath(ctx, to, true)
	if err != nil {
		return err
	}
	defer unlock()
	return os.Rename(from, to)
}

// Rename renames from to to without taking any advisory lock.
func Rename(ctx context.Context, from, to string) error {
	release, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return os.Rename(from, to)
}

// RemoveFileLocked removes path while holding its advisory write lock.
func RemoveFileLocked(ctx context.Context, path string) error {
	unlock, err := lockPath(ctx, path, true)
	if err != nil {
		return err
	}
	defer unlock()
	return os.Remove(path)
}

// RemoveFile removes path without taking any advisory lock, used for
// cleaning up temp files nobody else can be looking at.
func RemoveFile(ctx context.Context, path string) error {
	release, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return os.Remove(path)
}

// MkdirAll is the permit-bounded passthrough for os.MkdirAll.
func MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	release, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return os.MkdirAll(path, perm)
}

// ReadDir is the permit-bounded passthrough for os.ReadDir.
func ReadDir(ctx context.Context, path string) ([]os.DirEntry, error) {
	release, err := acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return os.ReadDir(path)
}

// Stat is the permit-bounded passthrough for os.Stat.
func Stat(ctx context.Context, path string) (os.FileInfo, error) {
	release, err := acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return os.Stat(path)
}

// HardLink is the permit-bounded passthrough for os.Link.
func HardLink(ctx context.Context, oldname, newname string) error {
	release, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return os.Link(oldname, newname)
}

// Symlink is the permit-bounded passthrough for os.Symlink.
func Symlink(ctx context.Context, oldname, newname string) error {
	release, err := acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return os.Symlink(oldname, newname)
}
