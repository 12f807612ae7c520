package filesystem

import (
	"context"

	"github.com/turbobuild/castore/internal/fslog"
	"github.com/turbobuild/castore/internal/fsguard"
	"github.com/turbobuild/castore/pkg/digest"
)

// fileEntry is the evictingmap.LenEntry value FilesystemStore indexes
// one per committed blob. It mirrors original_source's FileEntry: a
// digest, the measured on-disk size, shared handles to the store's two
// directories, and an optional eviction callback.
type fileEntry struct {
	digest      digest.Info
	fileSize    int64
	tempPath    string
	contentPath string
	onEvicted   func()
}

func (e *fileEntry) Len() int { return int(e.fileSize) }

func (e *fileEntry) contentFilePath() string {
	return joinPath(e.contentPath, e.digest.String())
}

// Touch is invoked by the evicting map, off its critical section,
// whenever this entry is read. It best-effort bumps the file's atime so
// the next startup reindex sees it as recently used; failures are
// logged and swallowed rather than surfaced to the caller.
func (e *fileEntry) Touch() {
	path := e.contentFilePath()
	if err := touchAtime(path); err != nil {
		fslog.Warnf("filesystem_store", "failed to touch atime of %s: %v", path, err)
	}
}

// Unref is invoked by the evicting map exactly once when this entry is
// genuinely evicted (not merely displaced by an overwrite). It unlinks
// the backing file under its write lock and fires the store's
// eviction callback, if any.
func (e *fileEntry) Unref() {
	path := e.contentFilePath()
	fslog.Infof("filesystem_store", "deleting evicted blob %s", path)
	if err := fsguard.RemoveFileLocked(context.Background(), path); err != nil {
		fslog.Warnf("filesystem_store", "failed to remove evicted file %s: %v", path, err)
	}
	if e.onEvicted != nil {
		e.onEvicted()
	}
}
