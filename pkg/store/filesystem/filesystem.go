// Package filesystem implements a Store backed by two directories on
// local disk: one for in-progress uploads, one for committed content,
// indexed by an evictingmap.Map so the backend never grows past its
// configured count/byte/age bounds. It is the Go shape of
// original_source/cas/store/filesystem_store.rs, with atime handling
// grounded on rclone's backend/local atime files and fsync/rename
// discipline grounded on its backend/cache storage_persistent.go.
package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/turbobuild/castore/internal/bytestream"
	"github.com/turbobuild/castore/internal/castoremetrics"
	"github.com/turbobuild/castore/internal/cerrors"
	"github.com/turbobuild/castore/internal/fslog"
	"github.com/turbobuild/castore/internal/fsguard"
	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/evictingmap"
	"github.com/turbobuild/castore/pkg/store"
)

// DefaultReadBufferSize matches DEFAULT_BUFF_SIZE from filesystem_store.rs.
const DefaultReadBufferSize = 32 * 1024

// Config configures a Store.
type Config struct {
	// TempPath holds in-progress uploads before they are renamed into ContentPath.
	TempPath string
	// ContentPath holds committed, content-addressed blobs.
	ContentPath string
	// EvictionPolicy bounds the index; the zero value is unbounded.
	EvictionPolicy evictingmap.Policy
	// ReadBufferSize is the chunk size GetPart streams with. Zero means DefaultReadBufferSize.
	ReadBufferSize int
	// OnEvicted, if set, is invoked (off the critical section) every time
	// a blob is evicted or displaced, mirroring
	// filesystem_store.rs's file_evicted_callback.
	OnEvicted func()
	// Metrics, if set, is updated on every operation and eviction.
	Metrics *castoremetrics.StoreMetrics
}

// Store is a filesystem-backed Store.
type Store struct {
	tempPath       string
	contentPath    string
	index          *evictingmap.Map[digest.Info, *fileEntry]
	readBufferSize int
	onEvicted      func()
	tempCounter    uint64
	metrics        *castoremetrics.StoreMetrics
}

var _ store.Store = (*Store)(nil)

// New creates (if needed) TempPath and ContentPath, reindexes any
// content already on disk in atime order, prunes stale temp files left
// over from a previous process, and returns a ready Store. It follows
// filesystem_store.rs's new() step for step: mkdir both dirs, build the
// evicting map anchored to "now", reindex content, then prune temp.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.TempPath == "" || cfg.ContentPath == "" {
		return nil, cerrors.New(cerrors.InvalidArgument, "filesystem store requires both TempPath and ContentPath")
	}
	readBufferSize := cfg.ReadBufferSize
	if readBufferSize <= 0 {
		readBufferSize = DefaultReadBufferSize
	}

	if err := fsguard.MkdirAll(ctx, cfg.TempPath, 0o755); err != nil {
		return nil, cerrors.Wrapf(cerrors.Internal, err, "failed to create temp directory %s", cfg.TempPath)
	}
	if err := fsguard.MkdirAll(ctx, cfg.ContentPath, 0o755); err != nil {
		return nil, cerrors.Wrapf(cerrors.Internal, err, "failed to create content directory %s", cfg.ContentPath)
	}

	now := time.Now()
	s := &Store{
		tempPath:       cfg.TempPath,
		contentPath:    cfg.ContentPath,
		index:          evictingmap.New[digest.Info, *fileEntry](cfg.EvictionPolicy, now),
		readBufferSize: readBufferSize,
		onEvicted:      cfg.OnEvicted,
		metrics:        cfg.Metrics,
	}

	if s.metrics != nil {
		s.metrics.GaugeSizeBytesLimit.Set(float64(cfg.EvictionPolicy.MaxBytes))
		s.index.SetEvictionObserver(func(n int, bytes int64) {
			s.metrics.CounterEvictedBytes.Add(float64(bytes))
			s.updateSizeGauges()
		})
	}

	if err := s.reindexContent(ctx, now); err != nil {
		return nil, err
	}
	if err := s.pruneTempPath(ctx); err != nil {
		return nil, err
	}
	s.updateSizeGauges()
	return s, nil
}

// updateSizeGauges syncs the size/count gauges to the index's current
// state. A no-op if no Metrics was configured.
func (s *Store) updateSizeGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.GaugeEntryCount.Set(float64(s.index.Len()))
	s.metrics.GaugeSizeBytes.Set(float64(s.index.TotalBytes()))
}

type contentFileInfo struct {
	name     string
	atime    time.Time
	fileSize int64
}

// reindexContent walks contentPath, sorts entries by atime ascending
// (oldest/least-recently-used first) and feeds them into the evicting
// map backdated to their measured age, mirroring
// filesystem_store.rs's add_files_to_cache.
func (s *Store) reindexContent(ctx context.Context, anchor time.Time) error {
	entries, err := fsguard.ReadDir(ctx, s.contentPath)
	if err != nil {
		return cerrors.Wrapf(cerrors.Internal, err, "failed opening content directory %s for reindex", s.contentPath)
	}

	var infos []contentFileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			fslog.Warnf("filesystem_store", "failed to stat %s during reindex: %v", entry.Name(), err)
			continue
		}
		atime, ok := readAtime(fi)
		if !ok {
			return cerrors.Errorf(cerrors.Internal,
				"this filesystem does not support access time; filesystem store requires a drive that supports atime (entry %s)", entry.Name())
		}
		infos = append(infos, contentFileInfo{name: entry.Name(), atime: atime, fileSize: fi.Size()})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].atime.Before(infos[j].atime) })

	for _, info := range infos {
		d, err := digest.ParseContentFileName(info.name)
		if err != nil {
			fslog.Warnf("filesystem_store", "could not parse content file name, deleting: %s: %v", info.name, err)
			_ = fsguard.RemoveFileLocked(ctx, filepath.Join(s.contentPath, info.name))
			continue
		}
		ageSeconds := int64(anchor.Sub(info.atime).Seconds())
		if ageSeconds < 0 {
			ageSeconds = 0
		}
		entry := &fileEntry{
			digest:      d,
			fileSize:    info.fileSize,
			tempPath:    s.tempPath,
			contentPath: s.contentPath,
			onEvicted:   s.onEvicted,
		}
		s.index.InsertWithTime(d, entry, ageSeconds)
	}
	return nil
}

// pruneTempPath deletes every file left in tempPath: an upload that
// never committed before the process last exited.
func (s *Store) pruneTempPath(ctx context.Context) error {
	entries, err := fsguard.ReadDir(ctx, s.tempPath)
	if err != nil {
		return cerrors.Wrapf(cerrors.Internal, err, "failed opening temp directory %s to prune", s.tempPath)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.tempPath, entry.Name())
		if err := fsguard.RemoveFile(ctx, path); err != nil {
			fslog.Warnf("filesystem_store", "failed to delete stale temp file %s: %v", path, err)
		}
	}
	return nil
}

func (s *Store) nextTempFileName() uint64 {
	v := atomic.AddUint64(&s.tempCounter, 1)
	if v == 0 {
		v = atomic.AddUint64(&s.tempCounter, 1)
	}
	return v
}

// Has reports the stored size of d without touching its atime (it only
// bumps recency in the index), matching filesystem_store.rs's has().
func (s *Store) Has(ctx context.Context, d digest.Info) (n int64, ok bool, err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("has", err) }()
	}
	size, found := s.index.SizeForKey(d)
	if !found {
		return 0, false, nil
	}
	return int64(size), true, nil
}

// Update drains r into a temp file, fsyncs it, renames it into place
// under d's advisory write lock, and indexes it. Any failure along the
// way removes the temp file and merges that cleanup's own error (if
// any) into the one returned.
func (s *Store) Update(ctx context.Context, d digest.Info, r *bytestream.ReadHalf, hint store.UploadSizeInfo) (err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("update", err) }()
	}

	tempName := strconv.FormatUint(s.nextTempFileName(), 16)
	tempFullPath := filepath.Join(s.tempPath, tempName)

	f, release, err := fsguard.Create(ctx, tempFullPath)
	if err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to create temp file in filesystem store")
	}

	fileSize, err := writeFromChannel(ctx, f, release, tempFullPath, r)
	if err != nil {
		if rmErr := fsguard.RemoveFile(ctx, tempFullPath); rmErr != nil {
			return cerrors.Merge(err, cerrors.Wrap(cerrors.Internal, rmErr, "failed to delete temp file in filesystem store"))
		}
		return err
	}

	entry := &fileEntry{
		digest:      d,
		fileSize:    fileSize,
		tempPath:    s.tempPath,
		contentPath: s.contentPath,
		onEvicted:   s.onEvicted,
	}

	finalPath := filepath.Join(s.contentPath, d.String())
	if err := fsguard.RenameDestLocked(ctx, tempFullPath, finalPath); err != nil {
		if rmErr := fsguard.RemoveFile(ctx, tempFullPath); rmErr != nil {
			return cerrors.Merge(
				cerrors.Wrap(cerrors.Internal, err, "failed to rename temp file into place in filesystem store"),
				cerrors.Wrap(cerrors.Internal, rmErr, "failed to delete temp file in filesystem store"),
			)
		}
		return cerrors.Wrap(cerrors.Internal, err, "failed to rename temp file into place in filesystem store")
	}

	if old, had := s.index.Insert(d, entry); had {
		if s.metrics != nil {
			s.metrics.CounterOverwrittenBytes.Add(float64(old.Len()))
		}
		if old.onEvicted != nil {
			old.onEvicted()
		}
	}
	if s.metrics != nil {
		s.metrics.SummaryEntryBytes.Observe(float64(fileSize))
		s.updateSizeGauges()
	}
	return nil
}

// GetPart streams [offset, offset+length) of d's content, or to EOF if
// length is nil, then sends EOF. It returns a NotFound error if d is
// absent, matching filesystem_store.rs's get_part().
func (s *Store) GetPart(ctx context.Context, d digest.Info, w *bytestream.WriteHalf, offset int64, length *int64) (err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("get_part", err) }()
	}

	entry, ok := s.index.Get(d)
	if !ok {
		return cerrors.Errorf(cerrors.NotFound, "digest %s not found in filesystem store", d.String())
	}

	f, release, err := fsguard.OpenReadLocked(ctx, entry.contentFilePath())
	if err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to open file in filesystem store")
	}
	defer release()
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return cerrors.Wrapf(cerrors.Internal, err, "failed to seek file in filesystem store at offset %d", offset)
	}

	var remaining int64 = -1 // -1 means "unbounded" below.
	if length != nil {
		remaining = *length
	}

	buf := make([]byte, s.readBufferSize)
	for remaining != 0 {
		readLen := len(buf)
		if remaining >= 0 && int64(readLen) > remaining {
			readLen = int(remaining)
		}
		n, err := f.Read(buf[:readLen])
		if n > 0 {
			if sendErr := w.Send(ctx, buf[:n]); sendErr != nil {
				return cerrors.Wrap(cerrors.Internal, sendErr, "failed to send chunk in filesystem store get_part")
			}
			if remaining >= 0 {
				remaining -= int64(n)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return cerrors.Wrap(cerrors.Internal, err, "failed to read data in filesystem store")
		}
		if n == 0 {
			break
		}
	}

	if err := w.SendEOF(); err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to send EOF in filesystem store get_part")
	}
	return nil
}

// AsAny exposes *Store so callers (e.g. the AC Adapter) can type-assert
// backend-specific behavior. FilesystemStore has none today, but the
// hook must still return the concrete type per the Store contract.
func (s *Store) AsAny() any { return s }

func joinPath(dir, name string) string { return filepath.Join(dir, name) }

// writeFromChannel drains r into f chunk by chunk until EOF, fsyncs and
// closes f, and returns the total byte count written. f and release are
// always closed/released before returning, success or failure.
func writeFromChannel(ctx context.Context, f *os.File, release func(), tempFullPath string, r *bytestream.ReadHalf) (int64, error) {
	defer release()
	defer f.Close()

	var fileSize int64
	for {
		chunk, err := r.Recv(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, cerrors.Wrap(cerrors.Internal, err, "failed to receive data in filesystem store")
		}
		if len(chunk) == 0 {
			continue
		}
		if _, err := f.Write(chunk); err != nil {
			return 0, cerrors.Wrapf(cerrors.Internal, err, "failed to write data into filesystem store %s", tempFullPath)
		}
		fileSize += int64(len(chunk))
	}

	if err := f.Sync(); err != nil {
		return 0, cerrors.Wrapf(cerrors.Internal, err, "failed to sync_data in filesystem store %s", tempFullPath)
	}
	return fileSize, nil
}
