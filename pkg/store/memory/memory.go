// Package memory implements a Store entirely in RAM, backed by
// patrickmn/go-cache the same way rclone's backend/cache uses it for
// its transient chunk tier (storage_memory.go). It exists for tests and
// for small, latency-sensitive deployments that front a FilesystemStore
// or GrpcStore; it holds no eviction policy of its own beyond go-cache's
// TTL expiry, since bounded eviction by count or bytes is FilesystemStore's job.
package memory

import (
	"context"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/turbobuild/castore/internal/bytestream"
	"github.com/turbobuild/castore/internal/castoremetrics"
	"github.com/turbobuild/castore/internal/cerrors"
	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/store"
)

// NoExpiration disables the TTL entirely, matching go-cache's sentinel.
const NoExpiration = gocache.NoExpiration

// Store is an in-memory Store.
type Store struct {
	db         *gocache.Cache
	metrics    *castoremetrics.StoreMetrics
	totalBytes int64
}

var _ store.Store = (*Store)(nil)

// New creates a Store whose entries expire after defaultExpiration
// (NoExpiration to disable) and are purged on a fixed cleanup interval,
// mirroring storage_memory.go's Connect. metrics may be nil to disable
// instrumentation.
func New(defaultExpiration, cleanupInterval time.Duration, metrics *castoremetrics.StoreMetrics) *Store {
	s := &Store{db: gocache.New(defaultExpiration, cleanupInterval), metrics: metrics}
	if metrics != nil {
		metrics.GaugeSizeBytesLimit.Set(0) // unbounded: TTL expiry only
		s.db.OnEvicted(func(_ string, v interface{}) {
			n := int64(len(v.([]byte)))
			atomic.AddInt64(&s.totalBytes, -n)
			metrics.CounterEvictedBytes.Add(float64(n))
			s.updateSizeGauges()
		})
	}
	return s
}

func (s *Store) updateSizeGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.GaugeEntryCount.Set(float64(s.db.ItemCount()))
	s.metrics.GaugeSizeBytes.Set(float64(atomic.LoadInt64(&s.totalBytes)))
}

func key(d digest.Info) string {
	return d.Hash + "-" + strconv.FormatInt(d.SizeBytes, 10)
}

// Has reports whether d's blob is resident, along with its byte length.
func (s *Store) Has(ctx context.Context, d digest.Info) (n int64, ok bool, err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("has", err) }()
	}
	v, found := s.db.Get(key(d))
	if !found {
		return 0, false, nil
	}
	return int64(len(v.([]byte))), true, nil
}

// Update drains r and stores the whole blob under d, replacing any
// prior value for the same digest.
func (s *Store) Update(ctx context.Context, d digest.Info, r *bytestream.ReadHalf, hint store.UploadSizeInfo) (err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("update", err) }()
	}

	var buf []byte
	if hint.Kind == store.SizeExact && hint.Hint > 0 {
		buf = make([]byte, 0, hint.Hint)
	}
	for {
		chunk, recvErr := r.Recv(ctx)
		if recvErr != nil {
			if recvErr == io.EOF {
				break
			}
			return cerrors.Wrap(cerrors.Internal, recvErr, "failed to receive data in memory store")
		}
		buf = append(buf, chunk...)
	}

	k := key(d)
	if old, had := s.db.Get(k); had && s.metrics != nil {
		s.metrics.CounterOverwrittenBytes.Add(float64(len(old.([]byte))))
		atomic.AddInt64(&s.totalBytes, -int64(len(old.([]byte))))
	}
	s.db.Set(k, buf, gocache.DefaultExpiration)

	if s.metrics != nil {
		atomic.AddInt64(&s.totalBytes, int64(len(buf)))
		s.metrics.SummaryEntryBytes.Observe(float64(len(buf)))
		s.updateSizeGauges()
	}
	return nil
}

// GetPart streams [offset, offset+length) of d's blob, or to end of
// blob if length is nil, then sends EOF.
func (s *Store) GetPart(ctx context.Context, d digest.Info, w *bytestream.WriteHalf, offset int64, length *int64) (err error) {
	if s.metrics != nil {
		defer func() { s.metrics.ObserveOp("get_part", err) }()
	}

	v, found := s.db.Get(key(d))
	if !found {
		return cerrors.Errorf(cerrors.NotFound, "digest %s not found in memory store", d.String())
	}
	data := v.([]byte)

	if offset < 0 {
		return cerrors.Errorf(cerrors.InvalidArgument, "offset %d out of range for digest %s of length %d", offset, d.String(), len(data))
	}
	// offset at or beyond the end of the blob yields zero bytes then EOF,
	// matching FilesystemStore's GetPart (a Seek past EOF plus Read
	// naturally returns (0, io.EOF)).
	start := offset
	if start > int64(len(data)) {
		start = int64(len(data))
	}
	end := int64(len(data))
	if length != nil {
		if want := offset + *length; want < end {
			end = want
		}
	}
	if end < start {
		end = start
	}

	if err := w.Send(ctx, data[start:end]); err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to send chunk in memory store get_part")
	}
	if err := w.SendEOF(); err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to send EOF in memory store get_part")
	}
	return nil
}

// AsAny exposes *Store for callers that want to type-assert it.
func (s *Store) AsAny() any { return s }

// Delete removes d's blob, if present. It is not part of the Store
// interface; it exists for tests. With metrics enabled, go-cache runs the
// OnEvicted callback installed by New on Delete, and that callback drains
// totalBytes.
func (s *Store) Delete(d digest.Info) {
	k := key(d)
	s.db.Delete(k)
	if s.metrics != nil {
		s.updateSizeGauges()
	}
}
