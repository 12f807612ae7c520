// Package store defines the polymorphic boundary every backend
// implements: Has, Update, GetPart, plus a downcast escape hatch so a
// caller that needs backend-specific behavior (the AC Adapter's GrpcStore
// short-circuit) can recover the concrete type.
package store

import (
	"context"

	"github.com/turbobuild/castore/internal/bytestream"
	"github.com/turbobuild/castore/pkg/digest"
)

// UploadSizeKind tags how precisely an Update caller knows the size of
// the blob it is about to send.
type UploadSizeKind int

const (
	// SizeUnknown means the backend learns the size only as bytes arrive.
	SizeUnknown UploadSizeKind = iota
	// SizeExact means Hint is the exact number of bytes the reader will
	// deliver.
	SizeExact
	// SizeMax means Hint is an upper bound the backend may use for
	// pre-allocation, but the reader may deliver fewer bytes.
	SizeMax
)

// UploadSizeInfo is the size hint passed to Update. Backends may use it
// for pre-allocation but must handle any actual length the reader
// delivers — it is advisory, never authoritative.
type UploadSizeInfo struct {
	Kind UploadSizeKind
	Hint int64
}

// ExactSize constructs an UploadSizeInfo for a caller that knows the
// exact blob length up front.
func ExactSize(n int64) UploadSizeInfo { return UploadSizeInfo{Kind: SizeExact, Hint: n} }

// MaxSize constructs an UploadSizeInfo for a caller that only knows an
// upper bound.
func MaxSize(n int64) UploadSizeInfo { return UploadSizeInfo{Kind: SizeMax, Hint: n} }

// UnknownSize constructs an UploadSizeInfo for a caller with no size
// information at all.
func UnknownSize() UploadSizeInfo { return UploadSizeInfo{Kind: SizeUnknown} }

// Store is the contract every CAS/AC backend implements.
type Store interface {
	// Has returns the stored length and true if digest is present, or
	// (0, false, nil) if it is merely absent. A non-nil error indicates a
	// genuine backend I/O failure, never a missing blob.
	Has(ctx context.Context, d digest.Info) (size int64, ok bool, err error)

	// Update consumes bytes from r until EOF and stores them under d.
	// On success the blob becomes visible under d; on any failure
	// (including a reader error) no partial state becomes visible.
	Update(ctx context.Context, d digest.Info, r *bytestream.ReadHalf, hint UploadSizeInfo) error

	// GetPart streams [offset, offset+length) of the blob named by d to
	// w, then sends EOF. length == nil means "to end of blob". Returns a
	// cerrors.NotFound error if d is absent.
	GetPart(ctx context.Context, d digest.Info, w *bytestream.WriteHalf, offset int64, length *int64) error

	// AsAny exposes the backend's concrete type so a caller like the AC
	// Adapter can type-assert a specific implementation (GrpcStore) to
	// short-circuit the default serialize/deserialize path.
	AsAny() any
}

// UpdateOneshot is a convenience wrapper around Update for callers that
// already have the whole blob in memory.
func UpdateOneshot(ctx context.Context, s Store, d digest.Info, data []byte) error {
	ch := bytestream.NewChannel(1)
	w, r := ch.Split()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Update(ctx, d, r, ExactSize(int64(len(data))))
	}()

	if err := w.Send(ctx, data); err != nil {
		<-errCh
		return err
	}
	if err := w.SendEOF(); err != nil {
		<-errCh
		return err
	}
	return <-errCh
}

// GetPartUnchunked is a convenience wrapper around GetPart that buffers
// the whole requested range into memory and returns it.
func GetPartUnchunked(ctx context.Context, s Store, d digest.Info, offset int64, length *int64) ([]byte, error) {
	ch := bytestream.NewChannel(4)
	w, r := ch.Split()

	errCh := make(chan error, 1)
	go func() {
		err := s.GetPart(ctx, d, w, offset, length)
		if err != nil {
			// A failed GetPart never sends EOF; closing the write half
			// ends the Recv loop below.
			w.Close()
		}
		errCh <- err
	}()

	var out []byte
	for {
		chunk, err := r.Recv(ctx)
		if err != nil {
			break
		}
		out = append(out, chunk...)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}
