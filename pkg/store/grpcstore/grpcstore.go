// Package grpcstore implements a Store that forwards every call to an
// upstream Remote Execution server instead of touching local disk. CAS
// reads/writes ride the real google.golang.org/genproto/googleapis/bytestream
// ByteStream service, matching bazel-remote's server-side grpc_bytestream.go
// request/response shape from the other side of the wire. Action Cache
// passthrough forwards already-encoded bytes through a raw-bytes codec so
// this module never needs the Remote Execution .proto schema itself,
// consistent with that schema being an explicit external collaborator.
package grpcstore

import (
	"context"
	"io"

	gbytestream "google.golang.org/genproto/googleapis/bytestream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/turbobuild/castore/internal/bytestream"
	"github.com/turbobuild/castore/internal/cerrors"
	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/store"
)

// DefaultReadChunkSize matches bazel-remote's maxChunkSize default for
// outbound Read responses; it bounds the data in each WriteRequest that
// Update sends upstream. GetPart forwards upstream Read responses as
// received.
const DefaultReadChunkSize = 2 * 1024 * 1024

// Config configures a Store.
type Config struct {
	// InstanceName is prefixed onto every resource name sent upstream.
	InstanceName string
	// ReadChunkSize bounds the data in each WriteRequest Update sends
	// upstream. Zero means DefaultReadChunkSize.
	ReadChunkSize int
	// ActionCacheGetMethod/ActionCacheUpdateMethod are the full gRPC method
	// names (service/method) invoked for AC passthrough, e.g.
	// "/build.bazel.remote.execution.v2.ActionCache/GetActionResult".
	ActionCacheGetMethod    string
	ActionCacheUpdateMethod string
}

// Store forwards CAS and AC operations to an upstream gRPC server.
type Store struct {
	conn          grpc.ClientConnInterface
	bs            gbytestream.ByteStreamClient
	instanceName  string
	readChunkSize int
	acGetMethod   string
	acPutMethod   string
}

var _ store.Store = (*Store)(nil)

// New wraps an already-dialed connection. The caller owns conn's
// lifecycle (dialing and Close); this mirrors buildbarn-bb-storage's
// grpcclients constructors, which all take a grpc.ClientConnInterface
// rather than dialing themselves.
func New(conn grpc.ClientConnInterface, cfg Config) *Store {
	chunkSize := cfg.ReadChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunkSize
	}
	return &Store{
		conn:          conn,
		bs:            gbytestream.NewByteStreamClient(conn),
		instanceName:  cfg.InstanceName,
		readChunkSize: chunkSize,
		acGetMethod:   cfg.ActionCacheGetMethod,
		acPutMethod:   cfg.ActionCacheUpdateMethod,
	}
}

func (s *Store) resourceName(d digest.Info) string {
	rn := digest.ResourceName{InstanceName: s.instanceName, Hash: d.Hash, ExpectedSize: d.SizeBytes}
	return rn.Render()
}

// Has probes existence by requesting a single byte of the blob. A
// server that has never heard of the digest responds NotFound; a data
// response or an immediate EOF means the blob (of the size the caller
// already knows, since digest.Info carries it) is present upstream. Any
// other failure is returned as an Internal error.
func (s *Store) Has(ctx context.Context, d digest.Info) (int64, bool, error) {
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.bs.Read(readCtx, &gbytestream.ReadRequest{
		ResourceName: s.resourceName(d),
		ReadOffset:   0,
		ReadLimit:    1,
	})
	if err != nil {
		return 0, false, cerrors.Wrap(cerrors.Internal, err, "failed to open upstream read stream")
	}
	_, err = stream.Recv()
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, false, nil
		}
		if err == io.EOF {
			// Zero-length blob: present, just nothing to read.
			return d.SizeBytes, true, nil
		}
		return 0, false, cerrors.Wrap(cerrors.Internal, err, "failed probing upstream for digest")
	}
	return d.SizeBytes, true, nil
}

// Update streams r's bytes upstream as a single Write RPC.
func (s *Store) Update(ctx context.Context, d digest.Info, r *bytestream.ReadHalf, hint store.UploadSizeInfo) error {
	stream, err := s.bs.Write(ctx)
	if err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to open upstream write stream")
	}

	resourceName := s.resourceName(d)
	var offset int64
	first := true

	sendData := func(data []byte, finish bool) error {
		req := &gbytestream.WriteRequest{WriteOffset: offset, Data: data, FinishWrite: finish}
		if first {
			req.ResourceName = resourceName
			first = false
		}
		offset += int64(len(data))
		return stream.Send(req)
	}

	for {
		chunk, recvErr := r.Recv(ctx)
		isLast := recvErr == io.EOF
		if recvErr != nil && !isLast {
			_ = stream.CloseSend()
			return cerrors.Wrap(cerrors.Internal, recvErr, "failed to receive data forwarding to upstream")
		}

		if isLast {
			if err := sendData(nil, true); err != nil {
				return cerrors.Wrap(cerrors.Internal, err, "failed to send final chunk to upstream")
			}
			break
		}

		// Split oversized chunks so no single WriteRequest exceeds the
		// configured chunk size, matching the cap bazel-remote's server
		// applies to its own outbound Read responses.
		for len(chunk) > 0 {
			n := len(chunk)
			if n > s.readChunkSize {
				n = s.readChunkSize
			}
			if err := sendData(chunk[:n], false); err != nil {
				return cerrors.Wrap(cerrors.Internal, err, "failed to send chunk to upstream")
			}
			chunk = chunk[n:]
		}
	}

	if _, err := stream.CloseAndRecv(); err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "upstream rejected write")
	}
	return nil
}

// GetPart forwards [offset, offset+length) from the upstream server.
// length == nil maps to ReadLimit 0 (bazel-remote's "no limit" sentinel).
func (s *Store) GetPart(ctx context.Context, d digest.Info, w *bytestream.WriteHalf, offset int64, length *int64) error {
	var limit int64
	if length != nil {
		limit = *length
	}

	stream, err := s.bs.Read(ctx, &gbytestream.ReadRequest{
		ResourceName: s.resourceName(d),
		ReadOffset:   offset,
		ReadLimit:    limit,
	})
	if err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to open upstream read stream")
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return cerrors.Errorf(cerrors.NotFound, "digest %s not found upstream", d.String())
			}
			return cerrors.Wrap(cerrors.Internal, err, "failed reading upstream response")
		}
		if len(resp.Data) > 0 {
			if err := w.Send(ctx, resp.Data); err != nil {
				return cerrors.Wrap(cerrors.Internal, err, "failed to forward chunk from upstream")
			}
		}
	}

	if err := w.SendEOF(); err != nil {
		return cerrors.Wrap(cerrors.Internal, err, "failed to send EOF forwarding from upstream")
	}
	return nil
}

// AsAny exposes *Store so the Action Cache Adapter can downcast it and
// short-circuit its own serialize/deserialize path in favor of the raw
// passthroughs below.
func (s *Store) AsAny() any { return s }

// GetActionResultRaw forwards an already-encoded ActionCache.GetActionResult
// request upstream and returns the raw response bytes, letting the caller
// (accache.Adapter) decode with whatever codec it was configured with.
func (s *Store) GetActionResultRaw(ctx context.Context, reqBytes []byte) ([]byte, error) {
	return s.invokeRaw(ctx, s.acGetMethod, reqBytes)
}

// UpdateActionResultRaw forwards an already-encoded
// ActionCache.UpdateActionResult request upstream.
func (s *Store) UpdateActionResultRaw(ctx context.Context, reqBytes []byte) ([]byte, error) {
	return s.invokeRaw(ctx, s.acPutMethod, reqBytes)
}

func (s *Store) invokeRaw(ctx context.Context, method string, reqBytes []byte) ([]byte, error) {
	if method == "" {
		return nil, cerrors.New(cerrors.FailedPrecondition, "grpcstore: action cache method not configured")
	}
	in := rawBytes(reqBytes)
	var out rawBytes
	if err := s.conn.Invoke(ctx, method, &in, &out, grpc.CallContentSubtype(rawCodecName)); err != nil {
		return nil, cerrors.Wrap(cerrors.Internal, err, "action cache passthrough RPC failed")
	}
	return []byte(out), nil
}
