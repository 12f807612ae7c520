// Package accache adapts the generic CAS Store interface to the Action
// Cache's key/value shape: get/put a serialized ActionResult keyed by
// an action digest, one Store per instance name, grounded on
// original_source/cas/grpc_service/ac_server.rs's AcServer.
package accache

import (
	"context"

	"github.com/turbobuild/castore/internal/cerrors"
	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/store"
	"github.com/turbobuild/castore/pkg/store/grpcstore"
)

// Adapter serves GetActionResult/UpdateActionResult against one Store
// per Remote Execution instance name, the Go shape of ac_server.rs's
// AcServer.stores map.
type Adapter struct {
	stores map[string]store.Store
	codec  Codec
}

// NewAdapter builds an Adapter over the given instance-name -> Store
// map. A nil codec defaults to JSONCodec.
func NewAdapter(stores map[string]store.Store, codec Codec) *Adapter {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Adapter{stores: stores, codec: codec}
}

func (a *Adapter) storeFor(instanceName string) (store.Store, error) {
	s, ok := a.stores[instanceName]
	if !ok {
		return nil, cerrors.Errorf(cerrors.InvalidArgument, "instance_name %q is not configured for the action cache", instanceName)
	}
	return s, nil
}

// Passthrough reports whether instanceName's Store is a GrpcStore, and
// returns it if so. A caller that owns the real Remote Execution wire
// format (the RPC layer, out of this module's scope) should use this to
// forward a GetActionResult/UpdateActionResult RPC directly via
// grpcstore.Store's raw passthrough methods instead of going through
// Adapter's own codec, avoiding a needless decode/re-encode round trip
// through this module's ActionResult stand-in. Mirrors
// ac_server.rs's as_any().downcast_ref::<Arc<GrpcStore>>() short-circuit.
func (a *Adapter) Passthrough(instanceName string) (*grpcstore.Store, bool) {
	s, ok := a.stores[instanceName]
	if !ok {
		return nil, false
	}
	gs, ok := s.AsAny().(*grpcstore.Store)
	return gs, ok
}

// GetActionResult fetches and decodes the ActionResult stored under
// actionDigest for instanceName. If the backing store is a GrpcStore,
// it is resolved via the raw passthrough path (forwarding this
// process's own codec encoding of the request/response, rather than a
// real Bazel wire message — see Passthrough's doc comment for the
// production-path alternative) instead of a local CAS Get.
func (a *Adapter) GetActionResult(ctx context.Context, instanceName string, actionDigest digest.Info) (*ActionResult, error) {
	s, err := a.storeFor(instanceName)
	if err != nil {
		return nil, err
	}

	if gs, ok := s.AsAny().(*grpcstore.Store); ok {
		reqBytes, err := a.codec.Marshal(actionDigestEnvelope{Hash: actionDigest.Hash, SizeBytes: actionDigest.SizeBytes})
		if err != nil {
			return nil, cerrors.Wrap(cerrors.Internal, err, "failed to encode action cache passthrough request")
		}
		respBytes, err := gs.GetActionResultRaw(ctx, reqBytes)
		if err != nil {
			return nil, err
		}
		var result ActionResult
		if err := a.codec.Unmarshal(respBytes, &result); err != nil {
			return nil, cerrors.Wrap(cerrors.Internal, err, "failed to decode action cache passthrough response")
		}
		return &result, nil
	}

	data, err := store.GetPartUnchunked(ctx, s, actionDigest, 0, nil)
	if err != nil {
		return nil, err
	}
	var result ActionResult
	if err := a.codec.Unmarshal(data, &result); err != nil {
		return nil, cerrors.Wrap(cerrors.Internal, err, "failed to decode stored action result")
	}
	return &result, nil
}

// UpdateActionResult encodes result and stores it under actionDigest
// for instanceName, short-circuiting to the GrpcStore passthrough the
// same way GetActionResult does.
func (a *Adapter) UpdateActionResult(ctx context.Context, instanceName string, actionDigest digest.Info, result *ActionResult) (*ActionResult, error) {
	s, err := a.storeFor(instanceName)
	if err != nil {
		return nil, err
	}

	encoded, err := a.codec.Marshal(result)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.Internal, err, "provided action result could not be serialized")
	}

	if gs, ok := s.AsAny().(*grpcstore.Store); ok {
		if _, err := gs.UpdateActionResultRaw(ctx, encoded); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := store.UpdateOneshot(ctx, s, actionDigest, encoded); err != nil {
		return nil, cerrors.Wrap(cerrors.Internal, err, "failed to update in action cache")
	}
	return result, nil
}

// actionDigestEnvelope is the minimal request shape forwarded to an
// upstream GrpcStore's raw Action Cache passthrough, standing in for
// the real GetActionResultRequest message this module does not vendor.
type actionDigestEnvelope struct {
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"size_bytes"`
}
