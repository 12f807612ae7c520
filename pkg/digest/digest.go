// Package digest implements the content-addressing primitives shared by
// every store backend: the (hash, size) pair naming a blob, and the
// Remote Execution resource-name grammar used to carry that pair (plus
// upload/compression/instance metadata) over the wire.
package digest

import (
	"strconv"
	"strings"

	"github.com/turbobuild/castore/internal/cerrors"
)

// Info is a (hash, size) pair uniquely naming a blob. Two Infos are equal
// iff both fields match byte-for-byte; Hash is always compared as-is
// (lowercase hex is a convention the caller is expected to uphold, not one
// this package normalizes away).
type Info struct {
	Hash      string
	SizeBytes int64
}

// New validates and constructs an Info. SizeBytes must be non-negative.
func New(hash string, sizeBytes int64) (Info, error) {
	if hash == "" {
		return Info{}, cerrors.New(cerrors.InvalidArgument, "digest hash must not be empty")
	}
	if sizeBytes < 0 {
		return Info{}, cerrors.Errorf(cerrors.InvalidArgument, "digest size %d must be non-negative", sizeBytes)
	}
	return Info{Hash: hash, SizeBytes: sizeBytes}, nil
}

// String renders the canonical "{hash}-{size_bytes}" form used as the
// on-disk filename and as the Evicting Map's debug representation.
func (d Info) String() string {
	return d.Hash + "-" + strconv.FormatInt(d.SizeBytes, 10)
}

// ParseContentFileName parses a "{hash}-{size}" filename (as produced by
// String) back into an Info. It is the inverse used by FilesystemStore's
// startup reindex to validate content_path entries.
func ParseContentFileName(name string) (Info, error) {
	hash, sizeStr, ok := strings.Cut(name, "-")
	if !ok || hash == "" {
		return Info{}, cerrors.Errorf(cerrors.InvalidArgument, "content file name %q does not match {hash}-{size}", name)
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return Info{}, cerrors.Errorf(cerrors.InvalidArgument, "content file name %q has an invalid size segment", name)
	}
	return Info{Hash: hash, SizeBytes: size}, nil
}
