package digest

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/turbobuild/castore/internal/cerrors"
)

// ResourceName is the parsed form of a Remote Execution resource name:
//
//	[instance/] (blobs | uploads/{uuid}/blobs | compressed-blobs/{compressor} |
//	  uploads/{uuid}/compressed-blobs/{compressor}) [/{digest-fn}]
//	  /{hash}/{size} [/optional_metadata…]
type ResourceName struct {
	InstanceName     string
	UUID             *string
	Compressor       *string
	DigestFunction   *string
	Hash             string
	ExpectedSize     int64
	OptionalMetadata *string
}

// anchors are the literal segments that mark the end of instance_name and
// the start of the grammar proper. instance_name is scanned left-to-right
// for the first occurrence of one of these, on the convention that
// instance names never contain them as a standalone path segment (see
// original_source's instance_name_has_slashes_test).
var anchors = map[string]bool{
	"blobs":            true,
	"uploads":          true,
	"compressed-blobs": true,
}

// ParseResourceName parses name per the grammar above. Parse failures are
// reported as cerrors.InvalidArgument.
func ParseResourceName(name string) (ResourceName, error) {
	segs := strings.Split(name, "/")

	anchor := -1
	for i, s := range segs {
		if anchors[s] {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return ResourceName{}, cerrors.Errorf(cerrors.InvalidArgument,
			"resource name %q has no blobs/uploads/compressed-blobs segment", name)
	}

	instanceName := strings.Join(segs[:anchor], "/")
	rest := segs[anchor:]

	var rn ResourceName
	rn.InstanceName = instanceName

	if rest[0] == "uploads" {
		if len(rest) < 3 {
			return ResourceName{}, cerrors.Errorf(cerrors.InvalidArgument, "resource name %q: truncated uploads/ segment", name)
		}
		uuid := rest[1]
		rn.UUID = &uuid
		switch rest[2] {
		case "blobs":
			rest = rest[3:]
		case "compressed-blobs":
			if len(rest) < 4 {
				return ResourceName{}, cerrors.Errorf(cerrors.InvalidArgument, "resource name %q: truncated compressed-blobs/ segment", name)
			}
			compressor := rest[3]
			rn.Compressor = &compressor
			rest = rest[4:]
		default:
			return ResourceName{}, cerrors.Errorf(cerrors.InvalidArgument, "resource name %q: expected blobs or compressed-blobs after uploads/{uuid}", name)
		}
	} else if rest[0] == "compressed-blobs" {
		if len(rest) < 2 {
			return ResourceName{}, cerrors.Errorf(cerrors.InvalidArgument, "resource name %q: truncated compressed-blobs/ segment", name)
		}
		compressor := rest[1]
		rn.Compressor = &compressor
		rest = rest[2:]
	} else { // "blobs"
		rest = rest[1:]
	}

	hash, size, digestFn, metadataSegs, err := splitDigestTail(rest)
	if err != nil {
		return ResourceName{}, cerrors.Wrapf(cerrors.InvalidArgument, err, "resource name %q", name)
	}
	rn.Hash = hash
	rn.ExpectedSize = size
	rn.DigestFunction = digestFn
	if len(metadataSegs) > 0 {
		md := strings.Join(metadataSegs, "/")
		rn.OptionalMetadata = &md
	}
	return rn, nil
}

// splitDigestTail disambiguates the optional digest-function segment from
// the mandatory hash/size pair by testing which position the
// non-negative-integer "size" lands on: [digest-fn/] hash/size[/metadata...].
func splitDigestTail(rest []string) (hash string, size int64, digestFn *string, metadata []string, err error) {
	if len(rest) >= 2 {
		if n, ok := parseSize(rest[1]); ok {
			return rest[0], n, nil, rest[2:], nil
		}
	}
	if len(rest) >= 3 {
		if n, ok := parseSize(rest[2]); ok {
			fn := rest[0]
			return rest[1], n, &fn, rest[3:], nil
		}
	}
	return "", 0, nil, nil, cerrors.New(cerrors.InvalidArgument, "missing or unparseable hash/size segments")
}

func parseSize(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Render produces the canonical resource-name string for rn. Parsing
// Render(rn) reproduces an equivalent ResourceName.
func (rn ResourceName) Render() string {
	var parts []string
	if rn.InstanceName != "" {
		parts = append(parts, rn.InstanceName)
	}
	if rn.UUID != nil {
		parts = append(parts, "uploads", *rn.UUID)
	}
	if rn.Compressor != nil {
		parts = append(parts, "compressed-blobs", *rn.Compressor)
	} else {
		parts = append(parts, "blobs")
	}
	if rn.DigestFunction != nil {
		parts = append(parts, *rn.DigestFunction)
	}
	parts = append(parts, rn.Hash, strconv.FormatInt(rn.ExpectedSize, 10))
	if rn.OptionalMetadata != nil {
		parts = append(parts, *rn.OptionalMetadata)
	}
	return strings.Join(parts, "/")
}

// Info converts the resource name's digest fields into a digest.Info.
func (rn ResourceName) Info() (Info, error) {
	return New(rn.Hash, rn.ExpectedSize)
}

// NewUploadResourceName builds the resource name a client uses to open
// a fresh upload stream for d: instance_name/uploads/{uuid}/blobs/hash/size,
// with a freshly generated, randomly-seeded UUID identifying this
// particular upload attempt (a client may retry the same digest with a
// different UUID without colliding with an in-flight upload).
func NewUploadResourceName(instanceName string, d Info) ResourceName {
	id := uuid.New().String()
	return ResourceName{
		InstanceName: instanceName,
		UUID:         &id,
		Hash:         d.Hash,
		ExpectedSize: d.SizeBytes,
	}
}

// ValidUUID reports whether s parses as a RFC 4122 UUID, the format
// the uploads/{uuid}/ resource-name segment is expected to carry.
func ValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
