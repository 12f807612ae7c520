package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestParseResourceNameBlobs(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/blobs/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "foo_bar", rn.InstanceName)
	require.Nil(t, rn.UUID)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameUploads(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/uploads/UUID-HERE/blobs/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "foo_bar", rn.InstanceName)
	require.NotNil(t, rn.UUID)
	require.Equal(t, "UUID-HERE", *rn.UUID)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameCompressor(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/uploads/UUID-HERE/compressed-blobs/COMPRESSOR/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "foo_bar", rn.InstanceName)
	require.Equal(t, "UUID-HERE", *rn.UUID)
	require.Equal(t, "COMPRESSOR", *rn.Compressor)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameCompressorAndDigestFunction(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/uploads/UUID-HERE/compressed-blobs/COMPRESSOR/blake3/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "COMPRESSOR", *rn.Compressor)
	require.Equal(t, "blake3", *rn.DigestFunction)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameInstanceNameHasSlashes(t *testing.T) {
	rn, err := ParseResourceName("some/slashed/instance/blobs/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "some/slashed/instance", rn.InstanceName)
	require.Nil(t, rn.UUID)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameOptionalMetadata(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/blobs/HASH-HERE/12345/this_is_some_metadata")
	require.NoError(t, err)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.NotNil(t, rn.OptionalMetadata)
	require.Equal(t, "this_is_some_metadata", *rn.OptionalMetadata)
}

func TestParseResourceNameOptionalMetadataWithSlash(t *testing.T) {
	rn, err := ParseResourceName("foo_bar/blobs/HASH-HERE/12345/this_is_some_metadata/with_slashes")
	require.NoError(t, err)
	require.Equal(t, "this_is_some_metadata/with_slashes", *rn.OptionalMetadata)
}

func TestParseResourceNameWithoutInstanceBlobs(t *testing.T) {
	rn, err := ParseResourceName("blobs/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "", rn.InstanceName)
	require.Nil(t, rn.UUID)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameWithoutInstanceUploads(t *testing.T) {
	rn, err := ParseResourceName("uploads/UUID-HERE/blobs/HASH-HERE/12345")
	require.NoError(t, err)
	require.Equal(t, "", rn.InstanceName)
	require.Equal(t, "UUID-HERE", *rn.UUID)
	require.Equal(t, "HASH-HERE", rn.Hash)
	require.Equal(t, int64(12345), rn.ExpectedSize)
}

func TestParseResourceNameMissingHashSize(t *testing.T) {
	_, err := ParseResourceName("foo_bar/blobs")
	require.Error(t, err)
}

func TestParseResourceNameNonNumericSize(t *testing.T) {
	_, err := ParseResourceName("foo_bar/blobs/HASH-HERE/notanumber")
	require.Error(t, err)
}

func TestParseResourceNameNoAnchor(t *testing.T) {
	_, err := ParseResourceName("just/some/path")
	require.Error(t, err)
}

func TestNewUploadResourceNameProducesParseableUUID(t *testing.T) {
	d, err := New("HASH-HERE", 12345)
	require.NoError(t, err)

	rn := NewUploadResourceName("foo_bar", d)
	require.NotNil(t, rn.UUID)
	require.True(t, ValidUUID(*rn.UUID))

	reparsed, err := ParseResourceName(rn.Render())
	require.NoError(t, err)
	require.Equal(t, rn, reparsed)
}

func TestValidUUIDRejectsGarbage(t *testing.T) {
	require.False(t, ValidUUID("not-a-uuid"))
}

func TestResourceNameRenderRoundTrip(t *testing.T) {
	cases := []ResourceName{
		{InstanceName: "foo_bar", Hash: "HASH-HERE", ExpectedSize: 12345},
		{InstanceName: "foo_bar", UUID: strp("UUID-HERE"), Hash: "HASH-HERE", ExpectedSize: 12345},
		{InstanceName: "foo_bar", UUID: strp("UUID-HERE"), Compressor: strp("COMPRESSOR"), Hash: "HASH-HERE", ExpectedSize: 12345},
		{InstanceName: "", Hash: "HASH-HERE", ExpectedSize: 0},
		{InstanceName: "foo_bar", Hash: "HASH-HERE", ExpectedSize: 1, OptionalMetadata: strp("meta/data")},
	}
	for _, rn := range cases {
		rendered := rn.Render()
		reparsed, err := ParseResourceName(rendered)
		require.NoError(t, err, rendered)
		require.Equal(t, rn, reparsed, rendered)
	}
}
