package cerrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestKindOfRecoversClassification(t *testing.T) {
	err := New(NotFound, "missing blob")
	require.Equal(t, NotFound, KindOf(err))
	require.True(t, Is(err, NotFound))
	require.False(t, Is(err, Internal))
}

func TestKindOfUnclassifiedIsUnknown(t *testing.T) {
	require.Equal(t, Unknown, KindOf(errors.New("plain")))
	require.Equal(t, Unknown, KindOf(nil))
}

func TestWrapPreservesExistingKind(t *testing.T) {
	notFound := New(NotFound, "missing blob")
	wrapped := Wrap(Internal, notFound, "while loading index")
	require.Equal(t, NotFound, KindOf(wrapped), "an already-classified error keeps its Kind even when wrapped with a different one")
	require.Contains(t, wrapped.Error(), "while loading index")
}

func TestWrapClassifiesBareError(t *testing.T) {
	bare := errors.New("disk full")
	wrapped := Wrap(Internal, bare, "writing blob")
	require.Equal(t, Internal, KindOf(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(Internal, nil, "msg"))
	require.NoError(t, Wrapf(Internal, nil, "msg %d", 1))
}

func TestMergeFoldsSecondaryIntoPrimary(t *testing.T) {
	primary := New(FailedPrecondition, "commit failed")
	secondary := errors.New("cleanup unlink failed")

	merged := Merge(primary, secondary)
	require.Equal(t, FailedPrecondition, KindOf(merged), "Merge must preserve the primary error's Kind")
	require.Contains(t, merged.Error(), "commit failed")
	require.Contains(t, merged.Error(), "cleanup unlink failed")
}

func TestMergeWithNilSecondaryReturnsPrimary(t *testing.T) {
	primary := New(Internal, "boom")
	require.Equal(t, primary, Merge(primary, nil))
}

func TestMergeWithNilPrimaryReturnsSecondary(t *testing.T) {
	secondary := New(Internal, "boom")
	require.Equal(t, secondary, Merge(nil, secondary))
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Unknown:            "Unknown",
		NotFound:           "NotFound",
		InvalidArgument:    "InvalidArgument",
		FailedPrecondition: "FailedPrecondition",
		Internal:           "Internal",
		Aborted:            "Aborted",
		DeadlineExceeded:   "DeadlineExceeded",
		Unavailable:        "Unavailable",
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.String())
	}
}
