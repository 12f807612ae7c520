package digest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmptyHash(t *testing.T) {
	_, err := New("", 5)
	require.Error(t, err)
}

func TestNewRejectsNegativeSize(t *testing.T) {
	_, err := New("abc", -1)
	require.Error(t, err)
}

func TestStringAndParseContentFileNameRoundTrip(t *testing.T) {
	d, err := New("3031303030303030", 2)
	require.NoError(t, err)
	require.Equal(t, "3031303030303030-2", d.String())

	parsed, err := ParseContentFileName(d.String())
	require.NoError(t, err)
	require.Equal(t, d, parsed)
}

func TestParseContentFileNameRejectsMalformed(t *testing.T) {
	for _, name := range []string{"noseparator", "hash-notanumber", "hash--1"} {
		_, err := ParseContentFileName(name)
		require.Error(t, err, name)
	}
}
