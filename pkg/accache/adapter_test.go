package accache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/store"
	"github.com/turbobuild/castore/pkg/store/memory"
)

func TestAdapterGetUpdateRoundTrip(t *testing.T) {
	mem := memory.New(memory.NoExpiration, time.Minute, nil)
	adapter := NewAdapter(map[string]store.Store{"main": mem}, nil)
	ctx := context.Background()

	d, err := digest.New("action-hash", 0)
	require.NoError(t, err)

	want := &ActionResult{
		ExitCode:     0,
		StdoutDigest: "stdout-hash-123",
		OutputFiles: []OutputFile{
			{Path: "out/bin", Digest: "bin-hash-456", SizeBytes: 4096},
		},
	}

	stored, err := adapter.UpdateActionResult(ctx, "main", d, want)
	require.NoError(t, err)
	require.Equal(t, want, stored)

	got, err := adapter.GetActionResult(ctx, "main", d)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestAdapterUnknownInstance(t *testing.T) {
	adapter := NewAdapter(map[string]store.Store{}, nil)
	ctx := context.Background()
	d, err := digest.New("x", 0)
	require.NoError(t, err)

	_, err = adapter.GetActionResult(ctx, "nope", d)
	require.Error(t, err)
}

func TestAdapterPassthroughFalseForNonGrpcStore(t *testing.T) {
	mem := memory.New(memory.NoExpiration, time.Minute, nil)
	adapter := NewAdapter(map[string]store.Store{"main": mem}, nil)

	_, ok := adapter.Passthrough("main")
	require.False(t, ok)
}
