package memory

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/turbobuild/castore/internal/castoremetrics"
	"github.com/turbobuild/castore/pkg/digest"
	"github.com/turbobuild/castore/pkg/store"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("abc", 5)
	require.NoError(t, err)

	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("hello")))

	size, ok, err := s.Has(ctx, d)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5), size)

	got, err := store.GetPartUnchunked(ctx, s, d, 0, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestMemoryStorePartialRead(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("part", 11)
	require.NoError(t, err)
	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("hello world")))

	length := int64(5)
	got, err := store.GetPartUnchunked(ctx, s, d, 6, &length)
	require.NoError(t, err)
	require.Equal(t, "world", string(got))
}

func TestMemoryStoreOffsetBeyondEndYieldsEmpty(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("overrun", 5)
	require.NoError(t, err)
	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("hello")))

	got, err := store.GetPartUnchunked(ctx, s, d, 5, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = store.GetPartUnchunked(ctx, s, d, 1000, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryStoreNegativeOffsetRejected(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("neg", 5)
	require.NoError(t, err)
	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("hello")))

	_, err = store.GetPartUnchunked(ctx, s, d, -1, nil)
	require.Error(t, err)
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("missing", 1)
	require.NoError(t, err)

	_, ok, err := s.Has(ctx, d)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.GetPartUnchunked(ctx, s, d, 0, nil)
	require.Error(t, err)
}

func TestMemoryStoreMetricsObserveOpsAndGauges(t *testing.T) {
	m := castoremetrics.NewStoreMetrics("mem-metrics-test")
	reg := prometheus.NewRegistry()
	m.Register(reg)

	s := New(NoExpiration, time.Minute, m)
	ctx := context.Background()
	d, err := digest.New("metrics", 5)
	require.NoError(t, err)

	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("hello")))
	_, _, err = s.Has(ctx, d)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var sawSize bool
	for _, f := range families {
		switch f.GetName() {
		case "castore_store_size_bytes":
			for _, metric := range f.GetMetric() {
				if metric.GetGauge().GetValue() == 5 {
					sawSize = true
				}
			}
		}
	}
	require.True(t, sawSize, "size gauge should reflect the stored blob's length")

	s.Delete(d)
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "castore_store_size_bytes" {
			for _, metric := range f.GetMetric() {
				require.Equal(t, float64(0), metric.GetGauge().GetValue())
			}
		}
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := New(NoExpiration, time.Minute, nil)
	ctx := context.Background()
	d, err := digest.New("del", 3)
	require.NoError(t, err)
	require.NoError(t, store.UpdateOneshot(ctx, s, d, []byte("abc")))

	s.Delete(d)
	_, ok, err := s.Has(ctx, d)
	require.NoError(t, err)
	require.False(t, ok)
}
