package bytestream

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelRoundTrip(t *testing.T) {
	ch := NewChannel(4)
	w, r := ch.Split()
	ctx := context.Background()

	go func() {
		require.NoError(t, w.Send(ctx, []byte("hello")))
		require.NoError(t, w.Send(ctx, []byte(" world")))
		require.NoError(t, w.SendEOF())
	}()

	var got []byte
	for {
		chunk, err := r.Recv(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	require.Equal(t, "hello world", string(got))
}

func TestChannelZeroLengthChunkIsNotEOF(t *testing.T) {
	ch := NewChannel(4)
	w, r := ch.Split()
	ctx := context.Background()

	go func() {
		require.NoError(t, w.Send(ctx, []byte{}))
		require.NoError(t, w.Send(ctx, []byte("x")))
		require.NoError(t, w.SendEOF())
	}()

	chunk, err := r.Recv(ctx)
	require.NoError(t, err)
	require.Empty(t, chunk)

	chunk, err = r.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, "x", string(chunk))

	_, err = r.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelIdempotentEOF(t *testing.T) {
	ch := NewChannel(4)
	w, r := ch.Split()

	require.NoError(t, w.SendEOF())
	require.NoError(t, w.SendEOF())

	ctx := context.Background()
	_, err := r.Recv(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestChannelWriterCloseCancelsReader(t *testing.T) {
	ch := NewChannel(1)
	w, r := ch.Split()
	w.Close()

	ctx := context.Background()
	_, err := r.Recv(ctx)
	require.ErrorIs(t, err, ErrChannelClosed)
}

func TestChannelReaderCloseCancelsWriter(t *testing.T) {
	ch := NewChannel(1)
	w, r := ch.Split()
	// Fill the buffer so the next Send would normally block.
	require.NoError(t, w.Send(context.Background(), []byte("a")))
	r.Close()

	err := w.Send(context.Background(), []byte("b"))
	require.ErrorIs(t, err, ErrChannelClosed)
}
