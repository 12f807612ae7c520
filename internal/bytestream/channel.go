// Package bytestream implements the single-producer/single-consumer async
// byte pipe that carries blob bytes between a Store and its caller: a
// bounded queue of length-prefixed chunks with explicit EOF and
// drop-cancellation, patterned after the DropCloserReadHalf/
// DropCloserWriteHalf pair used throughout
// original_source/cas/store/filesystem_store.rs.
package bytestream

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrChannelClosed is returned to whichever half is still operating when
// the other half is dropped (Close'd) before sending/receiving EOF.
var ErrChannelClosed = errors.New("bytestream: channel closed")

// Channel is a bounded pipe of byte chunks. Create one with NewChannel and
// split it into its Read and Write halves.
type Channel struct {
	chunks chan []byte
	done   chan struct{}
	once   sync.Once

	sendMu   sync.Mutex
	eofSent  bool
	closeErr error
}

// NewChannel creates a channel with the given chunk-queue depth (how many
// chunks may be buffered before Send blocks).
func NewChannel(depth int) *Channel {
	if depth < 1 {
		depth = 1
	}
	return &Channel{
		chunks: make(chan []byte, depth),
		done:   make(chan struct{}),
	}
}

// Split returns the write half (producer) and read half (consumer) of c.
func (c *Channel) Split() (*WriteHalf, *ReadHalf) {
	return &WriteHalf{c: c}, &ReadHalf{c: c}
}

func (c *Channel) closeWith(err error) {
	c.once.Do(func() {
		c.sendMu.Lock()
		c.closeErr = err
		c.sendMu.Unlock()
		close(c.done)
	})
}

// WriteHalf is the producer side of a Channel.
type WriteHalf struct{ c *Channel }

// Send enqueues data as the next chunk, suspending under backpressure.
// Sending a zero-length chunk is valid and is not interpreted as EOF.
func (w *WriteHalf) Send(ctx context.Context, data []byte) error {
	w.c.sendMu.Lock()
	if w.c.eofSent {
		w.c.sendMu.Unlock()
		return errors.New("bytestream: send after EOF")
	}
	w.c.sendMu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case w.c.chunks <- buf:
		return nil
	case <-w.c.done:
		return w.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendEOF marks the end of the stream. Calling it more than once is a
// no-op, so callers don't need to track whether they already closed out.
func (w *WriteHalf) SendEOF() error {
	w.c.sendMu.Lock()
	if w.c.eofSent {
		w.c.sendMu.Unlock()
		return nil
	}
	w.c.eofSent = true
	w.c.sendMu.Unlock()
	select {
	case w.c.chunks <- nil:
	case <-w.c.done:
	}
	return nil
}

// Close cancels the channel from the producer side, waking any blocked
// Recv with ErrChannelClosed. It is the drop-cancellation mechanism: call
// it when the producer can no longer continue (e.g. its own upstream read
// failed) without having sent EOF.
func (w *WriteHalf) Close() {
	w.c.closeWith(ErrChannelClosed)
}

func (w *WriteHalf) closedErr() error {
	w.c.sendMu.Lock()
	defer w.c.sendMu.Unlock()
	if w.c.closeErr != nil {
		return w.c.closeErr
	}
	return ErrChannelClosed
}

// ReadHalf is the consumer side of a Channel.
type ReadHalf struct{ c *Channel }

// Recv returns the next chunk, io.EOF once the producer has called
// SendEOF and all prior chunks have been drained, or ErrChannelClosed (or
// ctx.Err()) if the producer or the caller gave up.
func (r *ReadHalf) Recv(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-r.c.chunks:
		if !ok {
			return nil, io.EOF
		}
		if chunk == nil {
			return nil, io.EOF
		}
		return chunk, nil
	case <-r.c.done:
		return nil, r.closedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the channel from the consumer side, waking a blocked Send
// with ErrChannelClosed. Call it when the caller no longer wants the rest
// of the blob (e.g. an upstream RPC timeout or cancellation).
func (r *ReadHalf) Close() {
	r.c.closeWith(ErrChannelClosed)
}

func (r *ReadHalf) closedErr() error {
	r.c.sendMu.Lock()
	defer r.c.sendMu.Unlock()
	if r.c.closeErr != nil {
		return r.c.closeErr
	}
	return ErrChannelClosed
}
