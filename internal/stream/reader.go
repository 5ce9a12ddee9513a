// Package stream turns chunks arriving from a connection into ordered,
// size-exact reads. Reads are queued FIFO and resolved in arrival order.
// Finish marks the end of input but keeps buffered bytes readable; Close
// tears the reader down and fails every read still waiting.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/woozymasta/mcping/internal/varint"
)

// ErrClosed is the close error used when Close is called with a nil error.
var ErrClosed = errors.New("stream closed")

// Reader buffers pushed chunks and hands them out to pending reads.
// Push is called by the goroutine reading the socket; reads by the session.
type Reader struct {
	mu      sync.Mutex
	buf     []byte
	pending []*Pending
	err     error

	// eof is set by Finish; reads the buffer cannot satisfy fail with it.
	eof error
}

// Pending is an outstanding request for exactly Size bytes.
// It is resolved exactly once, with data or with the reader's close error.
type Pending struct {
	r    *Reader
	size int
	done chan struct{}
	data []byte
	err  error
}

// New returns an empty Reader.
func New() *Reader {
	return &Reader{}
}

// Push appends chunk to the buffer and resolves as many queued reads as the
// buffer can satisfy, head first. Pushing into a closed or finished reader
// does nothing.
func (r *Reader) Push(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil || r.eof != nil {
		return
	}

	r.buf = append(r.buf, chunk...)
	for len(r.pending) > 0 && len(r.buf) >= r.pending[0].size {
		p := r.pending[0]
		r.pending[0] = nil
		r.pending = r.pending[1:]
		p.resolve(r.take(p.size), nil)
	}
}

// Want queues a read of n bytes and returns it without waiting.
// When nothing is queued ahead and the buffer already holds n bytes the
// returned read is resolved immediately.
func (r *Reader) Want(n int) *Pending {
	p := &Pending{r: r, size: n, done: make(chan struct{})}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.err != nil:
		p.resolve(nil, r.err)
	case n < 0:
		p.resolve(nil, fmt.Errorf("stream: negative read size %d", n))
	case len(r.pending) == 0 && len(r.buf) >= n:
		p.resolve(r.take(n), nil)
	case r.eof != nil:
		p.resolve(nil, r.eof)
	default:
		r.pending = append(r.pending, p)
	}

	return p
}

// ReadExact returns exactly n bytes, waiting for pushes if needed.
func (r *Reader) ReadExact(ctx context.Context, n int) ([]byte, error) {
	return r.Want(n).Wait(ctx)
}

// ReadVarInt reads one VarInt a byte at a time.
func (r *Reader) ReadVarInt(ctx context.Context) (uint32, error) {
	return varint.Decode(byteReader{ctx: ctx, r: r})
}

// ReadString reads a VarInt length followed by that many bytes of UTF-8.
func (r *Reader) ReadString(ctx context.Context, maxLen int) (string, error) {
	length, err := r.ReadVarInt(ctx)
	if err != nil {
		return "", err
	}
	if maxLen > 0 && uint64(length) > uint64(maxLen) {
		return "", fmt.Errorf("%w: string of %d bytes, limit %d", varint.ErrOversized, length, maxLen)
	}

	data, err := r.ReadExact(ctx, int(length))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Finish records the end of input. Buffered bytes stay readable; queued
// reads, which the buffer cannot satisfy, fail with err, as will any later
// read larger than what remains. Only the first call has an effect, and
// none after Close.
func (r *Reader) Finish(err error) {
	if err == nil {
		err = ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil || r.eof != nil {
		return
	}

	r.eof = err
	for _, p := range r.pending {
		p.resolve(nil, err)
	}
	r.pending = nil
}

// Close fails every queued read with err and makes the reader unusable.
// Only the first call has an effect.
func (r *Reader) Close(err error) {
	if err == nil {
		err = ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}

	r.err = err
	r.buf = nil
	for _, p := range r.pending {
		p.resolve(nil, err)
	}
	r.pending = nil
}

// Err returns the close error, or nil while the reader is open.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Buffered returns the number of bytes held but not yet handed out.
func (r *Reader) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// take slices n bytes off the head of the buffer; r.mu must be held.
func (r *Reader) take(n int) []byte {
	chunk := r.buf[:n:n]
	r.buf = r.buf[n:]
	return chunk
}

// resolve completes p; r.mu must be held and p must no longer be queued.
func (p *Pending) resolve(data []byte, err error) {
	p.data, p.err = data, err
	close(p.done)
}

// Size returns the requested read size.
func (p *Pending) Size() int {
	return p.size
}

// Done is closed once the read is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the read is resolved. Cancelling ctx closes the whole
// reader with the context error, so no read survives the caller giving up.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.data, p.err
	default:
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		p.r.Close(context.Cause(ctx))
		<-p.done
	}

	return p.data, p.err
}

// byteReader adapts the reader to io.ByteReader for the varint codec.
type byteReader struct {
	ctx context.Context
	r   *Reader
}

func (b byteReader) ReadByte() (byte, error) {
	data, err := b.r.ReadExact(b.ctx, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}
