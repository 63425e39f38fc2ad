// Package stream implements the append-only byte stream and the
// incremental JSON parsers that ride on top of it, used to surface a
// model's output to callers as it is generated rather than waiting for
// the full response.
//
// Grounded on char_stream.hpp's CharStream: an append-only buffer with a
// single subscriber callback invoked on every push and on close, and an
// unparsed-index cursor so a consumer can pop bytes without the producer
// ever re-delivering them.
package stream

import "sync"

// CharStream is an append-only byte buffer with a cursor tracking how
// much of it has been consumed, and a single subscriber notified after
// every push and after close. Safe for concurrent Push/Close from one
// producer and Pop/Peek/SetSubscriber from one consumer.
type CharStream struct {
	mu          sync.Mutex
	data        []byte
	unparsedIdx int
	closed      bool
	subscriber  func()
}

// New returns an empty, open CharStream.
func New() *CharStream {
	return &CharStream{}
}

// SetSubscriber registers fn to be called after every future Push and
// after Close. Only one subscriber may be registered at a time,
// mirroring the original's single-subscriber design: CommandCenter
// components each own their own stream rather than sharing one. If data
// is already buffered, fn is invoked once immediately so a late
// subscriber does not miss what already arrived.
func (c *CharStream) SetSubscriber(fn func()) {
	c.mu.Lock()
	c.subscriber = fn
	hasData := len(c.data) > c.unparsedIdx
	c.mu.Unlock()
	if hasData && fn != nil {
		fn()
	}
}

// Push appends s to the stream. Returns ErrStreamClosed if the stream
// has already been closed.
func (c *CharStream) Push(s string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrStreamClosed
	}
	c.data = append(c.data, s...)
	sub := c.subscriber
	c.mu.Unlock()
	if sub != nil {
		sub()
	}
	return nil
}

// PushByte appends a single byte to the stream.
func (c *CharStream) PushByte(b byte) error {
	return c.Push(string([]byte{b}))
}

// Close marks the stream as finished: no further Push calls will
// succeed. Close is idempotent: only the first call notifies the
// subscriber, so a parser waiting on "no more data is coming" can proceed.
func (c *CharStream) Close() {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	sub := c.subscriber
	c.mu.Unlock()
	if !already && sub != nil {
		sub()
	}
}

// Closed reports whether Close has been called.
func (c *CharStream) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Size returns the number of unconsumed bytes currently buffered.
func (c *CharStream) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data) - c.unparsedIdx
}

// Empty reports whether there are no unconsumed bytes buffered.
func (c *CharStream) Empty() bool {
	return c.Size() == 0
}

// Peek returns the next unconsumed byte without advancing the cursor.
func (c *CharStream) Peek() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unparsedIdx >= len(c.data) {
		return 0, false
	}
	return c.data[c.unparsedIdx], true
}

// Pop returns the next unconsumed byte and advances the cursor past it.
func (c *CharStream) Pop() (byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unparsedIdx >= len(c.data) {
		return 0, false
	}
	b := c.data[c.unparsedIdx]
	c.unparsedIdx++
	return b, true
}

// PopNextNonWS pops and discards whitespace until it finds (and
// consumes) a non-whitespace byte, or reports false if the buffered
// bytes ran out first.
func (c *CharStream) PopNextNonWS() (byte, bool) {
	for {
		b, ok := c.Pop()
		if !ok {
			return 0, false
		}
		if !isJSONWhitespace(b) {
			return b, true
		}
	}
}

// PopWSAndPeek discards leading whitespace and then peeks (without
// consuming) the next non-whitespace byte.
func (c *CharStream) PopWSAndPeek() (byte, bool) {
	for {
		b, ok := c.Peek()
		if !ok {
			return 0, false
		}
		if !isJSONWhitespace(b) {
			return b, true
		}
		c.Pop()
	}
}

// LastSeenIdx returns the absolute index of the most recently consumed
// byte, or -1 if nothing has been consumed yet.
func (c *CharStream) LastSeenIdx() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unparsedIdx - 1
}

// View returns a snapshot of the bytes in [start, end). end of -1 means
// "to the end of the currently buffered data".
func (c *CharStream) View(start, end int) View {
	c.mu.Lock()
	defer c.mu.Unlock()
	if end < 0 {
		end = len(c.data)
	}
	out := make([]byte, end-start)
	copy(out, c.data[start:end])
	return View{data: out}
}

// cursorAbs returns the absolute buffer index the consumer cursor is
// currently sitting at. Internal helper for the JSON parsers, which need
// to remember an absolute start offset across incremental Pump calls.
func (c *CharStream) cursorAbs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unparsedIdx
}

// findUnescapedByte scans the buffered data from absolute offset from
// for an unescaped occurrence of target, returning its absolute index.
// ok is false if no such byte is buffered yet.
func (c *CharStream) findUnescapedByte(from int, target byte) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	escaped := false
	for i := from; i < len(c.data); i++ {
		b := c.data[i]
		if escaped {
			escaped = false
			continue
		}
		if b == '\\' {
			escaped = true
			continue
		}
		if b == target {
			return i, true
		}
	}
	return 0, false
}

// findByteAny scans for an unconditional (non-escape-aware) occurrence of
// any byte in targets, used by the number parser to find its terminating
// delimiter.
func (c *CharStream) findByteAny(from int, targets string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := from; i < len(c.data); i++ {
		for j := 0; j < len(targets); j++ {
			if c.data[i] == targets[j] {
				return i, true
			}
		}
	}
	return 0, false
}

// sliceAbs returns the bytes in [start, end) as a string without
// advancing the consumer cursor.
func (c *CharStream) sliceAbs(start, end int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.data[start:end])
}

// bufferedLen returns the total number of bytes ever pushed.
func (c *CharStream) bufferedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// advanceTo moves the consumer cursor forward to absolute index idx.
// idx must be >= the current cursor position.
func (c *CharStream) advanceTo(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx > c.unparsedIdx {
		c.unparsedIdx = idx
	}
}

func isJSONWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}

// View is an immutable snapshot of a span of a CharStream's buffer.
type View struct {
	data []byte
}

func (v View) String() string {
	return string(v.data)
}

// Bytes returns the view's underlying bytes.
func (v View) Bytes() []byte {
	return v.data
}
