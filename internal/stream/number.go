package stream

import "strconv"

// numberDelimiters are the bytes that can legally follow a JSON number:
// whitespace, a structural comma/brace/bracket, or end of input.
const numberDelimiters = " \t\n\r,}]"

// NumberStream incrementally parses a JSON number. Unlike string/array/
// object, a number cannot be partially realized: its textual form is
// only unambiguous once a terminating delimiter (or stream close) has
// been seen, so Value returns nil until Finished.
//
// Grounded on json_stream.hpp's JSONNumberStream, which defers to
// std::from_chars once the token's extent is known; here strconv plays
// the same role.
type NumberStream struct {
	cs       *CharStream
	startIdx int
	begun    bool
	finished bool
	raw      string
	value    float64
}

func newNumberStream(cs *CharStream) *NumberStream {
	return &NumberStream{cs: cs}
}

// Pump implements ValueStream.
func (n *NumberStream) Pump() error {
	if n.finished {
		return nil
	}
	if !n.begun {
		n.startIdx = n.cs.cursorAbs()
		n.begun = true
	}

	endIdx, ok := n.cs.findByteAny(n.startIdx, numberDelimiters)
	if !ok {
		if n.cs.Closed() {
			endIdx = n.cs.bufferedLen()
		} else {
			return nil
		}
	}
	if endIdx == n.startIdx {
		return ErrMalformed
	}
	raw := n.cs.sliceAbs(n.startIdx, endIdx)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ErrMalformed
	}
	n.cs.advanceTo(endIdx)
	n.raw = raw
	n.value = v
	n.finished = true
	return nil
}

// Finished implements ValueStream.
func (n *NumberStream) Finished() bool { return n.finished }

// Value implements ValueStream, returning a float64 once Finished.
func (n *NumberStream) Value() any {
	if !n.finished {
		return nil
	}
	return n.value
}

// Int64 returns the parsed number truncated to an int64, for callers
// that know the field is integral.
func (n *NumberStream) Int64() int64 {
	return int64(n.value)
}

// literalStream parses the bare JSON literals true/false/null. These
// are not a distinct original type, but GetValueStream must dispatch to
// something for them; keeping it unexported matches the object/array/
// string/number stream split rather than adding a fifth public variant.
type literalStream struct {
	cs       *CharStream
	finished bool
	value    any
}

func newLiteralStream(cs *CharStream) *literalStream {
	return &literalStream{cs: cs}
}

func (l *literalStream) Pump() error {
	if l.finished {
		return nil
	}
	b, ok := l.cs.Peek()
	if !ok {
		return nil
	}
	var lit string
	var val any
	switch b {
	case 't':
		lit, val = "true", true
	case 'f':
		lit, val = "false", false
	case 'n':
		lit, val = "null", nil
	default:
		return ErrMalformed
	}
	if l.cs.Size() < len(lit) {
		if l.cs.Closed() {
			return ErrMalformed
		}
		return nil
	}
	start := l.cs.cursorAbs()
	got := l.cs.sliceAbs(start, start+len(lit))
	if got != lit {
		return ErrMalformed
	}
	l.cs.advanceTo(start + len(lit))
	l.value = val
	l.finished = true
	return nil
}

func (l *literalStream) Finished() bool { return l.finished }
func (l *literalStream) Value() any     { return l.value }
