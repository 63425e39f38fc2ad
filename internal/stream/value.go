package stream

import "errors"

// ErrStreamClosed is returned by Push when called on an already-closed
// CharStream.
var ErrStreamClosed = errors.New("stream: push on closed stream")

// errNeedMoreData is returned by GetValueStream and the internal string
// scanner when the underlying CharStream does not yet hold enough bytes
// to make progress. It is not returned to callers of Pump; Pump treats
// it as "nothing more to do this call".
var errNeedMoreData = errors.New("stream: need more data")

// ErrMalformed indicates the buffered bytes could never form valid JSON
// at the current parse position, independent of how much more data
// arrives.
var ErrMalformed = errors.New("stream: malformed json")

// ValueStream is an incremental parser for one JSON value. Pump is
// called whenever new bytes may be available (typically from the
// CharStream's subscriber callback) and advances the parser as far as
// the buffered bytes allow. Finished reports whether the value is fully
// parsed; Value returns the realized Go value once Finished is true.
//
// Grounded on json_stream.hpp's JSONValueStream hierarchy: each concrete
// JSON type (object, array, string, number) gets its own parser with its
// own explicit state machine, all driven by repeated calls as the
// backing CharStream grows.
type ValueStream interface {
	// Pump advances parsing using whatever bytes are currently buffered.
	// It returns ErrMalformed if the bytes seen so far can never be
	// valid JSON; otherwise nil, whether or not further progress was
	// made.
	Pump() error
	// Finished reports whether the value has been fully parsed.
	Finished() bool
	// Value returns the parsed Go value. Valid once Finished is true;
	// for streams that support partial reads (string, array, object) it
	// may also return a partial value before completion.
	Value() any
}

// GetValueStream peeks the next non-whitespace byte on cs and
// constructs the matching concrete ValueStream, without consuming it.
// Returns errNeedMoreData if cs has no buffered non-whitespace byte yet.
func GetValueStream(cs *CharStream) (ValueStream, error) {
	b, ok := cs.PopWSAndPeek()
	if !ok {
		if cs.Closed() {
			return nil, ErrMalformed
		}
		return nil, errNeedMoreData
	}
	switch {
	case b == '{':
		return newObjectStream(cs), nil
	case b == '[':
		return newArrayStream(cs), nil
	case b == '"':
		return newStringStream(cs), nil
	case b == 't' || b == 'f' || b == 'n':
		return newLiteralStream(cs), nil
	case b == '-' || (b >= '0' && b <= '9'):
		return newNumberStream(cs), nil
	default:
		return nil, ErrMalformed
	}
}
