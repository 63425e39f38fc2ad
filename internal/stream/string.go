package stream

import "strings"

// StringStream incrementally parses a JSON string value, exposing the
// partially-decoded text before the closing quote has even arrived --
// useful for surfacing a model's text output token by token.
//
// Grounded on json_stream.hpp's JSONStringStream, which tracks a start
// and end index into the shared CharStream rather than copying bytes
// until the value is known to be complete.
type StringStream struct {
	cs        *CharStream
	scanner   rawStringScanner
	finished  bool
	decoded   string
}

func newStringStream(cs *CharStream) *StringStream {
	return &StringStream{cs: cs}
}

// Pump implements ValueStream.
func (s *StringStream) Pump() error {
	if s.finished {
		return nil
	}
	decoded, err := s.scanner.scan(s.cs)
	if err == errNeedMoreData {
		s.decoded = s.scanner.partial(s.cs)
		return nil
	}
	if err != nil {
		return err
	}
	s.decoded = decoded
	s.finished = true
	return nil
}

// Finished implements ValueStream.
func (s *StringStream) Finished() bool { return s.finished }

// Value implements ValueStream, returning the decoded string seen so
// far (partial, if not yet Finished).
func (s *StringStream) Value() any { return s.decoded }

// String is a convenience accessor equivalent to Value().(string).
func (s *StringStream) String() string { return s.decoded }

// rawStringScanner parses a JSON-quoted string off a CharStream across
// however many Pump calls it takes for the closing quote to arrive. It
// remembers the absolute offset just past the opening quote so repeated
// scans never re-read bytes already confirmed to be part of the string.
type rawStringScanner struct {
	startIdx int // meaningful only once begun is true
	begun    bool
}

func (r *rawStringScanner) scan(cs *CharStream) (string, error) {
	if !r.begun {
		b, ok := cs.PopNextNonWS()
		if !ok {
			if cs.Closed() {
				return "", ErrMalformed
			}
			return "", errNeedMoreData
		}
		if b != '"' {
			return "", ErrMalformed
		}
		r.startIdx = cs.cursorAbs()
		r.begun = true
	}

	endIdx, ok := cs.findUnescapedByte(r.startIdx, '"')
	if !ok {
		if cs.Closed() {
			return "", ErrMalformed
		}
		return "", errNeedMoreData
	}
	raw := cs.sliceAbs(r.startIdx, endIdx)
	cs.advanceTo(endIdx + 1)
	return unescapeJSONString(raw), nil
}

// partial returns the best-effort decoded value of a string still being
// scanned, i.e. everything buffered so far up to (but not including) a
// trailing lone backslash. A trailing \u escape with fewer than four hex
// digits is not dropped; its digits appear as plain text.
func (r *rawStringScanner) partial(cs *CharStream) string {
	if !r.begun {
		return ""
	}
	end := cs.bufferedLen()
	if end <= r.startIdx {
		return ""
	}
	raw := cs.sliceAbs(r.startIdx, end)
	if strings.HasSuffix(raw, `\`) {
		raw = raw[:len(raw)-1]
	}
	return unescapeJSONString(raw)
}

func unescapeJSONString(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i == len(raw)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 < len(raw) {
				b.WriteString(decodeUnicodeEscape(raw[i+1 : i+5]))
				i += 4
			}
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

func decodeUnicodeEscape(hex string) string {
	var r rune
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		}
	}
	return string(r)
}
