package stream

// objectState is the object parser's explicit state machine, named
// after json_stream.hpp's ParserState enum for JSONStream.
type objectState int

const (
	objectStart objectState = iota
	objectParsingKey
	objectParsedKey
	objectCreateValueStream
	objectParsingValue
	objectParsedValue
	objectFinish
)

// ObjectStream incrementally parses a JSON object, exposing each field's
// ValueStream under its key as soon as the key and the value's type are
// known.
//
// Grounded on json_stream.hpp's JSONStream.
type ObjectStream struct {
	cs      *CharStream
	state   objectState
	values  map[string]ValueStream
	order   []string
	keyScan rawStringScanner
	curKey  string
	current ValueStream

	finished bool
}

func newObjectStream(cs *CharStream) *ObjectStream {
	return &ObjectStream{cs: cs, values: map[string]ValueStream{}}
}

// Pump implements ValueStream.
func (o *ObjectStream) Pump() error {
	for {
		switch o.state {
		case objectStart:
			b, ok := o.cs.PopNextNonWS()
			if !ok {
				return o.needMoreOrMalformed()
			}
			if b != '{' {
				return ErrMalformed
			}
			o.state = objectParsingKey

		case objectParsingKey:
			b, ok := o.cs.PopWSAndPeek()
			if !ok {
				return o.needMoreOrMalformed()
			}
			if b == '}' && len(o.order) == 0 && o.keyScan == (rawStringScanner{}) {
				o.cs.Pop()
				o.finished = true
				o.state = objectFinish
				return nil
			}
			key, err := o.keyScan.scan(o.cs)
			if err == errNeedMoreData {
				return nil
			}
			if err != nil {
				return err
			}
			o.curKey = key
			o.keyScan = rawStringScanner{}
			o.state = objectParsedKey

		case objectParsedKey:
			b, ok := o.cs.PopNextNonWS()
			if !ok {
				return o.needMoreOrMalformed()
			}
			if b != ':' {
				return ErrMalformed
			}
			o.state = objectCreateValueStream

		case objectCreateValueStream:
			vs, err := GetValueStream(o.cs)
			if err == errNeedMoreData {
				return nil
			}
			if err != nil {
				return err
			}
			o.current = vs
			o.values[o.curKey] = vs
			o.order = append(o.order, o.curKey)
			o.state = objectParsingValue

		case objectParsingValue:
			if err := o.current.Pump(); err != nil {
				return err
			}
			if !o.current.Finished() {
				return nil
			}
			o.current = nil
			o.state = objectParsedValue

		case objectParsedValue:
			b, ok := o.cs.PopNextNonWS()
			if !ok {
				return o.needMoreOrMalformed()
			}
			switch b {
			case ',':
				o.state = objectParsingKey
			case '}':
				o.finished = true
				o.state = objectFinish
				return nil
			default:
				return ErrMalformed
			}

		case objectFinish:
			return nil
		}
	}
}

func (o *ObjectStream) needMoreOrMalformed() error {
	if o.cs.Closed() {
		return ErrMalformed
	}
	return nil
}

// Finished implements ValueStream.
func (o *ObjectStream) Finished() bool { return o.finished }

// Value implements ValueStream, returning the realized values of every
// field whose parsing has completed so far.
func (o *ObjectStream) Value() any {
	out := make(map[string]any, len(o.order))
	for _, k := range o.order {
		v := o.values[k]
		if v.Finished() {
			out[k] = v.Value()
		}
	}
	return out
}

// Field returns the ValueStream for key, if it has been seen yet.
func (o *ObjectStream) Field(key string) (ValueStream, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the object's field names in the order they were parsed.
func (o *ObjectStream) Keys() []string {
	return o.order
}
