package nn

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// State is an ordered collection of named float vectors, the state dict of a
// model, an optimizer or a scheduler.
//
// Wire format: repeated field 1 holding an entry message with
// 1: name (string) and 2: values (packed double).
type State struct {
	names  []string
	values map[string][]float64
}

func NewState() *State {
	return &State{values: make(map[string][]float64)}
}

func (s *State) Put(name string, xs ...float64) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = append([]float64{}, xs...)
}

func (s *State) Get(name string) ([]float64, bool) {
	xs, ok := s.values[name]
	return xs, ok
}

// Scalar returns the single value stored under name.
func (s *State) Scalar(name string) (float64, error) {
	xs, ok := s.values[name]
	if !ok {
		return 0, errors.Errorf("missing %q in state", name)
	}
	if len(xs) != 1 {
		return 0, errors.Errorf("%q has %d values, want 1", name, len(xs))
	}
	return xs[0], nil
}

// CopyTo copies the vector stored under name into dst, which must have the same length.
func (s *State) CopyTo(name string, dst []float64) error {
	xs, ok := s.values[name]
	if !ok {
		return errors.Errorf("missing %q in state", name)
	}
	if len(xs) != len(dst) {
		return errors.Errorf("%q has %d values, want %d", name, len(xs), len(dst))
	}
	copy(dst, xs)
	return nil
}

func (s *State) Names() []string {
	return append([]string{}, s.names...)
}

func (s *State) Marshal() []byte {
	var b []byte
	for _, name := range s.names {
		var e []byte
		e = protowire.AppendTag(e, 1, protowire.BytesType)
		e = protowire.AppendString(e, name)
		var packed []byte
		for _, x := range s.values[name] {
			packed = protowire.AppendFixed64(packed, math.Float64bits(x))
		}
		e = protowire.AppendTag(e, 2, protowire.BytesType)
		e = protowire.AppendBytes(e, packed)
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, e)
	}
	return b
}

var errCorruptState = errors.New("corrupt state")

func UnmarshalState(b []byte) (*State, error) {
	s := NewState()
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
		}
		b = b[n:]
		if num != 1 || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
			}
			b = b[n:]
			continue
		}
		e, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
		}
		b = b[n:]
		name, xs, err := unmarshalEntry(e)
		if err != nil {
			return nil, err
		}
		s.Put(name, xs...)
	}
	return s, nil
}

func unmarshalEntry(b []byte) (string, []float64, error) {
	var name string
	var xs []float64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
			}
			name, b = v, b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return "", nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
			}
			if len(v)%8 != 0 {
				return "", nil, errors.Wrapf(errCorruptState, "packed doubles of %d bytes", len(v))
			}
			for len(v) > 0 {
				u, m := protowire.ConsumeFixed64(v)
				xs = append(xs, math.Float64frombits(u))
				v = v[m:]
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", nil, errors.Wrap(protowire.ParseError(n), errCorruptState.Error())
			}
			b = b[n:]
		}
	}
	if len(name) == 0 {
		return "", nil, errors.Wrap(errCorruptState, "entry without name")
	}
	return name, xs, nil
}
