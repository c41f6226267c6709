package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Sentinel terminates every frame on the wire.
const Sentinel = '#'

// Message is a single command with its positional arguments. Seq numbers
// significant frames on the wire and is echoed by their acknowledgment; it is
// zero everywhere else.
type Message struct {
	Command Command `json:"command"`
	Args    []any   `json:"args,omitempty"`
	Seq     uint64  `json:"seq,omitempty"`
}

func New(cmd Command, args ...any) Message {
	return Message{Command: cmd, Args: args}
}

// Validate checks the command is known and the argument count fits it.
func (m Message) Validate() error {
	if !m.Command.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command)
	}
	lo, hi := m.Command.Arity()
	if n := len(m.Args); n < lo || n > hi {
		return fmt.Errorf("%w: %s takes %d-%d, got %d", ErrArity, m.Command, lo, hi, n)
	}
	return nil
}

var escapedSentinel = []byte(`\u0023`)

// Encode serialises m and appends the sentinel. A sentinel can only occur
// inside a JSON string, where it is escaped so frames split cleanly.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	data = bytes.ReplaceAll(data, []byte{Sentinel}, escapedSentinel)
	return append(data, Sentinel), nil
}

// Decode parses one frame (without its sentinel). On ErrUnknownCommand and
// ErrArity the returned message still carries the decoded command.
func Decode(frame []byte) (Message, error) {
	var m Message
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if m.Command == "" {
		return Message{}, fmt.Errorf("%w: missing command", ErrMalformedFrame)
	}
	for i, a := range m.Args {
		m.Args[i] = normalize(a)
	}
	return m, m.Validate()
}

// normalize turns json.Number into float64 throughout nested lists and
// objects.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}

func (m Message) arg(i int) (any, error) {
	if i < 0 || i >= len(m.Args) {
		return nil, fmt.Errorf("%w: %s has no argument %d", ErrArity, m.Command, i)
	}
	return m.Args[i], nil
}

// Float returns argument i as a number.
func (m Message) Float(i int) (float64, error) {
	v, err := m.arg(i)
	if err != nil {
		return 0, err
	}
	return toFloat(m.Command, i, v)
}

func toFloat(cmd Command, i int, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %s argument %d is %T, want number", ErrArgType, cmd, i, v)
}

// Int returns argument i as an integer. A null argument reads as 0, which is
// how clients name the unnumbered cue ball.
func (m Message) Int(i int) (int, error) {
	v, err := m.arg(i)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	f, err := toFloat(m.Command, i, v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s argument %d is %v, want integer", ErrArgType, m.Command, i, f)
	}
	return int(f), nil
}

func (m Message) Bool(i int) (bool, error) {
	v, err := m.arg(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s argument %d is %T, want bool", ErrArgType, m.Command, i, v)
	}
	return b, nil
}

func (m Message) String(i int) (string, error) {
	v, err := m.arg(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s argument %d is %T, want string", ErrArgType, m.Command, i, v)
	}
	return s, nil
}

// OptionalString returns argument i as a string, or "" when it is absent or
// null.
func (m Message) OptionalString(i int) (string, error) {
	if i >= len(m.Args) || m.Args[i] == nil {
		return "", nil
	}
	return m.String(i)
}

// Object decodes argument i, a JSON object, into v. Fields v does not have
// are rejected, and fields the object leaves out keep v's values.
func (m Message) Object(i int, v any) error {
	a, err := m.arg(i)
	if err != nil {
		return err
	}
	if _, ok := a.(map[string]any); !ok {
		return fmt.Errorf("%w: %s argument %d is %T, want object", ErrArgType, m.Command, i, a)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: %s argument %d: %v", ErrArgType, m.Command, i, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s argument %d: %v", ErrArgType, m.Command, i, err)
	}
	return nil
}

// Pair returns argument i as a two-number list, e.g. a position or the
// (angle, offset) cue telemetry.
func (m Message) Pair(i int) (float64, float64, error) {
	v, err := m.arg(i)
	if err != nil {
		return 0, 0, err
	}
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case []float64:
		return pairFromFloats(m.Command, i, t)
	}
	if len(list) != 2 {
		return 0, 0, fmt.Errorf("%w: %s argument %d is %T, want [x, y]", ErrArgType, m.Command, i, v)
	}
	x, err := toFloat(m.Command, i, list[0])
	if err != nil {
		return 0, 0, err
	}
	y, err := toFloat(m.Command, i, list[1])
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func pairFromFloats(cmd Command, i int, f []float64) (float64, float64, error) {
	if len(f) != 2 {
		return 0, 0, fmt.Errorf("%w: %s argument %d has %d values, want 2", ErrArgType, cmd, i, len(f))
	}
	return f[0], f[1], nil
}

// Strings returns argument i as a list of strings, e.g. foul reasons.
func (m Message) Strings(i int) ([]string, error) {
	v, err := m.arg(i)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, len(t))
		for j, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s argument %d[%d] is %T, want string", ErrArgType, m.Command, i, j, e)
			}
			out[j] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s argument %d is %T, want list of strings", ErrArgType, m.Command, i, v)
}
