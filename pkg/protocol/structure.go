// Package protocol implements the study protocol orchestrator: it owns the
// declared protocol structure, the raw heart rate, R-peak and saliva data
// added to it, and the named result caches filled by the compute pipelines.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/actigraph/BioPsyKit/pkg/studydata"
	"github.com/actigraph/BioPsyKit/pkg/validation"
)

// Structure describes the declared structure of a study protocol: study
// parts, phases and subphase durations, up to three nesting levels. A node
// without finer division is represented explicitly as absent, which is
// distinct from a node with zero children.
//
// Key order is preserved through construction and JSON round-trips.
type Structure struct {
	keys     []string
	children map[string]*Structure
	duration int
	kind     structureKind
}

type structureKind int

const (
	kindAbsent structureKind = iota
	kindDuration
	kindNested
)

// maxStructureDepth is study part -> phase -> subphase.
const maxStructureDepth = 3

// NewStructure creates an empty protocol structure.
func NewStructure() *Structure {
	return &Structure{kind: kindNested, children: map[string]*Structure{}}
}

// Add appends a named child with no finer division and returns it. Adding
// children or durations to the returned node upgrades it in place.
func (s *Structure) Add(name string) *Structure {
	child := &Structure{kind: kindAbsent}
	s.put(name, child)
	return child
}

// AddDuration appends a named leaf with the given duration in seconds.
func (s *Structure) AddDuration(name string, seconds int) {
	s.put(name, &Structure{kind: kindDuration, duration: seconds})
}

func (s *Structure) put(name string, child *Structure) {
	if s.kind != kindNested {
		s.kind = kindNested
	}
	if s.children == nil {
		s.children = map[string]*Structure{}
	}
	if _, ok := s.children[name]; !ok {
		s.keys = append(s.keys, name)
	}
	s.children[name] = child
}

// Keys returns the child names in insertion order.
func (s *Structure) Keys() []string {
	return s.keys
}

// Child returns the named child node.
func (s *Structure) Child(name string) (*Structure, bool) {
	child, ok := s.children[name]
	return child, ok
}

// IsAbsent reports whether the node explicitly has no finer division.
func (s *Structure) IsAbsent() bool {
	return s.kind == kindAbsent
}

// Duration returns the duration in seconds of a leaf node, 0 otherwise.
func (s *Structure) Duration() int {
	return s.duration
}

// Subphases returns the node's children as an ordered subphase list. Every
// child must be a duration leaf.
func (s *Structure) Subphases() ([]studydata.Subphase, error) {
	if s.kind != kindNested {
		return nil, validation.NewConfigurationError("structure node has no subphase durations")
	}
	subphases := make([]studydata.Subphase, 0, len(s.keys))
	for _, name := range s.keys {
		child := s.children[name]
		if child.kind != kindDuration {
			return nil, validation.NewConfigurationError(
				"structure entry %q is not a duration leaf", name)
		}
		subphases = append(subphases, studydata.Subphase{Name: name, Duration: float64(child.duration)})
	}
	return subphases, nil
}

// validate checks the depth bound and that durations are positive. Depth
// counts key levels below the root container, so the root is checked with
// depth 0 and a study-part -> phase -> subphase structure bottoms out at
// depth 3.
func (s *Structure) validate(depth int) error {
	if depth > maxStructureDepth {
		return validation.NewConfigurationError(
			"protocol structure exceeds %d nesting levels", maxStructureDepth)
	}
	switch s.kind {
	case kindDuration:
		if s.duration <= 0 {
			return validation.NewConfigurationError("structure duration must be positive, got %d", s.duration)
		}
	case kindNested:
		for _, name := range s.keys {
			if err := s.children[name].validate(depth + 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Equal reports deep equality including key order.
func (s *Structure) Equal(other *Structure) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.kind != other.kind || s.duration != other.duration || len(s.keys) != len(other.keys) {
		return false
	}
	for i, name := range s.keys {
		if other.keys[i] != name {
			return false
		}
		if !s.children[name].Equal(other.children[name]) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the structure preserving key order. Absent nodes
// encode as null, duration leaves as numbers.
func (s *Structure) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Structure) encode(buf *bytes.Buffer) error {
	switch s.kind {
	case kindAbsent:
		buf.WriteString("null")
	case kindDuration:
		buf.WriteString(strconv.Itoa(s.duration))
	case kindNested:
		buf.WriteByte('{')
		for i, name := range s.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encoded, err := json.Marshal(name)
			if err != nil {
				return err
			}
			buf.Write(encoded)
			buf.WriteByte(':')
			if err := s.children[name].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes the structure preserving the key order of the JSON
// object.
func (s *Structure) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	decoded, err := decodeStructure(decoder)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

func decodeStructure(decoder *json.Decoder) (*Structure, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, errors.Wrap(err, "decoding protocol structure failed")
	}
	switch value := token.(type) {
	case nil:
		return &Structure{kind: kindAbsent}, nil
	case json.Number:
		duration, err := value.Int64()
		if err != nil {
			return nil, errors.Wrapf(err, "structure duration %q is not an integer", value)
		}
		return &Structure{kind: kindDuration, duration: int(duration)}, nil
	case json.Delim:
		if value != '{' {
			return nil, errors.Errorf("unexpected token %q in protocol structure", value)
		}
		out := NewStructure()
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, errors.Wrap(err, "decoding protocol structure failed")
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, errors.Errorf("unexpected key token %v in protocol structure", keyToken)
			}
			child, err := decodeStructure(decoder)
			if err != nil {
				return nil, err
			}
			out.put(key, child)
		}
		if _, err := decoder.Token(); err != nil {
			return nil, errors.Wrap(err, "decoding protocol structure failed")
		}
		return out, nil
	default:
		return nil, errors.Errorf("unexpected token %v in protocol structure", token)
	}
}
