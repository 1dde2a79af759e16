// Package prediction defines the data shape returned by the AI prediction
// capability: a mapping from node (model) name to a ranked list of labels.
//
// Node names are arbitrary strings chosen by configuration. Set keeps the
// order in which names were first added so that callers which care about the
// "first" node (the batch summary heuristic) see the same order the model
// returned them in.
package prediction

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ModelPrediction is a single label/score pair from one node.
// Scores are independent confidences in [0,1]; they are not required to sum to 1.
type ModelPrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Set maps node names to their prediction lists, preserving insertion order.
// The zero value is an empty set ready to use.
type Set struct {
	names []string
	preds map[string][]ModelPrediction
}

// NewSet returns an empty Set.
func NewSet() Set {
	return Set{preds: make(map[string][]ModelPrediction)}
}

// Put stores the list for name. Re-putting an existing name replaces its list
// but keeps its original position.
func (s *Set) Put(name string, preds []ModelPrediction) {
	if s.preds == nil {
		s.preds = make(map[string][]ModelPrediction)
	}
	if _, ok := s.preds[name]; !ok {
		s.names = append(s.names, name)
	}
	cp := make([]ModelPrediction, len(preds))
	copy(cp, preds)
	s.preds[name] = cp
}

// Get returns the list for name and whether the name is present.
// A present name may still have an empty list.
func (s Set) Get(name string) ([]ModelPrediction, bool) {
	p, ok := s.preds[name]
	return p, ok
}

// Has reports whether name is present in the set.
func (s Set) Has(name string) bool {
	_, ok := s.preds[name]
	return ok
}

// Names returns node names in insertion order.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of node names, including those with empty lists.
func (s Set) Len() int {
	return len(s.names)
}

// IsEmpty reports whether the set has no names at all.
func (s Set) IsEmpty() bool {
	return len(s.names) == 0
}

// MarshalJSON writes the set as a JSON object with keys in insertion order.
func (s Set) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		list := s.preds[name]
		if list == nil {
			list = []ModelPrediction{}
		}
		val, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of name -> list, keeping document key order.
// A null value for a name is stored as an empty list.
func (s *Set) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("prediction set: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("prediction set: expected object, got %v", tok)
	}

	out := NewSet()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("prediction set: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("prediction set: expected string key, got %v", tok)
		}

		var list []ModelPrediction
		if err := dec.Decode(&list); err != nil {
			return fmt.Errorf("prediction set: node %q: %w", name, err)
		}
		out.Put(name, list)
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("prediction set: %w", err)
	}

	*s = out
	return nil
}
