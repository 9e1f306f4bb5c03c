package dataset

import (
	"errors"
	"fmt"
)

// Vocabulary is the ordered list of known symptom names. Position i is the
// meaning of feature i in every vector handed to the classifier.
type Vocabulary struct {
	names []string
	index map[string]int
}

func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("no symptom columns")
	}
	v := &Vocabulary{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("empty symptom name at column %d", i)
		}
		if _, dup := v.index[name]; dup {
			return nil, fmt.Errorf("duplicate symptom %q", name)
		}
		v.names[i] = name
		v.index[name] = i
	}
	return v, nil
}

func (v *Vocabulary) Len() int { return len(v.names) }

// Names returns a copy of the symptom names in vocabulary order.
func (v *Vocabulary) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

func (v *Vocabulary) At(i int) string { return v.names[i] }

func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// Index returns the position of name, or -1.
func (v *Vocabulary) Index(name string) int {
	if i, ok := v.index[name]; ok {
		return i
	}
	return -1
}
