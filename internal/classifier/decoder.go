package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// LabelDecoder maps class ids to disease names and back.
type LabelDecoder struct {
	classes []string
	ids     map[string]int
}

func NewLabelDecoder(classes []string) (*LabelDecoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("label decoder has no classes")
	}
	d := &LabelDecoder{
		classes: make([]string, len(classes)),
		ids:     make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if c == "" {
			return nil, fmt.Errorf("empty class name at id %d", i)
		}
		if _, dup := d.ids[c]; dup {
			return nil, fmt.Errorf("duplicate class %q", c)
		}
		d.classes[i] = c
		d.ids[c] = i
	}
	return d, nil
}

// LoadLabelDecoder reads {"classes": [...]} from path.
func LoadLabelDecoder(path string) (*LabelDecoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label decoder: %w", err)
	}
	var raw struct {
		Classes []string `json:"classes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse label decoder: %w", err)
	}
	return NewLabelDecoder(raw.Classes)
}

func (d *LabelDecoder) Len() int { return len(d.classes) }

func (d *LabelDecoder) Decode(id int) (string, error) {
	if id < 0 || id >= len(d.classes) {
		return "", fmt.Errorf("class id %d out of range [0,%d)", id, len(d.classes))
	}
	return d.classes[id], nil
}

func (d *LabelDecoder) Encode(name string) (int, bool) {
	id, ok := d.ids[name]
	return id, ok
}

// Classes returns the class names in id order.
func (d *LabelDecoder) Classes() []string {
	out := make([]string, len(d.classes))
	copy(out, d.classes)
	return out
}
