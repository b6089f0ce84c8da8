// Package texture describes wall coverings and loads their images.
// Descriptors are immutable values looked up by slot key in a Library that
// callers pass explicitly into each build.
package texture

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// None is the slot key meaning "no covering". Resolving it is not an error.
const None = "none"

// NormalMap describes a companion normal map for a covering.
type NormalMap struct {
	URI               string  `json:"uri"`
	LengthRepeatScale float64 `json:"lengthRepeatScale"`
	HeightRepeatScale float64 `json:"heightRepeatScale"`
	ScaleX            float64 `json:"normalScaleX"`
	ScaleY            float64 `json:"normalScaleY"`
}

// Descriptor describes one wall covering.
type Descriptor struct {
	Name              string     `json:"name"`
	URI               string     `json:"uri"`
	LengthRepeatScale float64    `json:"lengthRepeatScale"`
	HeightRepeatScale float64    `json:"heightRepeatScale"`
	Normal            *NormalMap `json:"normal,omitempty"`
}

// Repeat returns how many times the covering tiles across a panel of the
// given length and height.
func (d Descriptor) Repeat(length, height float64) (u, v float64) {
	return length * d.LengthRepeatScale, height * d.HeightRepeatScale
}

// Repeat returns how many times the normal map tiles across a panel.
func (n NormalMap) Repeat(length, height float64) (u, v float64) {
	return length * n.LengthRepeatScale, height * n.HeightRepeatScale
}

// Library maps slot keys to descriptors. A Library is never mutated after
// construction; With returns a copy.
type Library struct {
	entries map[string]Descriptor
}

// NewLibrary builds a library from the given entries. The map is copied.
func NewLibrary(entries map[string]Descriptor) Library {
	m := make(map[string]Descriptor, len(entries))
	for k, d := range entries {
		m[k] = cloneDescriptor(d)
	}
	return Library{entries: m}
}

// DefaultLibrary returns the stock coverings: bricks and painted plaster.
func DefaultLibrary() Library {
	return NewLibrary(map[string]Descriptor{
		"bricks": {
			Name:              "Bricks",
			URI:               "textures/bricks.jpg",
			LengthRepeatScale: 0.01,
			HeightRepeatScale: 0.01,
			Normal: &NormalMap{
				URI:               "textures/bricks-normal.jpg",
				LengthRepeatScale: 0.01,
				HeightRepeatScale: 0.01,
				ScaleX:            0.8,
				ScaleY:            0.8,
			},
		},
		"painted": {
			Name:              "Painted",
			URI:               "textures/painted.jpg",
			LengthRepeatScale: 0.01,
			HeightRepeatScale: 0.01,
			Normal: &NormalMap{
				URI:               "textures/painted-normal.png",
				LengthRepeatScale: 0.01,
				HeightRepeatScale: 0.01,
				ScaleX:            0.4,
				ScaleY:            0.4,
			},
		},
	})
}

// Lookup returns the descriptor for key. The bool is false when the key is
// unknown. None and the empty key are never found.
func (l Library) Lookup(key string) (Descriptor, bool) {
	if key == "" || key == None {
		return Descriptor{}, false
	}
	d, ok := l.entries[key]
	if !ok {
		return Descriptor{}, false
	}
	return cloneDescriptor(d), true
}

// With returns a new library containing d under key in addition to the
// receiver's entries.
func (l Library) With(key string, d Descriptor) Library {
	m := make(map[string]Descriptor, len(l.entries)+1)
	for k, v := range l.entries {
		m[k] = v
	}
	m[key] = cloneDescriptor(d)
	return Library{entries: m}
}

// Keys returns the slot keys in sorted order.
func (l Library) Keys() []string {
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (l Library) Len() int {
	return len(l.entries)
}

// LoadLibraryJSON reads a JSON object mapping slot keys to descriptors.
func LoadLibraryJSON(r io.Reader) (Library, error) {
	var entries map[string]Descriptor
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return Library{}, fmt.Errorf("texture: decoding library: %w", err)
	}
	for k, d := range entries {
		if d.URI == "" {
			return Library{}, fmt.Errorf("texture: entry %q has no uri", k)
		}
	}
	return NewLibrary(entries), nil
}

func cloneDescriptor(d Descriptor) Descriptor {
	if d.Normal != nil {
		n := *d.Normal
		d.Normal = &n
	}
	return d
}
