package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Pattern is one named read/write mix. On the wire it is the two-element
// form the config format uses:
//
//	["70read_30write", {"rw": "randrw", "rwmixread": 70}]
//
// The overrides map is restricted to the two keys fio needs for a mix;
// anything else is a config error.
type Pattern struct {
	Name    string
	RW      string // fio rw mode: randread, randwrite, randrw, read, write, rw
	ReadPct int    // fio rwmixread: percentage of reads, 0-100
}

// patternOverrides is the second element of the pair form.
type patternOverrides struct {
	RW      *string `json:"rw" yaml:"rw"`
	ReadPct *int    `json:"rwmixread" yaml:"rwmixread"`
}

func (p *Pattern) fromParts(name string, ov patternOverrides) error {
	if name == "" {
		return &ConfigError{Field: "patterns", Msg: "pattern name must not be empty"}
	}
	if ov.RW == nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: missing rw mode", name)}
	}
	p.Name = name
	p.RW = *ov.RW
	if ov.ReadPct != nil {
		p.ReadPct = *ov.ReadPct
	}
	return nil
}

func (p *Pattern) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern must be a [name, overrides] pair: %v", err)}
	}
	if len(pair) != 2 {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern must have exactly 2 elements, got %d", len(pair))}
	}
	var name string
	if err := json.Unmarshal(pair[0], &name); err != nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern name must be a string: %v", err)}
	}
	var ov patternOverrides
	dec := json.NewDecoder(bytes.NewReader(pair[1]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ov); err != nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: %v", name, err)}
	}
	return p.fromParts(name, ov)
}

func (p Pattern) MarshalJSON() ([]byte, error) {
	rw := p.RW
	pct := p.ReadPct
	return json.Marshal([]any{p.Name, patternOverrides{RW: &rw, ReadPct: &pct}})
}

func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) != 2 {
		return &ConfigError{Field: "patterns", Msg: "pattern must be a [name, overrides] pair"}
	}
	var name string
	if err := node.Content[0].Decode(&name); err != nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern name must be a string: %v", err)}
	}
	// node.Decode has no KnownFields equivalent, check the keys by hand.
	if m := node.Content[1]; m.Kind == yaml.MappingNode {
		for i := 0; i < len(m.Content); i += 2 {
			switch key := m.Content[i].Value; key {
			case "rw", "rwmixread":
			default:
				return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: unknown key %q", name, key)}
			}
		}
	}
	var ov patternOverrides
	if err := node.Content[1].Decode(&ov); err != nil {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: %v", name, err)}
	}
	return p.fromParts(name, ov)
}

func (p Pattern) MarshalYAML() (any, error) {
	rw := p.RW
	pct := p.ReadPct
	return []any{p.Name, patternOverrides{RW: &rw, ReadPct: &pct}}, nil
}

// Validate checks the mix is one fio accepts.
func (p Pattern) Validate() error {
	if p.Name == "" {
		return &ConfigError{Field: "patterns", Msg: "pattern name must not be empty"}
	}
	switch p.RW {
	case "read", "write", "randread", "randwrite", "rw", "readwrite", "randrw":
	default:
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: unknown rw mode %q", p.Name, p.RW)}
	}
	if p.ReadPct < 0 || p.ReadPct > 100 {
		return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("pattern %q: rwmixread %d out of range 0-100", p.Name, p.ReadPct)}
	}
	return nil
}
