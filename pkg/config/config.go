package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params is the fully resolved parameter set for a benchmark run.
// It is immutable once Resolve returns; every component receives it by value.
type Params struct {
	IOEngine         string    `json:"ioengine" yaml:"ioengine"`
	Direct           int       `json:"direct" yaml:"direct"`
	Buffered         int       `json:"buffered" yaml:"buffered"`
	BlockSize        string    `json:"blocksize" yaml:"blocksize"`
	IODepth          int       `json:"iodepth" yaml:"iodepth"`
	Runtime          int       `json:"runtime" yaml:"runtime"` // seconds
	NumJobs          int       `json:"numjobs" yaml:"numjobs"`
	Filename         string    `json:"filename" yaml:"filename"`
	FileSize         string    `json:"file_size" yaml:"file_size"`
	BaseResultsDir   string    `json:"base_results_dir" yaml:"base_results_dir"`
	LatencyThreshold float64   `json:"latency_threshold" yaml:"latency_threshold"` // ms
	Patterns         []Pattern `json:"patterns" yaml:"patterns"`
}

// FileConfig mirrors Params with pointer fields so a loaded config file can
// distinguish "set to zero" from "not set". Unknown keys are rejected.
type FileConfig struct {
	IOEngine         *string   `json:"ioengine" yaml:"ioengine"`
	Direct           *int      `json:"direct" yaml:"direct"`
	Buffered         *int      `json:"buffered" yaml:"buffered"`
	BlockSize        *string   `json:"blocksize" yaml:"blocksize"`
	IODepth          *int      `json:"iodepth" yaml:"iodepth"`
	Runtime          *int      `json:"runtime" yaml:"runtime"`
	NumJobs          *int      `json:"numjobs" yaml:"numjobs"`
	Filename         *string   `json:"filename" yaml:"filename"`
	FileSize         *string   `json:"file_size" yaml:"file_size"`
	BaseResultsDir   *string   `json:"base_results_dir" yaml:"base_results_dir"`
	LatencyThreshold *float64  `json:"latency_threshold" yaml:"latency_threshold"`
	Patterns         []Pattern `json:"patterns" yaml:"patterns"`
}

// Overrides carries the CLI flags the user actually passed. The caller fills
// it from flag.Visit so an untouched flag never shadows a config file value.
type Overrides struct {
	IOEngine         *string
	Direct           *int
	Buffered         *int
	BlockSize        *string
	IODepth          *int
	Runtime          *int
	NumJobs          *int
	Filename         *string
	FileSize         *string
	BaseResultsDir   *string
	LatencyThreshold *float64
}

// ConfigError reports an invalid config file or an invalid parameter after
// the merge.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Defaults returns the built-in parameter set, including the standard four
// read/write mix patterns.
func Defaults() Params {
	return Params{
		IOEngine:         "libaio",
		Direct:           1,
		Buffered:         0,
		BlockSize:        "4k",
		IODepth:          64,
		Runtime:          300,
		NumJobs:          1,
		Filename:         "/tmp/testfile",
		FileSize:         "1G",
		BaseResultsDir:   "./results",
		LatencyThreshold: 1.0,
		Patterns: []Pattern{
			{Name: "100read_0write", RW: "randread", ReadPct: 100},
			{Name: "50read_50write", RW: "randrw", ReadPct: 50},
			{Name: "70read_30write", RW: "randrw", ReadPct: 70},
			{Name: "0read_100write", RW: "randwrite", ReadPct: 0},
		},
	}
}

// LoadFile parses a config file. The format is picked by extension:
// .yaml/.yml is YAML, everything else is JSON. Both decoders run strict, so
// a misspelled key fails instead of silently falling back to a default.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("%s: %v", path, err)}
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("%s: %v", path, err)}
		}
	}
	return &fc, nil
}

// Resolve merges the three parameter sources with fixed precedence:
// CLI overrides > config file > defaults. The merge is field-by-field over
// the schema; there is no dynamic key copying.
func Resolve(base Params, file *FileConfig, cli *Overrides) (Params, error) {
	p := base
	p.Patterns = append([]Pattern(nil), base.Patterns...)

	if file != nil {
		if file.IOEngine != nil {
			p.IOEngine = *file.IOEngine
		}
		if file.Direct != nil {
			p.Direct = *file.Direct
		}
		if file.Buffered != nil {
			p.Buffered = *file.Buffered
		}
		if file.BlockSize != nil {
			p.BlockSize = *file.BlockSize
		}
		if file.IODepth != nil {
			p.IODepth = *file.IODepth
		}
		if file.Runtime != nil {
			p.Runtime = *file.Runtime
		}
		if file.NumJobs != nil {
			p.NumJobs = *file.NumJobs
		}
		if file.Filename != nil {
			p.Filename = *file.Filename
		}
		if file.FileSize != nil {
			p.FileSize = *file.FileSize
		}
		if file.BaseResultsDir != nil {
			p.BaseResultsDir = *file.BaseResultsDir
		}
		if file.LatencyThreshold != nil {
			p.LatencyThreshold = *file.LatencyThreshold
		}
		if file.Patterns != nil {
			p.Patterns = append([]Pattern(nil), file.Patterns...)
		}
	}

	if cli != nil {
		if cli.IOEngine != nil {
			p.IOEngine = *cli.IOEngine
		}
		if cli.Direct != nil {
			p.Direct = *cli.Direct
		}
		if cli.Buffered != nil {
			p.Buffered = *cli.Buffered
		}
		if cli.BlockSize != nil {
			p.BlockSize = *cli.BlockSize
		}
		if cli.IODepth != nil {
			p.IODepth = *cli.IODepth
		}
		if cli.Runtime != nil {
			p.Runtime = *cli.Runtime
		}
		if cli.NumJobs != nil {
			p.NumJobs = *cli.NumJobs
		}
		if cli.Filename != nil {
			p.Filename = *cli.Filename
		}
		if cli.FileSize != nil {
			p.FileSize = *cli.FileSize
		}
		if cli.BaseResultsDir != nil {
			p.BaseResultsDir = *cli.BaseResultsDir
		}
		if cli.LatencyThreshold != nil {
			p.LatencyThreshold = *cli.LatencyThreshold
		}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks the merged parameter set. It runs after Resolve, so a
// failure always means a config file or flag explicitly broke the field.
func (p Params) Validate() error {
	if p.IOEngine == "" {
		return &ConfigError{Field: "ioengine", Msg: "must not be empty"}
	}
	if p.Direct != 0 && p.Direct != 1 {
		return &ConfigError{Field: "direct", Msg: "must be 0 or 1"}
	}
	if p.Buffered != 0 && p.Buffered != 1 {
		return &ConfigError{Field: "buffered", Msg: "must be 0 or 1"}
	}
	// Direct and buffered IO are mutually exclusive. fio would let one of
	// them win silently; reject instead of guessing.
	if p.Direct == 1 && p.Buffered == 1 {
		return &ConfigError{Field: "direct", Msg: "direct=1 conflicts with buffered=1"}
	}
	if p.BlockSize == "" {
		return &ConfigError{Field: "blocksize", Msg: "must not be empty"}
	}
	if p.IODepth < 1 {
		return &ConfigError{Field: "iodepth", Msg: "must be >= 1"}
	}
	if p.Runtime < 1 {
		return &ConfigError{Field: "runtime", Msg: "must be >= 1 second"}
	}
	if p.NumJobs < 1 {
		return &ConfigError{Field: "numjobs", Msg: "must be >= 1"}
	}
	if p.Filename == "" {
		return &ConfigError{Field: "filename", Msg: "must not be empty"}
	}
	if p.FileSize == "" {
		return &ConfigError{Field: "file_size", Msg: "must not be empty"}
	}
	if p.BaseResultsDir == "" {
		return &ConfigError{Field: "base_results_dir", Msg: "must not be empty"}
	}
	if p.LatencyThreshold <= 0 {
		return &ConfigError{Field: "latency_threshold", Msg: "must be > 0"}
	}
	if len(p.Patterns) == 0 {
		return &ConfigError{Field: "patterns", Msg: "at least one pattern is required"}
	}
	seen := make(map[string]bool, len(p.Patterns))
	for _, pat := range p.Patterns {
		if err := pat.Validate(); err != nil {
			return err
		}
		if seen[pat.Name] {
			return &ConfigError{Field: "patterns", Msg: fmt.Sprintf("duplicate pattern name %q", pat.Name)}
		}
		seen[pat.Name] = true
	}
	return nil
}

// WriteFile saves the resolved parameter set as a config file, format picked
// by extension like LoadFile. Loading the written file back and resolving it
// with no CLI overrides yields the identical Params.
func WriteFile(path string, p Params) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
