package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/vkuzn/fiobench/pkg/bench"
	"github.com/vkuzn/fiobench/pkg/config"
	"github.com/vkuzn/fiobench/pkg/fio"
)

// Flags holds pointers to all supported CLI flags.
type Flags struct {
	ConfigFile  *string
	WriteConfig *string
	FioBinary   *string
	Quiet       *bool

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

func SetupFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	f.ConfigFile = fs.String("config", "", "Path to JSON or YAML config file")
	f.WriteConfig = fs.String("write-config", "", "Save the resolved configuration to this file")
	f.FioBinary = fs.String("fio", "fio", "Path to the fio binary")
	f.Quiet = fs.Bool("quiet", false, "Suppress progress output and summary table")

	f.IOEngine = fs.String("ioengine", "libaio", "IO engine to use")
	f.Direct = fs.Int("direct", 1, "Direct IO mode (0/1)")
	f.Buffered = fs.Int("buffered", 0, "Buffered IO mode (0/1)")
	f.BlockSize = fs.String("blocksize", "4k", "Block size for IO operations")
	f.IODepth = fs.Int("iodepth", 64, "IO depth")
	f.Runtime = fs.Int("runtime", 300, "Test duration per pattern in seconds")
	f.NumJobs = fs.Int("numjobs", 1, "Number of fio jobs")
	f.Filename = fs.String("filename", "/tmp/testfile", "Test file path")
	f.FileSize = fs.String("file_size", "1G", "Test file size")
	f.BaseResultsDir = fs.String("base_results_dir", "./results", "Results directory")
	f.LatencyThreshold = fs.Float64("latency_threshold", 1.0, "Latency threshold in ms for chart markers")
	return f
}

// Overrides collects only the flags the user actually passed, so a default
// flag value never shadows a config file setting.
func (f *Flags) Overrides(fs *flag.FlagSet) *config.Overrides {
	o := &config.Overrides{}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "ioengine":
			o.IOEngine = f.IOEngine
		case "direct":
			o.Direct = f.Direct
		case "buffered":
			o.Buffered = f.Buffered
		case "blocksize":
			o.BlockSize = f.BlockSize
		case "iodepth":
			o.IODepth = f.IODepth
		case "runtime":
			o.Runtime = f.Runtime
		case "numjobs":
			o.NumJobs = f.NumJobs
		case "filename":
			o.Filename = f.Filename
		case "file_size":
			o.FileSize = f.FileSize
		case "base_results_dir":
			o.BaseResultsDir = f.BaseResultsDir
		case "latency_threshold":
			o.LatencyThreshold = f.LatencyThreshold
		}
	})
	return o
}

// LoadConfig resolves defaults, the optional config file, and CLI overrides
// into the final parameter set.
func (f *Flags) LoadConfig(fs *flag.FlagSet) (config.Params, error) {
	var file *config.FileConfig
	if *f.ConfigFile != "" {
		fc, err := config.LoadFile(*f.ConfigFile)
		if err != nil {
			return config.Params{}, err
		}
		file = fc
	}
	return config.Resolve(config.Defaults(), file, f.Overrides(fs))
}

func (f *Flags) MaybeWriteConfig(p config.Params) {
	if *f.WriteConfig == "" {
		return
	}
	if err := config.WriteFile(*f.WriteConfig, p); err != nil {
		fmt.Printf("Warning: failed to write config file: %v\n", err)
		return
	}
	fmt.Printf("Configuration written to %s\n", *f.WriteConfig)
}

func main() {
	f := SetupFlags(flag.CommandLine)
	flag.Parse()

	params, err := f.LoadConfig(flag.CommandLine)
	if err != nil {
		fail(err)
	}
	f.MaybeWriteConfig(params)

	// An interrupt cancels the context, which kills any in-flight fio.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := bench.New(params, &fio.Runner{Binary: *f.FioBinary})
	if err != nil {
		fail(err)
	}
	session.Quiet = *f.Quiet

	if err := session.Run(ctx); err != nil {
		fail(err)
	}
}

func fail(err error) {
	var (
		cfgErr  *config.ConfigError
		execErr *fio.ExecError
	)
	switch {
	case errors.As(err, &cfgErr):
		color.New(color.FgRed).Fprintf(os.Stderr, "Configuration error: %v\n", err)
	case errors.As(err, &execErr):
		color.New(color.FgRed).Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
	default:
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
