// Package bench sequences a full benchmark run: preflight, one fio
// invocation per pattern, aggregation, chart rendering, summary output.
package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/vkuzn/fiobench/pkg/chart"
	"github.com/vkuzn/fiobench/pkg/config"
	"github.com/vkuzn/fiobench/pkg/fio"
	"github.com/vkuzn/fiobench/pkg/results"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen)
	cyan  = color.New(color.FgCyan)
)

// Session is one benchmark run. The results directory is created by New and
// threaded through every component; nothing in the run touches files outside
// it except the test file itself.
type Session struct {
	Params config.Params
	Runner *fio.Runner
	Dir    string

	// Quiet disables the progress bar and summary table. Tests set it.
	Quiet bool
}

// New creates the timestamped results directory under base_results_dir.
func New(p config.Params, r *fio.Runner) (*Session, error) {
	dir := filepath.Join(p.BaseResultsDir, "run_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Session{Params: p, Runner: r, Dir: dir}, nil
}

// Run executes every pattern in order, then aggregates and renders. Any
// pattern failure aborts the rest of the sequence and no chart is produced.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Runner.CheckBinary(ctx); err != nil {
		return err
	}
	if err := s.Runner.Prepare(s.Params); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !s.Quiet {
		s.printConfig()
		bar = progressbar.NewOptions(len(s.Params.Patterns),
			progressbar.OptionSetDescription("Running patterns"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	for i, pat := range s.Params.Patterns {
		if !s.Quiet {
			cyan.Printf("[%d/%d] %s (%s, rwmixread=%d, runtime=%ds)\n",
				i+1, len(s.Params.Patterns), pat.Name, pat.RW, pat.ReadPct, s.Params.Runtime)
		}
		start := time.Now()
		if _, err := s.Runner.Run(ctx, s.Params, pat, s.Dir); err != nil {
			return err
		}
		if !s.Quiet {
			fmt.Printf("  done in %s\n", time.Since(start).Round(time.Second))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	metrics, err := results.Load(s.Dir, s.Params.Patterns, s.Params.LatencyThreshold)
	if err != nil {
		return err
	}

	if err := s.render(metrics); err != nil {
		return err
	}

	if !s.Quiet {
		s.printSummary(metrics)
		green.Printf("\nAll results saved in %s\n", s.Dir)
	}
	return nil
}

func (s *Session) render(metrics []results.PatternMetrics) error {
	if _, err := chart.Latency(s.Dir, metrics, s.Params.LatencyThreshold); err != nil {
		return err
	}
	if _, err := chart.IOPS(s.Dir, metrics); err != nil {
		return err
	}
	if _, err := chart.Bandwidth(s.Dir, metrics); err != nil {
		return err
	}

	// Timelines depend on fio's optional iops logs; skip patterns without one.
	for _, m := range metrics {
		samples, err := results.LoadIOPSLog(fio.LogPrefix(s.Dir, m.Pattern) + "_iops.1.log")
		if err != nil || len(samples) == 0 {
			continue
		}
		var high []float64
		if m.Lat != nil {
			high = m.Lat.HighLatency
		}
		if _, err := chart.IOPSTimeline(s.Dir, m.Pattern, samples, high, s.Params.LatencyThreshold); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) printConfig() {
	bold.Println("=== Disk benchmark ===")
	p := s.Params
	fmt.Printf("  ioengine=%s direct=%d buffered=%d bs=%s iodepth=%d numjobs=%d\n",
		p.IOEngine, p.Direct, p.Buffered, p.BlockSize, p.IODepth, p.NumJobs)
	fmt.Printf("  filename=%s size=%s runtime=%ds threshold=%.2fms\n",
		p.Filename, p.FileSize, p.Runtime, p.LatencyThreshold)
	fmt.Printf("  results: %s\n\n", s.Dir)
}

func (s *Session) printSummary(metrics []results.PatternMetrics) {
	fmt.Println()
	bold.Println("Results:")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Pattern", "Read IOPS", "Write IOPS", "Read MiB/s", "Write MiB/s", "Avg Lat", "P99 Lat")
	for _, m := range metrics {
		_ = table.Append(
			m.Pattern,
			fmt.Sprintf("%.0f", m.ReadIOPS),
			fmt.Sprintf("%.0f", m.WriteIOPS),
			fmt.Sprintf("%.1f", m.ReadBW/1024),
			fmt.Sprintf("%.1f", m.WriteBW/1024),
			fmt.Sprintf("%.2f ms", m.AvgLat()),
			fmt.Sprintf("%.2f ms", m.P99Lat()),
		)
	}
	if err := table.Render(); err != nil {
		fmt.Printf("render summary table: %v\n", err)
	}
}
