// Package results reads back the per-pattern files a run produced and
// extracts the metrics the charts and summary table need.
package results

import (
	"fmt"
	"os"

	"github.com/vkuzn/fiobench/pkg/config"
	"github.com/vkuzn/fiobench/pkg/fio"
)

// MissingResultError reports an expected result file that is absent at
// aggregation time. The runner aborts on failure, so this only fires if
// something outside the tool removed the file.
type MissingResultError struct {
	Pattern string
	Path    string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("missing result for pattern %s: %s", e.Pattern, e.Path)
}

// PatternMetrics is one pattern's aggregated output: the summary fio
// reported plus, when the latency log is present, percentiles replayed from
// the per-interval samples.
type PatternMetrics struct {
	fio.Summary
	Lat *LatencyStats
}

// AvgLat returns the IOPS-weighted average latency across reads and writes,
// in milliseconds.
func (m PatternMetrics) AvgLat() float64 {
	total := m.ReadIOPS + m.WriteIOPS
	if total == 0 {
		return 0
	}
	return (m.ReadLatAvg*m.ReadIOPS + m.WriteLatAvg*m.WriteIOPS) / total
}

// P99Lat prefers the percentile replayed from the latency log over the one
// fio computed, since the log covers the whole run at full resolution.
func (m PatternMetrics) P99Lat() float64 {
	if m.Lat != nil && m.Lat.P99 > 0 {
		return m.Lat.P99
	}
	return m.P99
}

// Load reads the result file for every expected pattern, preserving pattern
// order regardless of how the files sit on disk. thresholdMs feeds the
// high-latency sample extraction from the latency logs.
func Load(dir string, patterns []config.Pattern, thresholdMs float64) ([]PatternMetrics, error) {
	metrics := make([]PatternMetrics, 0, len(patterns))
	for _, pat := range patterns {
		path := fio.ResultFile(dir, pat.Name)
		if _, err := os.Stat(path); err != nil {
			return nil, &MissingResultError{Pattern: pat.Name, Path: path}
		}
		sum, err := fio.ParseFile(path, pat.Name)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", pat.Name, err)
		}

		pm := PatternMetrics{Summary: *sum}
		// The latency log is best-effort: fio versions differ in whether
		// they produce it, and the original results are complete without it.
		if lat, err := LoadLatencyLog(fio.LogPrefix(dir, pat.Name)+"_lat.1.log", thresholdMs); err == nil {
			pm.Lat = lat
		}
		metrics = append(metrics, pm)
	}
	return metrics, nil
}
