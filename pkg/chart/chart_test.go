package chart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vkuzn/fiobench/pkg/results"
)

// Four patterns with latencies straddling a 1.0ms threshold.
func syntheticMetrics() []results.PatternMetrics {
	names := []string{"100read_0write", "50read_50write", "70read_30write", "0read_100write"}
	lats := []float64{0.5, 1.2, 0.8, 2.0}

	metrics := make([]results.PatternMetrics, len(names))
	for i := range names {
		metrics[i].Pattern = names[i]
		metrics[i].ReadIOPS = float64(1000 * (i + 1))
		metrics[i].WriteIOPS = float64(500 * i)
		metrics[i].ReadBW = 4096
		metrics[i].WriteBW = 2048
		metrics[i].ReadLatAvg = lats[i]
		metrics[i].WriteLatAvg = lats[i]
		metrics[i].P99 = lats[i] * 1.5
	}
	return metrics
}

func assertImage(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("chart image missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("chart image %s is empty", path)
	}
}

func TestThresholdLineGeometry(t *testing.T) {
	line, err := thresholdLine(4, 1.0)
	if err != nil {
		t.Fatalf("thresholdLine() error: %v", err)
	}
	xys := line.XYs
	if len(xys) != 2 {
		t.Fatalf("threshold line has %d points, want 2", len(xys))
	}
	// The marker sits at exactly the threshold value across the full bar range.
	if xys[0].Y != 1.0 || xys[1].Y != 1.0 {
		t.Errorf("threshold Y = %v/%v, want exactly 1.0", xys[0].Y, xys[1].Y)
	}
	if xys[0].X != -0.5 || xys[1].X != 3.5 {
		t.Errorf("threshold X span = %v..%v, want -0.5..3.5", xys[0].X, xys[1].X)
	}
}

func TestLatency(t *testing.T) {
	dir := t.TempDir()
	path, err := Latency(dir, syntheticMetrics(), 1.0)
	if err != nil {
		t.Fatalf("Latency() error: %v", err)
	}
	if path != filepath.Join(dir, "latency.png") {
		t.Errorf("Latency() path = %q", path)
	}
	assertImage(t, path)
}

func TestIOPSAndBandwidth(t *testing.T) {
	dir := t.TempDir()
	metrics := syntheticMetrics()

	path, err := IOPS(dir, metrics)
	if err != nil {
		t.Fatalf("IOPS() error: %v", err)
	}
	assertImage(t, path)

	path, err = Bandwidth(dir, metrics)
	if err != nil {
		t.Fatalf("Bandwidth() error: %v", err)
	}
	assertImage(t, path)
}

func TestIOPSTimeline(t *testing.T) {
	dir := t.TempDir()
	samples := []results.IOPSample{
		{Time: 1, Value: 5000, Dir: 0},
		{Time: 2, Value: 5100, Dir: 0},
		{Time: 3, Value: 4700, Dir: 0},
		{Time: 1, Value: 1500, Dir: 1},
		{Time: 2, Value: 1400, Dir: 1},
		{Time: 3, Value: 1600, Dir: 1},
	}
	path, err := IOPSTimeline(dir, "50read_50write", samples, []float64{2}, 1.0)
	if err != nil {
		t.Fatalf("IOPSTimeline() error: %v", err)
	}
	if path != filepath.Join(dir, "iops_50read_50write.png") {
		t.Errorf("IOPSTimeline() path = %q", path)
	}
	assertImage(t, path)
}

func TestRenderErrorOnBadDir(t *testing.T) {
	_, err := Latency(filepath.Join(t.TempDir(), "nonexistent"), syntheticMetrics(), 1.0)
	if err == nil {
		t.Fatal("Latency() into missing dir = nil error")
	}
	if _, ok := err.(*RenderError); !ok {
		t.Errorf("error = %T, want *RenderError", err)
	}
}
