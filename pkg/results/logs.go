package results

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LatencyStats summarizes a fio latency log. Values are milliseconds.
// HighLatency holds the timestamps (seconds from run start) of averaged
// intervals that exceeded the threshold; the timeline chart marks them.
type LatencyStats struct {
	P50         float64
	P99         float64
	Max         float64
	Samples     int64
	HighLatency []float64
}

// IOPSample is one averaged interval from a fio iops log.
type IOPSample struct {
	Time  float64 // seconds from run start
	Value float64 // IOPS over the interval
	Dir   int     // 0 read, 1 write, 2 trim
}

// fio log lines are "time_ms, value, data_direction, block_size, offset".
// Latency values are nanoseconds in fio 3.x.
func parseLogLine(line string) (timeMs int64, value float64, dir int, err error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("short log line %q", line)
	}
	timeMs, err = strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad timestamp in %q", line)
	}
	value, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad value in %q", line)
	}
	dir, err = strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad direction in %q", line)
	}
	return timeMs, value, dir, nil
}

// LoadLatencyLog replays a fio latency log into a histogram and extracts the
// intervals above thresholdMs. One microsecond to one hour at three
// significant figures covers any disk latency fio can report.
func LoadLatencyLog(path string, thresholdMs float64) (*LatencyStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hist := hdrhistogram.New(1, 3600000000, 3)
	stats := &LatencyStats{}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		timeMs, latNs, _, err := parseLogLine(line)
		if err != nil {
			return nil, err
		}
		latMs := latNs / 1e6
		us := int64(latNs / 1e3)
		// RecordValue rejects out-of-range values, clamp instead of dropping.
		if us < 1 {
			us = 1
		} else if us > 3600000000 {
			us = 3600000000
		}
		_ = hist.RecordValue(us)
		stats.Samples++
		if latMs > stats.Max {
			stats.Max = latMs
		}
		if latMs > thresholdMs {
			stats.HighLatency = append(stats.HighLatency, float64(timeMs)/1000)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if stats.Samples == 0 {
		return nil, fmt.Errorf("latency log %s is empty", path)
	}

	stats.P50 = float64(hist.ValueAtQuantile(50)) / 1000
	stats.P99 = float64(hist.ValueAtQuantile(99)) / 1000
	return stats, nil
}

// LoadIOPSLog parses a fio iops log into per-interval samples, preserving
// file order.
func LoadIOPSLog(path string) ([]IOPSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []IOPSample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		timeMs, iops, dir, err := parseLogLine(line)
		if err != nil {
			return nil, err
		}
		samples = append(samples, IOPSample{
			Time:  float64(timeMs) / 1000,
			Value: iops,
			Dir:   dir,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
