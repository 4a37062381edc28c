// Package fio builds fio invocations for read/write mix patterns and parses
// the JSON output fio produces.
package fio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vkuzn/fiobench/pkg/config"
)

// ResultFile returns the path of the JSON result file for a pattern inside a
// results directory. One pattern, one file.
func ResultFile(dir, pattern string) string {
	return filepath.Join(dir, "result_"+pattern+".json")
}

// LogPrefix returns the base path fio appends _iops.1.log / _lat.1.log to.
func LogPrefix(dir, pattern string) string {
	return filepath.Join(dir, "result_"+pattern)
}

// Args builds the full fio argument vector for one pattern run. Global
// parameters come from the resolved set, the rw mode and read mix from the
// pattern.
func Args(p config.Params, pat config.Pattern, dir string) []string {
	out := ResultFile(dir, pat.Name)
	base := LogPrefix(dir, pat.Name)
	return []string{
		"--name=test",
		fmt.Sprintf("--ioengine=%s", p.IOEngine),
		fmt.Sprintf("--direct=%d", p.Direct),
		fmt.Sprintf("--buffered=%d", p.Buffered),
		fmt.Sprintf("--bs=%s", p.BlockSize),
		fmt.Sprintf("--iodepth=%d", p.IODepth),
		fmt.Sprintf("--filename=%s", p.Filename),
		fmt.Sprintf("--size=%s", p.FileSize),
		fmt.Sprintf("--rw=%s", pat.RW),
		fmt.Sprintf("--rwmixread=%d", pat.ReadPct),
		fmt.Sprintf("--runtime=%d", p.Runtime),
		fmt.Sprintf("--numjobs=%d", p.NumJobs),
		"--time_based",
		"--group_reporting",
		"--norandommap",
		"--output-format=json",
		fmt.Sprintf("--output=%s", out),
		fmt.Sprintf("--write_iops_log=%s", base),
		fmt.Sprintf("--write_lat_log=%s", base),
		"--log_avg_msec=1000",
	}
}

// Structures for fio's JSON output. Only the fields the summary needs; the
// decoder ignores the rest of fio's (large) document.
type Output struct {
	Version     string `json:"fio version"`
	Jobs        []Job  `json:"jobs"`
	ClientStats []Job  `json:"client_stats"` // fio --client mode puts jobs here
}

type Job struct {
	Jobname string `json:"jobname"`
	Error   int    `json:"error"`
	Read    Stats  `json:"read"`
	Write   Stats  `json:"write"`
}

type Stats struct {
	IOPS     float64  `json:"iops"`
	BW       float64  `json:"bw"` // KiB/s
	TotalIOS int64    `json:"total_ios"`
	LatNs    LatStats `json:"lat_ns"`
	ClatNs   LatStats `json:"clat_ns"` // completion latency, carries percentiles
}

type LatStats struct {
	Min        float64            `json:"min"`
	Max        float64            `json:"max"`
	Mean       float64            `json:"mean"`
	Percentile map[string]float64 `json:"percentile"` // keys like "99.000000", values ns
}

// Summary is the per-pattern metric set the aggregator and charts consume.
// Latencies are milliseconds, bandwidth KiB/s.
type Summary struct {
	Pattern     string  `json:"pattern"`
	ReadIOPS    float64 `json:"read_iops"`
	ReadBW      float64 `json:"read_bw"`
	ReadLatAvg  float64 `json:"read_lat_avg"`
	ReadLatMax  float64 `json:"read_lat_max"`
	WriteIOPS   float64 `json:"write_iops"`
	WriteBW     float64 `json:"write_bw"`
	WriteLatAvg float64 `json:"write_lat_avg"`
	WriteLatMax float64 `json:"write_lat_max"`
	P99         float64 `json:"p99_lat"` // weighted across reads and writes
	HasWrite    bool    `json:"has_write"`
}

const nsPerMs = 1e6

// Parse decodes a fio JSON document and derives the pattern summary.
// With group_reporting there is a single job; multiple jobs are summed, with
// latencies weighted by IO count.
func Parse(data []byte, pattern string) (*Summary, error) {
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse fio output: %w", err)
	}
	jobs := out.Jobs
	if len(jobs) == 0 {
		jobs = out.ClientStats
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("parse fio output: no jobs in document")
	}

	s := &Summary{Pattern: pattern}
	var readIOs, writeIOs float64
	var readLatSum, writeLatSum float64 // mean*count, for the weighted average
	var p99Sum float64

	for _, j := range jobs {
		if j.Error != 0 {
			return nil, fmt.Errorf("fio job %q reported error %d", j.Jobname, j.Error)
		}
		rc := float64(j.Read.TotalIOS)
		wc := float64(j.Write.TotalIOS)

		s.ReadIOPS += j.Read.IOPS
		s.ReadBW += j.Read.BW
		readIOs += rc
		readLatSum += j.Read.LatNs.Mean * rc
		if m := j.Read.LatNs.Max / nsPerMs; m > s.ReadLatMax {
			s.ReadLatMax = m
		}

		s.WriteIOPS += j.Write.IOPS
		s.WriteBW += j.Write.BW
		writeIOs += wc
		writeLatSum += j.Write.LatNs.Mean * wc
		if m := j.Write.LatNs.Max / nsPerMs; m > s.WriteLatMax {
			s.WriteLatMax = m
		}

		p99Sum += percentile(j.Read.ClatNs.Percentile, "99.000000")*rc +
			percentile(j.Write.ClatNs.Percentile, "99.000000")*wc
	}

	if readIOs > 0 {
		s.ReadLatAvg = readLatSum / readIOs / nsPerMs
	}
	if writeIOs > 0 {
		s.WriteLatAvg = writeLatSum / writeIOs / nsPerMs
		s.HasWrite = true
	}
	if total := readIOs + writeIOs; total > 0 {
		s.P99 = p99Sum / total / nsPerMs
	}
	return s, nil
}

// ParseFile reads and parses one per-pattern result file.
func ParseFile(path, pattern string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, pattern)
}

func percentile(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return 0
}
