package models

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RunIDFormat is the timestamp layout for run identifiers. Lexicographic
// order of run IDs equals chronological order.
const RunIDFormat = "20060102-150405"

// NewRunID formats a run identifier from a timestamp.
func NewRunID(t time.Time) string {
	return t.Format(RunIDFormat)
}

var runIDPattern = regexp.MustCompile(`^\d{8}-\d{6}$`)

// ValidRunID reports whether s matches the run ID timestamp layout.
func ValidRunID(s string) bool {
	return runIDPattern.MatchString(s)
}

// clusterCores maps a cluster size label to its total core count.
// Unknown labels yield zero.
var clusterCores = map[string]int{
	"XS":    30,
	"S-2x2": 60,
	"M":     120,
	"S-4x4": 120,
	"L":     240,
}

// ClusterCores returns the total core count for a cluster size label.
func ClusterCores(size string) int {
	return clusterCores[size]
}

// RunPath is a parsed storage partition path of the form
// engine=X/cluster_size=Y/benchmark=Z/run_type=W/run_id=T/.
type RunPath struct {
	Engine      string
	ClusterSize string
	Benchmark   string
	RunType     string
	RunID       string
}

// ParseRunPath parses a partitioned object key prefix. The run_id
// segment is optional. Partition segments may appear in any prefix of
// the canonical order; missing trailing segments are left empty.
func ParseRunPath(p string) (RunPath, error) {
	var rp RunPath
	seen := false
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			continue
		}
		switch key {
		case "engine":
			rp.Engine = value
		case "cluster_size":
			rp.ClusterSize = value
		case "benchmark":
			rp.Benchmark = value
		case "run_type":
			rp.RunType = value
		case "run_id":
			rp.RunID = value
		default:
			continue
		}
		seen = true
	}
	if !seen {
		return rp, fmt.Errorf("no partition segments in %q", p)
	}
	if rp.RunID != "" && !ValidRunID(rp.RunID) {
		return rp, fmt.Errorf("malformed run_id %q", rp.RunID)
	}
	return rp, nil
}

// Prefix renders the path back to an object key prefix with a trailing
// slash, omitting empty trailing segments.
func (rp RunPath) Prefix() string {
	var b strings.Builder
	for _, part := range []struct{ key, value string }{
		{"engine", rp.Engine},
		{"cluster_size", rp.ClusterSize},
		{"benchmark", rp.Benchmark},
		{"run_type", rp.RunType},
		{"run_id", rp.RunID},
	} {
		if part.value == "" {
			break
		}
		b.WriteString(part.key)
		b.WriteString("=")
		b.WriteString(part.value)
		b.WriteString("/")
	}
	return b.String()
}

// Join appends a file name to the run prefix.
func (rp RunPath) Join(name string) string {
	return path.Join(rp.Prefix(), name)
}

// Concurrency extracts the concurrency level from the run type.
// "concurrency_N" and "run_type=concurrency_N" directory forms yield N,
// "sequential" yields 1, anything else yields 0.
func (rp RunPath) Concurrency() int {
	return ConcurrencyFromRunType(rp.RunType)
}

// Cores returns the estimated total cores for the parsed cluster size.
func (rp RunPath) Cores() int {
	return ClusterCores(rp.ClusterSize)
}

// RunTime parses the run ID back into its timestamp.
func (rp RunPath) RunTime() (time.Time, error) {
	return time.Parse(RunIDFormat, rp.RunID)
}

// ConcurrencyFromRunType extracts the numeric level from a run type
// directory name such as "concurrency_8" or "sequential".
func ConcurrencyFromRunType(runType string) int {
	rt := strings.Trim(runType, "/")
	if rt == "sequential" {
		return 1
	}
	if n, ok := strings.CutPrefix(rt, "concurrency_"); ok {
		if level, err := strconv.Atoi(n); err == nil {
			return level
		}
	}
	return 0
}
