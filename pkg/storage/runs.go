package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lakebench/lakebench/pkg/models"
)

// Artifact file names within a run directory.
const (
	StatisticsFile      = "statistics.json"
	TestResultFile      = "test_result.json"
	AggregateReportFile = "AggregateReport.csv"
)

// ListRunIDs finds run_id= directories under a run-type prefix and
// returns the IDs newest first.
func ListRunIDs(ctx context.Context, store ObjectStore, runTypePrefix string) ([]string, error) {
	prefix := ensureSlash(runTypePrefix)
	children, err := store.ListPrefixes(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, child := range children {
		seg := strings.Trim(strings.TrimPrefix(child, prefix), "/")
		id, ok := strings.CutPrefix(seg, "run_id=")
		if !ok || !models.ValidRunID(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// LatestRunID returns the most recent run under a run-type prefix.
func LatestRunID(ctx context.Context, store ObjectStore, runTypePrefix string) (string, error) {
	ids, err := ListRunIDs(ctx, store, runTypePrefix)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no runs under %s", ErrObjectNotFound, runTypePrefix)
	}
	return ids[0], nil
}

// FindLatestStatistics locates the newest statistics file under a
// prefix, relying on timestamps embedded in names sorting
// lexicographically.
func FindLatestStatistics(ctx context.Context, store ObjectStore, prefix string) (string, error) {
	keys, err := store.List(ctx, ensureSlash(prefix))
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, key := range keys {
		base := key[strings.LastIndex(key, "/")+1:]
		if strings.HasPrefix(base, "statistics") && strings.HasSuffix(base, ".json") {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no statistics file under %s", ErrObjectNotFound, prefix)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	return candidates[0], nil
}

// LoadStatistics reads and parses a statistics document.
func LoadStatistics(ctx context.Context, store ObjectStore, objectPath string) (models.Statistics, error) {
	data, err := store.Get(ctx, objectPath)
	if err != nil {
		return nil, err
	}
	var stats models.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", objectPath, err)
	}
	return stats, nil
}

// LoadRunStatistics reads statistics.json for a specific run under a
// run-type prefix, falling back to the newest timestamped statistics
// file when the canonical name is absent.
func LoadRunStatistics(ctx context.Context, store ObjectStore, runTypePrefix, runID string) (models.Statistics, error) {
	base := ensureSlash(runTypePrefix) + "run_id=" + runID + "/"
	stats, err := LoadStatistics(ctx, store, base+StatisticsFile)
	if err == nil || !errors.Is(err, ErrObjectNotFound) {
		return stats, err
	}
	key, findErr := FindLatestStatistics(ctx, store, base)
	if findErr != nil {
		return nil, err
	}
	return LoadStatistics(ctx, store, key)
}

// LoadTestResult reads test_result.json for a run, falling back to the
// older test_result_<run_id>.json name.
func LoadTestResult(ctx context.Context, store ObjectStore, runTypePrefix, runID string) (*models.TestResult, error) {
	base := ensureSlash(runTypePrefix) + "run_id=" + runID + "/"
	for _, name := range []string{TestResultFile, "test_result_" + runID + ".json"} {
		data, err := store.Get(ctx, base+name)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				continue
			}
			return nil, err
		}
		var tr models.TestResult
		if err := json.Unmarshal(data, &tr); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", base+name, err)
		}
		return &tr, nil
	}
	return nil, fmt.Errorf("%w: test_result for run %s", ErrObjectNotFound, runID)
}

// UploadRunArtifacts writes run artifacts under the partitioned layout
// below resultsPrefix. Each entry maps a file name to its content.
func UploadRunArtifacts(ctx context.Context, store ObjectStore, resultsPrefix string, rp models.RunPath, artifacts map[string][]byte) error {
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := store.Put(ctx, ensureSlash(resultsPrefix)+rp.Join(name), artifacts[name]); err != nil {
			return fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}
	return nil
}

// DiscoverRunTypes lists the run-type directories under a base path,
// accepting both run_type= and bare concurrency_N/sequential forms.
func DiscoverRunTypes(ctx context.Context, store ObjectStore, basePrefix string) ([]string, error) {
	children, err := store.ListPrefixes(ctx, ensureSlash(basePrefix))
	if err != nil {
		return nil, err
	}
	var runTypes []string
	for _, child := range children {
		seg := strings.Trim(strings.TrimPrefix(child, ensureSlash(basePrefix)), "/")
		name := strings.TrimPrefix(seg, "run_type=")
		if models.ConcurrencyFromRunType(name) > 0 {
			runTypes = append(runTypes, seg)
		}
	}
	sort.Slice(runTypes, func(i, j int) bool {
		a := models.ConcurrencyFromRunType(strings.TrimPrefix(runTypes[i], "run_type="))
		b := models.ConcurrencyFromRunType(strings.TrimPrefix(runTypes[j], "run_type="))
		return a < b
	})
	return runTypes, nil
}

func ensureSlash(p string) string {
	if p == "" || strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
