package index

import (
	"context"
	"regexp"
	"sort"

	"github.com/rs/zerolog"

	"github.com/lakebench/lakebench/pkg/errors"
	"github.com/lakebench/lakebench/pkg/models"
	"github.com/lakebench/lakebench/pkg/storage"
)

// IndexedRunSource reports which run IDs the catalog already holds.
// Implemented by the catalog client.
type IndexedRunSource interface {
	IndexedRunIDs(ctx context.Context) (map[string]bool, error)
}

// A run is considered complete once its statistics document exists.
var completeRunPattern = regexp.MustCompile(
	`engine=([^/]+)/cluster_size=([^/]+)/benchmark=([^/]+)/run_type=([^/]+)/run_id=(\d{8}-\d{6})/statistics\.json$`)

// DiscoverCompleteRuns scans the results prefix for every run that has
// a statistics document.
func DiscoverCompleteRuns(ctx context.Context, store storage.ObjectStore, resultsPrefix string) ([]models.RunPath, error) {
	keys, err := store.List(ctx, resultsPrefix)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIndexFailed, "scan results")
	}
	var runs []models.RunPath
	for _, key := range keys {
		m := completeRunPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		runs = append(runs, models.RunPath{
			Engine:      m[1],
			ClusterSize: m[2],
			Benchmark:   m[3],
			RunType:     m[4],
			RunID:       m[5],
		})
	}
	return runs, nil
}

// SyncOptions filter and control a catalog sync.
type SyncOptions struct {
	// Engine and ClusterSize, when set, restrict which runs are considered.
	Engine      string
	ClusterSize string
	// Force re-publishes run types even when all their runs are indexed.
	Force bool
	// DryRun reports what would be published without writing anything.
	DryRun bool
}

// SyncResult summarizes a sync pass.
type SyncResult struct {
	Discovered     int
	AlreadyIndexed int
	Missing        []models.RunPath
	Published      int
	Failed         int
}

// Syncer discovers runs missing from the catalog and publishes their
// run-type indexes.
type Syncer struct {
	store         storage.ObjectStore
	source        IndexedRunSource
	gen           *Generator
	resultsPrefix string
	resultsURI    string
	catalogBase   string
	logger        zerolog.Logger
}

// NewSyncer wires a Syncer. resultsURI is the fully qualified form of
// resultsPrefix, recorded in published indexes.
func NewSyncer(store storage.ObjectStore, source IndexedRunSource, resultsPrefix, resultsURI, catalogBase string, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:         store,
		source:        source,
		gen:           NewGenerator(store, resultsPrefix, logger),
		resultsPrefix: resultsPrefix,
		resultsURI:    resultsURI,
		catalogBase:   catalogBase,
		logger:        logger.With().Str("component", "sync").Logger(),
	}
}

// Sync finds complete runs absent from the catalog and republishes the
// index of every run type that has at least one missing run.
func (s *Syncer) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	var result SyncResult

	runs, err := DiscoverCompleteRuns(ctx, s.store, s.resultsPrefix)
	if err != nil {
		return result, err
	}
	if opts.Engine != "" {
		runs = filterRuns(runs, func(r models.RunPath) bool { return r.Engine == opts.Engine })
	}
	if opts.ClusterSize != "" {
		runs = filterRuns(runs, func(r models.RunPath) bool { return r.ClusterSize == opts.ClusterSize })
	}
	result.Discovered = len(runs)
	if len(runs) == 0 {
		return result, errors.New(errors.CodeNotFound, "no complete runs found")
	}

	indexed := map[string]bool{}
	if !opts.Force {
		indexed, err = s.source.IndexedRunIDs(ctx)
		if err != nil {
			return result, errors.Wrap(err, errors.CodeIndexFailed, "query indexed runs")
		}
	}

	for _, run := range runs {
		if indexed[run.RunID] {
			result.AlreadyIndexed++
			continue
		}
		result.Missing = append(result.Missing, run)
	}
	if len(result.Missing) == 0 {
		s.logger.Info().Int("discovered", result.Discovered).Msg("catalog already up to date")
		return result, nil
	}

	// Publishing is per run type, so collapse missing runs onto their
	// run-type paths.
	byRunType := make(map[string]models.RunPath)
	for _, run := range result.Missing {
		rt := run
		rt.RunID = ""
		byRunType[rt.Prefix()] = rt
	}
	prefixes := make([]string, 0, len(byRunType))
	for prefix := range byRunType {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	for _, prefix := range prefixes {
		rt := byRunType[prefix]
		if opts.DryRun {
			s.logger.Info().Str("run_type_path", prefix).Msg("dry run, would publish index")
			continue
		}
		idx, err := s.gen.Generate(ctx, rt, s.resultsURI+"/"+prefix)
		if err != nil {
			s.logger.Error().Str("run_type_path", prefix).Err(err).Msg("index generation failed")
			result.Failed++
			continue
		}
		if err := Publish(ctx, s.store, s.resultsPrefix, s.catalogBase, idx); err != nil {
			s.logger.Error().Str("run_type_path", prefix).Err(err).Msg("publish failed")
			result.Failed++
			continue
		}
		result.Published++
	}

	s.logger.Info().
		Int("discovered", result.Discovered).
		Int("already_indexed", result.AlreadyIndexed).
		Int("missing", len(result.Missing)).
		Int("published", result.Published).
		Int("failed", result.Failed).
		Msg("sync complete")
	return result, nil
}

func filterRuns(runs []models.RunPath, keep func(models.RunPath) bool) []models.RunPath {
	out := runs[:0]
	for _, r := range runs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
