package stats

import (
	"regexp"
	"sort"
)

// Engines label the same workload query differently: one side may call
// it "query-3-TPCDS-7" while the other calls it "TPCDS-7". Comparisons
// match on the normalized form.
var queryPrefixPattern = regexp.MustCompile(`^query-\d+-(.+)$`)

// NormalizeQueryName strips the engine-specific "query-N-" prefix.
func NormalizeQueryName(label string) string {
	if m := queryPrefixPattern.FindStringSubmatch(label); m != nil {
		return m[1]
	}
	return label
}

// QueryPair maps one logical query to its label on each side of a
// comparison.
type QueryPair struct {
	Name   string
	Label1 string
	Label2 string
}

// MatchQueries pairs up labels from two statistics documents by
// normalized name. Queries present on only one side are dropped.
func MatchQueries(labels1, labels2 []string) []QueryPair {
	byName := make(map[string]string, len(labels2))
	for _, l := range labels2 {
		byName[NormalizeQueryName(l)] = l
	}

	var pairs []QueryPair
	for _, l := range labels1 {
		name := NormalizeQueryName(l)
		if l2, ok := byName[name]; ok {
			pairs = append(pairs, QueryPair{Name: name, Label1: l, Label2: l2})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs
}
