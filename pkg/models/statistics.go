package models

import "sort"

// TotalLabel is the synthetic label carrying the run-wide aggregate row
// inside a statistics document.
const TotalLabel = "Total"

// QueryStats is one labeled row of a JMeter-style statistics.json
// document. All *ResTime fields are milliseconds.
type QueryStats struct {
	TransactionName      string  `json:"transaction"`
	SampleCount          int     `json:"sampleCount"`
	ErrorCount           int     `json:"errorCount"`
	ErrorPct             float64 `json:"errorPct"`
	MeanResTime          float64 `json:"meanResTime"`
	MedianResTime        float64 `json:"medianResTime"`
	MinResTime           float64 `json:"minResTime"`
	MaxResTime           float64 `json:"maxResTime"`
	Pct1ResTime          float64 `json:"pct1ResTime"`
	Pct2ResTime          float64 `json:"pct2ResTime"`
	Pct3ResTime          float64 `json:"pct3ResTime"`
	Throughput           float64 `json:"throughput"`
	ReceivedKBytesPerSec float64 `json:"receivedKBytesPerSec"`
	SentKBytesPerSec     float64 `json:"sentKBytesPerSec"`
}

// Statistics is a full statistics document keyed by query label.
type Statistics map[string]QueryStats

// Total returns the aggregate row, if present.
func (s Statistics) Total() (QueryStats, bool) {
	t, ok := s[TotalLabel]
	return t, ok
}

// QueryLabels returns all labels except Total, sorted.
func (s Statistics) QueryLabels() []string {
	labels := make([]string, 0, len(s))
	for label := range s {
		if label == TotalLabel {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
