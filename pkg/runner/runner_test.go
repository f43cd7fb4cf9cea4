package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakebench/lakebench/pkg/models"
)

// fakeEngine records execution order and fails configured aliases.
type fakeEngine struct {
	mu          sync.Mutex
	executed    []string
	failAliases map[string]bool
	panicAlias  string
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func (f *fakeEngine) Name() string { return "Fake" }

func (f *fakeEngine) Execute(ctx context.Context, seq int, spec models.QuerySpec) models.QueryRecord {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxInFlight, prev, cur) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if spec.Alias == f.panicAlias {
		panic("engine exploded")
	}

	f.mu.Lock()
	f.executed = append(f.executed, spec.Alias)
	f.mu.Unlock()

	status := models.StatusSuccess
	errMsg := ""
	if f.failAliases[spec.Alias] {
		status = models.StatusFailure
		errMsg = "boom"
	}
	return models.QueryRecord{
		Sequence:   seq,
		Alias:      spec.Alias,
		Query:      spec.Sanitized(),
		Status:     status,
		Error:      errMsg,
		ClientTime: time.Millisecond,
	}
}

func (f *fakeEngine) Close() error { return nil }

func specs(aliases ...string) []models.QuerySpec {
	out := make([]models.QuerySpec, len(aliases))
	for i, a := range aliases {
		out[i] = models.QuerySpec{Alias: a, Text: "SELECT 1"}
	}
	return out
}

func TestRunSequential(t *testing.T) {
	eng := &fakeEngine{}
	r, err := New(eng, Config{Mode: ModeSequential, Dataset: "tpcds"}, zerolog.Nop(), nil)
	require.NoError(t, err)

	records, summary, err := r.Run(context.Background(), specs("q1", "q2", "q3"))
	require.NoError(t, err)

	assert.Equal(t, []string{"q1", "q2", "q3"}, eng.executed)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].Sequence)
	assert.Equal(t, 3, records[2].Sequence)

	assert.Equal(t, "Fake", summary.Engine)
	assert.Equal(t, "tpcds", summary.Dataset)
	assert.Equal(t, 3, summary.TotalQueries)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 1, summary.Concurrency)
}

func TestRunTracksFailures(t *testing.T) {
	eng := &fakeEngine{failAliases: map[string]bool{"q2": true}}
	r, err := New(eng, Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)

	records, summary, err := r.Run(context.Background(), specs("q1", "q2", "q3"))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"q2"}, summary.FailedAliases)
	assert.True(t, records[1].Failed())
}

func TestRunConcurrentBatches(t *testing.T) {
	eng := &fakeEngine{delay: 20 * time.Millisecond}
	r, err := New(eng, Config{
		Mode:        ModeConcurrent,
		Concurrency: 2,
		Interval:    time.Millisecond,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)

	records, summary, err := r.Run(context.Background(), specs("q1", "q2", "q3", "q4", "q5"))
	require.NoError(t, err)

	require.Len(t, records, 5)
	// records come back in launch order regardless of completion order
	for i, rec := range records {
		assert.Equal(t, i+1, rec.Sequence)
	}
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 2, summary.Concurrency)
	assert.GreaterOrEqual(t, eng.maxInFlight, int32(2))
}

func TestRunContainsPanics(t *testing.T) {
	eng := &fakeEngine{panicAlias: "q2"}
	r, err := New(eng, Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)

	records, summary, err := r.Run(context.Background(), specs("q1", "q2", "q3"))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.True(t, records[1].Failed())
	assert.Contains(t, records[1].Error, "panic during execution")
}

func TestRunEmptyWorkload(t *testing.T) {
	r, err := New(&fakeEngine{}, Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)

	_, _, err = r.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunCanceledContext(t *testing.T) {
	eng := &fakeEngine{delay: 10 * time.Millisecond}
	r, err := New(eng, Config{}, zerolog.Nop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = r.Run(ctx, specs("q1", "q2"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeSequential, cfg.Mode)
	assert.Equal(t, 5, cfg.Concurrency)

	cfg = Config{Mode: "concurrent"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeConcurrent, cfg.Mode)

	cfg = Config{Mode: "bogus"}
	assert.Error(t, cfg.Validate())

	cfg = Config{Interval: -time.Second}
	assert.Error(t, cfg.Validate())
}
