package source_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/source"
	"etf-flow-lab/internal/source/stub"
)

var today = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func TestCollector_AllSeries(t *testing.T) {
	c := stub.Collector([]string{"USO", "BNO"}, map[string]domain.Value{
		"USO": domain.Number(100),
		"BNO": domain.Number(50),
	})

	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, []string{"USO", "BNO"}, obs.Series)
	assert.True(t, obs.Date.Equal(today))
	assert.Equal(t, "100", obs.Values.Get("USO").String())
	assert.Equal(t, "50", obs.Values.Get("BNO").String())
}

func TestCollector_FailureBecomesUnavailable(t *testing.T) {
	logger, hook := test.NewNullLogger()
	c := source.NewCollector(logger).
		Add("USO", stub.NewStatic(domain.Number(100))).
		Add("BNO", stub.Failing(errors.New("page layout changed")))

	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.True(t, obs.Values.Get("USO").Available())
	assert.False(t, obs.Values.Get("BNO").Available())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["series"] == "BNO" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning for BNO")
}

func TestCollector_TimeoutBecomesUnavailable(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := source.NewCollector(logger).
		WithTimeout(20*time.Millisecond).
		Add("SLOW", stub.Blocking()).
		Add("FAST", stub.NewStatic(domain.Number(1)))

	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.False(t, obs.Values.Get("SLOW").Available())
	assert.True(t, obs.Values.Get("FAST").Available())
}

func TestCollector_CancelledContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := source.NewCollector(logger).Add("SLOW", stub.Blocking()).WithTimeout(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Collect(ctx, today)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := source.FetcherFunc(func(ctx context.Context, _ string) (domain.Value, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return domain.Number(1), nil
	})

	logger, _ := test.NewNullLogger()
	c := source.NewCollector(logger).WithConcurrency(2)
	for _, s := range []string{"A", "B", "C", "D", "E", "F"} {
		c.Add(s, slow)
	}

	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.Len(t, obs.Values, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCollector_SentinelFromSource(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := source.NewCollector(logger).Add("USO", stub.NewStatic(domain.Unavailable()))

	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.False(t, obs.Values.Get("USO").Available())
}

func TestCollector_AddReplaces(t *testing.T) {
	first := stub.NewStatic(domain.Number(1))
	second := stub.NewStatic(domain.Number(2))
	c := source.NewCollector(nil).Add("USO", first).Add("USO", second)

	assert.Equal(t, []string{"USO"}, c.Series())
	obs, err := c.Collect(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, "2", obs.Values.Get("USO").String())
	assert.Equal(t, int64(0), first.Calls())
}
