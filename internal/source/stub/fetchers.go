// Package stub provides fixed fetchers for fixtures and tests.
package stub

import (
	"context"
	"fmt"
	"sync/atomic"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/source"
)

// Static returns the same value on every call.
type Static struct {
	value domain.Value
	calls atomic.Int64
}

// NewStatic creates a fetcher that always returns v.
func NewStatic(v domain.Value) *Static {
	return &Static{value: v}
}

// Fetch returns the fixed value.
func (s *Static) Fetch(_ context.Context, _ string) (domain.Value, error) {
	s.calls.Add(1)
	return s.value, nil
}

// Calls returns the number of Fetch calls.
func (s *Static) Calls() int64 {
	return s.calls.Load()
}

// Failing always returns err.
func Failing(err error) source.Fetcher {
	return source.FetcherFunc(func(_ context.Context, series string) (domain.Value, error) {
		return domain.Value{}, fmt.Errorf("fetch %s: %w", series, err)
	})
}

// Blocking waits for ctx to end and returns its error.
func Blocking() source.Fetcher {
	return source.FetcherFunc(func(ctx context.Context, _ string) (domain.Value, error) {
		<-ctx.Done()
		return domain.Value{}, ctx.Err()
	})
}

// Collector builds a collector with one static fetcher per entry of values,
// registered in the order of series.
func Collector(series []string, values map[string]domain.Value) *source.Collector {
	c := source.NewCollector(nil)
	for _, s := range series {
		v, ok := values[s]
		if !ok {
			c.Add(s, Failing(fmt.Errorf("no fixture value")))
			continue
		}
		c.Add(s, NewStatic(v))
	}
	return c
}
