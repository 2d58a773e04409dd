// Package source obtains one observation per series for a run.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"etf-flow-lab/internal/domain"
)

// Default collector settings.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// Fetcher obtains today's value for one series.
// A returned error means the observation is unavailable for this run.
type Fetcher interface {
	Fetch(ctx context.Context, series string) (domain.Value, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, series string) (domain.Value, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, series string) (domain.Value, error) {
	return f(ctx, series)
}

// Collector fetches every registered series in parallel and assembles an Observation.
type Collector struct {
	series      []string
	fetchers    map[string]Fetcher
	concurrency int
	timeout     time.Duration
	logger      logrus.FieldLogger
}

// NewCollector creates an empty collector.
func NewCollector(logger logrus.FieldLogger) *Collector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Collector{
		fetchers:    make(map[string]Fetcher),
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// Add registers a fetcher for series. Series keep registration order.
// Registering a series twice replaces its fetcher.
func (c *Collector) Add(series string, f Fetcher) *Collector {
	if _, ok := c.fetchers[series]; !ok {
		c.series = append(c.series, series)
	}
	c.fetchers[series] = f
	return c
}

// WithConcurrency bounds the number of in-flight fetches. n < 1 means 1.
func (c *Collector) WithConcurrency(n int) *Collector {
	if n < 1 {
		n = 1
	}
	c.concurrency = n
	return c
}

// WithTimeout sets the per-series fetch deadline. Zero disables it.
func (c *Collector) WithTimeout(d time.Duration) *Collector {
	c.timeout = d
	return c
}

// Series returns the registered series keys.
func (c *Collector) Series() []string {
	out := make([]string, len(c.series))
	copy(out, c.series)
	return out
}

// Collect fetches all series and returns the observation dated date.
// Per-series failures are logged and recorded as unavailable; only
// cancellation of ctx fails the whole collection.
func (c *Collector) Collect(ctx context.Context, date time.Time) (domain.Observation, error) {
	values := make([]domain.Value, len(c.series))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for i, s := range c.series {
		i, s := i, s
		f := c.fetchers[s]
		g.Go(func() error {
			values[i] = c.fetchOne(ctx, s, f)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.Observation{}, fmt.Errorf("collect observations: %w", err)
	}

	byKey := make(map[string]domain.Value, len(c.series))
	for i, s := range c.series {
		byKey[s] = values[i]
	}
	return domain.NewObservation(date, c.series, byKey), nil
}

func (c *Collector) fetchOne(ctx context.Context, series string, f Fetcher) domain.Value {
	log := c.logger.WithField("series", series)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := f.Fetch(ctx, series)
	if err != nil {
		log.WithError(err).Warn("series unavailable")
		return domain.Unavailable()
	}
	if !v.Available() {
		log.Warn("source reported series unavailable")
		return v
	}
	log.WithFields(logrus.Fields{
		"value":   v.String(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("series fetched")
	return v
}
