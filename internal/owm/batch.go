package owm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/weather"
)

// BatchStats summarizes one fan-out over a set of cities.
type BatchStats struct {
	Requested   int           `json:"requested"`
	Succeeded   int           `json:"succeeded"`
	Duration    time.Duration `json:"-"`
	SuccessRate float64       `json:"success_rate"`
}

// Fetcher is the single-city fetch dependency of the batch collector.
type Fetcher interface {
	Current(ctx context.Context, city string) (*weather.Measurement, error)
}

// BatchCollector fans out fetches over a city list with bounded concurrency.
// Individual failures are logged and excluded; the batch never fails
// wholesale because of one bad city.
type BatchCollector struct {
	fetcher       Fetcher
	maxConcurrent int
	log           zerolog.Logger
}

// NewBatchCollector returns a collector running at most maxConcurrent
// in-flight fetches.
func NewBatchCollector(fetcher Fetcher, maxConcurrent int, log zerolog.Logger) *BatchCollector {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &BatchCollector{fetcher: fetcher, maxConcurrent: maxConcurrent, log: log}
}

// FetchBatch fetches current weather for all cities. The returned slice is
// best-effort and carries no ordering guarantee relative to the input.
func (b *BatchCollector) FetchBatch(ctx context.Context, cityNames []string) ([]*weather.Measurement, BatchStats) {
	start := time.Now()
	b.log.Info().Int("city_count", len(cityNames)).Int("max_concurrent", b.maxConcurrent).Msg("starting batch weather fetch")

	sem := make(chan struct{}, b.maxConcurrent)
	results := make(chan *weather.Measurement, len(cityNames))

	var wg sync.WaitGroup
	for _, city := range cityNames {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			m, err := b.fetcher.Current(ctx, city)
			if err != nil {
				b.log.Warn().Str("city", city).Err(err).Msg("failed to fetch weather for city")
				return
			}
			results <- m
		}(city)
	}

	wg.Wait()
	close(results)

	measurements := make([]*weather.Measurement, 0, len(cityNames))
	for m := range results {
		measurements = append(measurements, m)
	}

	stats := BatchStats{
		Requested: len(cityNames),
		Succeeded: len(measurements),
		Duration:  time.Since(start),
	}
	if stats.Requested > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Requested)
	}

	b.log.Info().
		Int("requested_cities", stats.Requested).
		Int("successful_fetches", stats.Succeeded).
		Dur("duration", stats.Duration).
		Float64("success_rate", stats.SuccessRate).
		Msg("batch weather fetch completed")

	return measurements, stats
}
