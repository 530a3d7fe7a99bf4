package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeris-project/aeris/internal/store"
)

var today = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

type fakeCoverage struct {
	rows   []store.CoverageRow
	err    error
	called bool
}

func (f *fakeCoverage) Coverage(context.Context, []string, int) ([]store.CoverageRow, error) {
	f.called = true
	return f.rows, f.err
}

func newTestTracker(reader CoverageReader) *Tracker {
	tr := NewTracker(reader, zerolog.Nop())
	tr.now = func() time.Time { return today }
	return tr
}

func coverageRow(city string, records int64, firstDaysAgo, distinctDays int) store.CoverageRow {
	return store.CoverageRow{
		City:         city,
		RecordCount:  records,
		EarliestDate: today.AddDate(0, 0, -firstDaysAgo),
		LatestDate:   today,
		DistinctDays: distinctDays,
	}
}

func TestStatusEmptyCityList(t *testing.T) {
	reader := &fakeCoverage{}
	verdict, err := newTestTracker(reader).Status(context.Background(), nil, 30)
	require.NoError(t, err)

	assert.False(t, verdict.Complete)
	assert.Zero(t, verdict.TotalCities)
	assert.False(t, reader.called, "no query without cities")
}

func TestStatusMissingCity(t *testing.T) {
	reader := &fakeCoverage{rows: []store.CoverageRow{coverageRow("London", 700, 29, 30)}}
	verdict, err := newTestTracker(reader).Status(context.Background(), []string{"London", "Paris"}, 30)
	require.NoError(t, err)

	assert.False(t, verdict.Complete)
	assert.Equal(t, []string{"Paris"}, verdict.MissingCities)
	assert.Equal(t, 1, verdict.CitiesWithData)
}

func TestStatusComplete(t *testing.T) {
	reader := &fakeCoverage{rows: []store.CoverageRow{
		coverageRow("London", 700, 29, 30),
		coverageRow("Paris", 650, 29, 28),
	}}
	verdict, err := newTestTracker(reader).Status(context.Background(), []string{"London", "Paris"}, 30)
	require.NoError(t, err)

	assert.True(t, verdict.Complete)
	assert.Equal(t, 2, verdict.CompleteCities)
	assert.Empty(t, verdict.MissingCities)
}

func TestStatusDynamicTarget(t *testing.T) {
	// First observed 24 days ago: the target shrinks to 25 days so a young
	// city is not judged against history it could not have.
	reader := &fakeCoverage{rows: []store.CoverageRow{coverageRow("Lagos", 500, 24, 23)}}
	verdict, err := newTestTracker(reader).Status(context.Background(), []string{"Lagos"}, 30)
	require.NoError(t, err)

	status := verdict.Cities["Lagos"]
	assert.Equal(t, 25, status.ExpectedDaysTarget)
	assert.Equal(t, 23, status.CompletionThreshold) // round(25 * 0.9)
	assert.True(t, status.Complete)
	assert.True(t, verdict.Complete)
}

func TestStatusBelowThreshold(t *testing.T) {
	reader := &fakeCoverage{rows: []store.CoverageRow{coverageRow("Cairo", 100, 29, 20)}}
	verdict, err := newTestTracker(reader).Status(context.Background(), []string{"Cairo"}, 30)
	require.NoError(t, err)

	status := verdict.Cities["Cairo"]
	assert.Equal(t, 30, status.ExpectedDaysTarget)
	assert.Equal(t, 27, status.CompletionThreshold)
	assert.False(t, status.Complete)
	assert.False(t, verdict.Complete)
}

func TestStatusCityFirstSeenToday(t *testing.T) {
	// One day of presence, one day of data: complete at the floor threshold.
	reader := &fakeCoverage{rows: []store.CoverageRow{coverageRow("Auckland", 3, 0, 1)}}
	verdict, err := newTestTracker(reader).Status(context.Background(), []string{"Auckland"}, 30)
	require.NoError(t, err)

	status := verdict.Cities["Auckland"]
	assert.Equal(t, 1, status.ExpectedDaysTarget)
	assert.Equal(t, 1, status.CompletionThreshold)
	assert.True(t, status.Complete)
}

func TestStatusReaderError(t *testing.T) {
	reader := &fakeCoverage{err: errors.New("connection refused")}
	_, err := newTestTracker(reader).Status(context.Background(), []string{"London"}, 30)
	assert.Error(t, err)
}

func TestCompleteFoldsErrors(t *testing.T) {
	reader := &fakeCoverage{err: errors.New("connection refused")}
	complete := newTestTracker(reader).Complete(context.Background(), []string{"London"}, 30)
	assert.False(t, complete, "a failed check schedules a redundant backfill rather than skipping one")
}

func TestCompleteTrue(t *testing.T) {
	reader := &fakeCoverage{rows: []store.CoverageRow{coverageRow("London", 700, 29, 30)}}
	assert.True(t, newTestTracker(reader).Complete(context.Background(), []string{"London"}, 30))
}
