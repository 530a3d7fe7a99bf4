package cities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList(t *testing.T) {
	all := List(0)
	assert.Len(t, all, 24)
	assert.Equal(t, "New York", all[0], "north_america leads the priority order")

	limited := List(5)
	assert.Equal(t, all[:5], limited)

	assert.Len(t, List(1000), 24, "limit above registry size returns all")
	assert.Len(t, List(-1), 24)
}

func TestByRegion(t *testing.T) {
	grouped := ByRegion()
	assert.Len(t, grouped, 6)

	total := 0
	for _, names := range grouped {
		total += len(names)
	}
	assert.Equal(t, len(List(0)), total)

	assert.Contains(t, grouped["europe"], "London")
	assert.Contains(t, grouped["oceania"], "Sydney")
}

func TestRegions(t *testing.T) {
	regions := Regions()
	assert.Equal(t, []string{"north_america", "south_america", "europe", "asia", "africa", "oceania"}, regions)

	// Callers get a copy, not the backing slice.
	regions[0] = "mutated"
	assert.Equal(t, "north_america", Regions()[0])
}
