package tuner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_MeansBeforeFull(t *testing.T) {
	h := newHistory(3)
	_, _, hasPrior, full := h.means()
	assert.False(t, hasPrior)
	assert.False(t, full)

	h.push(2)
	h.push(4)
	recent, _, hasPrior, full := h.means()
	assert.Equal(t, 3.0, recent)
	assert.False(t, hasPrior)
	assert.False(t, full)
}

func TestHistory_RecentAndPriorWindows(t *testing.T) {
	// GIVEN window 3 and rewards 1..6
	h := newHistory(3)
	for r := 1.0; r <= 6; r++ {
		h.push(r)
	}

	// THEN recent = mean(4,5,6), prior = mean(1,2,3)
	recent, prior, hasPrior, full := h.means()
	assert.True(t, full)
	assert.True(t, hasPrior)
	assert.Equal(t, 5.0, recent)
	assert.Equal(t, 2.0, prior)
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := newHistory(2)
	for r := 1.0; r <= 7; r++ {
		h.push(r)
	}
	// only the last 2*window rewards survive
	assert.Equal(t, []float64{4, 5, 6, 7}, h.values())
	recent, prior, _, _ := h.means()
	assert.Equal(t, 6.5, recent)
	assert.Equal(t, 4.5, prior)
}
