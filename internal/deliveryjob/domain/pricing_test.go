package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceRoundTrip(t *testing.T) {
	// 5 km at 10.00 base + 3.00/km with 20% commission.
	q := Price(5, 1000, 300, 20)

	assert.Equal(t, int64(1500), q.DistancePrice)
	assert.Equal(t, int64(2500), q.Total)
	assert.Equal(t, int64(500), q.Commission)
	assert.Equal(t, int64(2000), q.WorkerPayout)
}

func TestPriceRoundsFractions(t *testing.T) {
	q := Price(2.345, 750, 199, 17.5)

	assert.Equal(t, int64(467), q.DistancePrice) // 466.655
	assert.Equal(t, int64(1217), q.Total)
	assert.Equal(t, int64(213), q.Commission) // 212.975
	assert.Equal(t, q.Total, q.Commission+q.WorkerPayout)
}

func TestPriceClampsNegativeDistance(t *testing.T) {
	q := Price(-1, 1000, 300, 0)

	assert.Equal(t, int64(1000), q.Total)
	assert.Equal(t, int64(0), q.Commission)
	assert.Equal(t, int64(1000), q.WorkerPayout)
}
