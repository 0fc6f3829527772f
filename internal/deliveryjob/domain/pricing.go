package domain

import "math"

// Quote is a computed price breakdown in minor units.
type Quote struct {
	BasePrice      int64
	DistancePrice  int64
	Total          int64
	Commission     int64
	WorkerPayout   int64
	CommissionRate float64
}

// Price computes total = base + distance*perKm, commission = total*pct/100
// and payout = total - commission. Fractions round half away from zero, so
// total always equals commission + payout.
func Price(distanceKm float64, basePrice, pricePerKm int64, commissionPct float64) Quote {
	if distanceKm < 0 {
		distanceKm = 0
	}
	distancePrice := int64(math.Round(distanceKm * float64(pricePerKm)))
	total := basePrice + distancePrice
	commission := int64(math.Round(float64(total) * commissionPct / 100))
	return Quote{
		BasePrice:      basePrice,
		DistancePrice:  distancePrice,
		Total:          total,
		Commission:     commission,
		WorkerPayout:   total - commission,
		CommissionRate: commissionPct,
	}
}
