package aggregator

import (
	"math"

	"github.com/woodser/haveno-pricenode/pkg/server/sources"
)

// InlierRange returns mean ± k·σ of prices, σ being the population standard deviation.
func InlierRange(prices []float64, k float64) (float64, float64) {
	if len(prices) == 0 {
		return 0, 0
	}

	mean := Mean(prices)

	sumSquaredDev := 0.0
	for _, p := range prices {
		d := p - mean
		sumSquaredDev += d * d
	}
	stdDev := math.Sqrt(sumSquaredDev / float64(len(prices)))

	return mean - k*stdDev, mean + k*stdDev
}

// Mean is the arithmetic mean of prices, 0 for an empty slice.
func Mean(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// FilterInliers keeps the rates whose price lies in the closed inlier range, preserving order.
// When nothing survives it returns the input unchanged and fellBack is true.
func FilterInliers(rates []sources.Rate, k float64) (inliers []sources.Rate, lower, upper float64, fellBack bool) {
	lower, upper = InlierRange(priceValues(rates), k)

	inliers = make([]sources.Rate, 0, len(rates))
	for _, r := range rates {
		if r.Price >= lower && r.Price <= upper {
			inliers = append(inliers, r)
		}
	}

	if len(inliers) == 0 {
		return rates, lower, upper, true
	}
	return inliers, lower, upper, false
}

func priceValues(rates []sources.Rate) []float64 {
	out := make([]float64, len(rates))
	for i, r := range rates {
		out[i] = r.Price
	}
	return out
}
