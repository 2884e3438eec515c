package platform

import (
	"math"
	"sort"
)

type stats struct {
	samples int
	min     int
	max     int
	mean    float64
	median  float64
	stdDev  float64
}

// calculateStats sorts data in place.
func calculateStats(data []int) stats {
	if len(data) == 0 {
		return stats{}
	}

	var sum int
	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := float64(sum) / float64(len(data))

	sort.Ints(data)
	var median float64
	mid := len(data) / 2
	if len(data)%2 == 0 {
		median = float64(data[mid-1]+data[mid]) / 2.0
	} else {
		median = float64(data[mid])
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (float64(v) - mean) * (float64(v) - mean)
	}
	stdDev := math.Sqrt(sumOfSquares / float64(len(data)))

	return stats{
		samples: len(data),
		min:     min,
		max:     max,
		mean:    mean,
		median:  median,
		stdDev:  stdDev,
	}
}
