package scoring

import (
	"math"
	"sort"
)

// hundredths in 100.00%.
const fullCents = 10000

// Percentages converts raw scores to percentages with two decimals using the
// largest-remainder (Hamilton) method. The work is done in integer
// hundredths so the result sums to exactly 100.00 whenever any score is
// positive. A zero total yields all zeros. Negative and NaN scores count as
// zero; +Inf scores share the whole 100 between them.
func Percentages(raw []float64) []float64 {
	out := make([]float64, len(raw))
	scaled := scale(raw)
	total := 0.0
	for _, r := range scaled {
		total += r
	}
	if !(total > 0) {
		return out
	}

	cents := make([]int64, len(raw))
	remainders := make([]float64, len(raw))
	var sum int64
	for i, r := range scaled {
		exact := r / total * fullCents
		floor := math.Floor(exact)
		cents[i] = int64(floor)
		remainders[i] = exact - floor
		sum += cents[i]
	}

	order := make([]int, len(raw))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })

	deficit := fullCents - sum
	for k := 0; deficit > 0 && len(order) > 0; k = (k + 1) % len(order) {
		cents[order[k]]++
		deficit--
	}
	// Float error can overshoot by a hundredth; take it back from the
	// smallest remainders.
	for k := len(order) - 1; deficit < 0 && k >= 0; k-- {
		if cents[order[k]] > 0 {
			cents[order[k]]--
			deficit++
		}
	}

	for i, c := range cents {
		out[i] = float64(c) / 100
	}
	return out
}

// scale divides every usable score by the largest so the sum stays within
// [1, n] and cannot overflow.
func scale(raw []float64) []float64 {
	out := make([]float64, len(raw))
	peak := 0.0
	for _, r := range raw {
		if r > peak {
			peak = r
		}
	}
	if !(peak > 0) {
		return out
	}
	for i, r := range raw {
		switch {
		case math.IsInf(peak, 1):
			if math.IsInf(r, 1) {
				out[i] = 1
			}
		case r > 0:
			out[i] = r / peak
		}
	}
	return out
}

// Normalize sets Percentage on every score from its TotalScore.
func Normalize(scores []CategoryScore) {
	raw := make([]float64, len(scores))
	for i, s := range scores {
		raw[i] = s.TotalScore
	}
	for i, p := range Percentages(raw) {
		scores[i].Percentage = p
	}
}

// Cents returns a percentage as whole hundredths.
func Cents(pct float64) int64 {
	return int64(math.Round(pct * 100))
}
