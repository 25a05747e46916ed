package nota

import (
	"math"
	"sort"
)

// Classify decides which of the numbers left on a line is the quantity, the
// unit price and the line total. It never fails: with ambiguous input it
// returns its best guess. The thresholds are tuned against real receipts and
// must stay as they are.
func Classify(numbers []float64) Classification {
	switch len(numbers) {
	case 0:
		return Classification{}
	case 1:
		if numbers[0] < 100 {
			return Classification{Quantity: numbers[0]}
		}
		return Classification{Total: numbers[0]}
	}

	sorted := append([]float64(nil), numbers...)
	sort.Float64s(sorted)

	if len(sorted) == 2 {
		return classifyPair(sorted[0], sorted[1])
	}
	return classifyMany(sorted)
}

func classifyPair(small, large float64) Classification {
	ratio := large / small

	switch {
	case small >= 1 && small <= 99 && large >= 5000:
		return Classification{Quantity: small, Total: large}
	case ratio >= 500:
		return Classification{Quantity: small, Total: large}
	case small >= 1 && small <= 50 && large >= 2000:
		return Classification{Quantity: small, Total: large}
	case small <= 100 && math.Mod(large, small) == 0 && ratio >= 500:
		return Classification{Quantity: small, UnitPrice: large / small, Total: large}
	case small < 100 && large >= 1000 && large <= 10_000_000:
		return Classification{Quantity: small, Total: large}
	case small < 100 && large < 10000:
		return Classification{Quantity: small, UnitPrice: large}
	default:
		return Classification{Quantity: small, Total: large}
	}
}

// classifyMany handles three or more numbers, already sorted ascending. The
// unit price candidate is the largest value below the total.
func classifyMany(sorted []float64) Classification {
	qty := sorted[0]
	total := sorted[len(sorted)-1]
	unitPrice := sorted[len(sorted)-2]

	if qty < 500 && unitPrice < total {
		implied := total / qty
		if math.Abs(implied-unitPrice) <= 0.5*unitPrice || unitPrice*qty == total {
			return Classification{Quantity: qty, UnitPrice: unitPrice, Total: total}
		}
	}

	if recomputed := math.Round(total / qty); recomputed >= 1000 {
		return Classification{Quantity: qty, UnitPrice: recomputed, Total: total}
	}

	return Classification{Quantity: sorted[0], UnitPrice: sorted[1], Total: sorted[2]}
}

// Reconcile merges the classifier output with a quantity captured by the
// line pattern and repairs inconsistent combinations:
//   - the captured quantity wins over the classifier's, default 1
//   - a unit price more than 20% away from total/quantity is recomputed
//   - a missing total is derived from quantity x unit price
//   - quantity > 1000 with a unit price under 100 is treated as swapped
func Reconcile(capturedQty float64, c Classification) Classification {
	out := c
	switch {
	case capturedQty > 0:
		out.Quantity = capturedQty
	case out.Quantity <= 0:
		out.Quantity = 1
	}

	if out.Total > 0 {
		expected := out.Total / out.Quantity
		if out.UnitPrice <= 0 || math.Abs(out.UnitPrice-expected) > 0.2*expected {
			out.UnitPrice = expected
		}
	} else if out.UnitPrice > 0 {
		out.Total = out.UnitPrice * out.Quantity
	}

	if out.Quantity > 1000 && out.UnitPrice > 0 && out.UnitPrice < 100 {
		out.Quantity, out.UnitPrice = out.UnitPrice, out.Quantity
		out.Total = out.Quantity * out.UnitPrice
	}

	out.UnitPrice = math.Round(out.UnitPrice)
	out.Total = math.Round(out.Total)
	return out
}
