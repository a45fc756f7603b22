package core

import "github.com/shopspring/decimal"

// Allocation is the outcome of spreading a lump discount over lines.
type Allocation struct {
	// Lines holds every input line in order. Lines outside the allocation
	// set are returned unchanged.
	Lines []Line
	// Shares maps a line id to the absolute discount assigned to it.
	Shares map[string]decimal.Decimal
}

// Sum adds up every allocated share.
func (a Allocation) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range a.Shares {
		sum = sum.Add(s)
	}
	return sum
}

// AllocateDiscount spreads total over the lines accepted by include (all
// lines when include is nil), proportionally to each line's weight. The last
// line of the set takes the remainder so the shares add up to total exactly.
// Each share is stored back as a discount rate on its line.
//
// When total exceeds the weight sum, rates saturate at 100 and the remainder
// line may end up with a lower rate than the others.
func AllocateDiscount(lines []Line, total decimal.Decimal, include func(Line) bool) (Allocation, error) {
	set := make([]int, 0, len(lines))
	for i, l := range lines {
		if include == nil || include(l) {
			set = append(set, i)
		}
	}
	if len(set) == 0 {
		return Allocation{}, Invalid("lines", ErrNoAllocationLines)
	}

	weights := make([]decimal.Decimal, len(set))
	sumW := decimal.Zero
	for k, i := range set {
		weights[k] = lines[i].Weight()
		sumW = sumW.Add(weights[k])
	}
	if !sumW.IsPositive() {
		return Allocation{}, Invalid("lines", ErrZeroAllocationWeight)
	}

	total = NonNegative(total)
	out := make([]Line, len(lines))
	copy(out, lines)
	shares := make(map[string]decimal.Decimal, len(set))

	allocated := decimal.Zero
	for k, i := range set {
		var share decimal.Decimal
		if k == len(set)-1 {
			share = total.Sub(allocated)
		} else {
			share = total.Mul(weights[k]).Div(sumW)
			allocated = allocated.Add(share)
		}
		shares[out[i].ID] = share

		rate := decimal.Zero
		if weights[k].IsPositive() {
			rate = ClampPercent(share.Div(weights[k]).Mul(hundred))
		}
		out[i].DiscountRate = rate
	}

	return Allocation{Lines: out, Shares: shares}, nil
}
