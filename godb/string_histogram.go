package godb

import (
	"hash/fnv"
	"math"

	boom "github.com/tylertreat/BoomFilters"
)

// stringHashSpace bounds the integer range StringHistogram hashes strings
// into before delegating range-comparison selectivity to an IntHistogram.
const stringHashSpace = math.MaxInt32

// StringHistogram estimates the selectivity of string comparisons by
// hashing each string to a bounded 32-bit integer and delegating <, <=, >,
// >= to an IntHistogram over that hashed domain; it additionally keeps a
// Count-Min Sketch of the raw strings, giving exact-match ("=", "<>")
// selectivity a sharper per-value estimate than bucket math alone could.
type StringHistogram struct {
	inner *IntHistogram
	cms   *boom.CountMinSketch
	total int
}

// NewStringHistogram builds a StringHistogram with buckets bins over the
// hashed domain.
func NewStringHistogram(buckets int) *StringHistogram {
	return &StringHistogram{
		inner: NewIntHistogram(buckets, 0, stringHashSpace),
		cms:   boom.NewCountMinSketch(0.001, 0.999),
	}
}

func hashString(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	v := int(h.Sum32() >> 1) // clear the sign bit: keep it within [0, MaxInt32]
	if v > stringHashSpace {
		v = stringHashSpace
	}
	return v
}

// AddValue folds s into both the hashed IntHistogram and the sketch.
func (h *StringHistogram) AddValue(s string) {
	h.inner.AddValue(hashString(s))
	h.cms.Add([]byte(s))
	h.total++
}

// EstimateSelectivity estimates the fraction of values for which
// `field op s` holds.
func (h *StringHistogram) EstimateSelectivity(op BoolOp, s string) float64 {
	if h.total == 0 {
		return 0
	}
	switch op {
	case OpEq:
		// The sketch only ever over-counts, so its estimate can exceed the
		// number of values actually added; clamp to keep the result in [0, 1].
		sel := float64(h.cms.Count([]byte(s))) / float64(h.total)
		if sel > 1 {
			sel = 1
		}
		return sel
	case OpNeq:
		sel := 1 - float64(h.cms.Count([]byte(s)))/float64(h.total)
		if sel < 0 {
			sel = 0
		}
		return sel
	default:
		return h.inner.EstimateSelectivity(op, hashString(s))
	}
}

// AvgSelectivity returns the hashed histogram's mean per-bucket
// selectivity.
func (h *StringHistogram) AvgSelectivity() float64 {
	return h.inner.AvgSelectivity()
}
