package event

import "sort"

// Reconcile repairs a raw interval list for one (subject, property) key and
// clamps it to the requested window.
//
// Raw intervals come from unreliable external sources (device polling,
// webhooks, vendor APIs) and may be unsorted, overlapping, or never closed.
// Reconcile restores the at-most-one-open-interval invariant on read:
//
//  1. Sort ascending by start.
//  2. An interval that was never closed is assumed to have ended when the
//     next one began.
//  3. When expectGaps is false, every instant must have a defined value:
//     each interval's end is forced to the next interval's start, which
//     truncates overlaps (the later interval wins) and fills gaps.
//  4. A final open interval is clamped to the window end.
//  5. Intervals outside the window are dropped (entirely before it, or
//     starting at or after its end), and the first remaining interval's
//     start is clamped up to the window start.
//
// The tie-break in step 3 (truncate the earlier interval) assumes later
// writes carry newer observations; revisit if source clocks are unreliable.
//
// The input slice is not modified. The returned repair count covers steps
// 2 and 3 only - window clamping is expected, repairs are not, and a
// non-zero count signals an upstream data-quality problem worth logging.
func Reconcile(intervals []Interval, window Window, expectGaps bool) ([]Interval, int) {
	if len(intervals) == 0 {
		return nil, 0
	}

	out := make([]Interval, len(intervals))
	copy(out, intervals)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})

	// An interval starting at or after the window end cannot intersect
	// the window; left in, an open one would be clamped into inversion.
	for len(out) > 0 && !out[len(out)-1].Start.Before(window.End) {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, 0
	}

	repairs := 0
	for i := 0; i < len(out)-1; i++ {
		cur, next := &out[i], &out[i+1]

		if cur.End == nil {
			end := next.Start
			cur.End = &end
			repairs++
			continue
		}

		if !expectGaps && !cur.End.Equal(next.Start) {
			end := next.Start
			cur.End = &end
			repairs++
		}
	}

	// An ongoing state is clamped to the window end for history purposes.
	last := &out[len(out)-1]
	if last.End == nil {
		end := window.End
		last.End = &end
	}

	// Drop intervals that fell entirely before the window once clamped.
	first := 0
	for first < len(out) &&
		out[first].Start.Before(window.Start) &&
		!out[first].End.After(window.Start) {
		first++
	}
	out = out[first:]

	if len(out) > 0 && out[0].Start.Before(window.Start) {
		out[0].Start = window.Start
	}

	return out, repairs
}
