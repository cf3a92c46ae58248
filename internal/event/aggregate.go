package event

import "time"

// openEndedWeight is the duration weight an interval contributes to a
// bucket average when it has no end inside the bucket. Retained policy
// from the original aggregation behaviour; it also keeps the weighted
// average clear of a zero denominator for very short buckets.
const openEndedWeight = time.Minute

// Bucket holds the intervals overlapping one aggregation slot [Start, End)
// and computes statistics over them.
type Bucket struct {
	Start     time.Time
	End       time.Time
	Intervals []Interval
}

// Min returns the smallest interval value in the bucket, or nil when the
// bucket has no intervals.
func (b *Bucket) Min() *float64 {
	var min *float64
	for i := range b.Intervals {
		v := b.Intervals[i].Value
		if min == nil || v < *min {
			min = &v
		}
	}
	return min
}

// Max returns the largest interval value in the bucket, or nil when the
// bucket has no intervals.
func (b *Bucket) Max() *float64 {
	var max *float64
	for i := range b.Intervals {
		v := b.Intervals[i].Value
		if max == nil || v > *max {
			max = &v
		}
	}
	return max
}

// Average returns the duration-weighted mean of the interval values within
// the bucket, or nil when the bucket has no intervals. Intervals with no
// end inside the bucket contribute openEndedWeight.
func (b *Bucket) Average() *float64 {
	var weightedSum, totalMinutes float64
	for i := range b.Intervals {
		iv := &b.Intervals[i]

		minutes := openEndedWeight.Minutes()
		if iv.End != nil {
			overlap := b.overlap(iv)
			if overlap > 0 {
				minutes = overlap.Minutes()
			}
		}

		weightedSum += iv.Value * minutes
		totalMinutes += minutes
	}

	if totalMinutes == 0 {
		return nil
	}
	avg := weightedSum / totalMinutes
	return &avg
}

// Duration returns the total time the property was in a defined state
// within the bucket. An open interval counts through to the bucket end.
func (b *Bucket) Duration() time.Duration {
	var total time.Duration
	for i := range b.Intervals {
		total += b.overlap(&b.Intervals[i])
	}
	return total
}

// overlap returns the portion of the interval inside the bucket. An open
// interval extends to the bucket end.
func (b *Bucket) overlap(iv *Interval) time.Duration {
	start := iv.Start
	if start.Before(b.Start) {
		start = b.Start
	}

	end := b.End
	if iv.End != nil && iv.End.Before(end) {
		end = *iv.End
	}

	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

// BucketIterator lazily yields consecutive buckets tiling a window. It is
// finite and non-restartable: once Next returns false it stays exhausted.
type BucketIterator struct {
	intervals []Interval
	cursor    time.Time
	end       time.Time
	size      time.Duration
}

// Buckets creates an iterator over [start, end) in steps of size. The
// final bucket is clipped to end exactly at the window end, so the buckets
// tile the window with no gaps or overlaps. The intervals should already
// be reconciled (sorted, non-overlapping).
func Buckets(intervals []Interval, start, end time.Time, size time.Duration) *BucketIterator {
	return &BucketIterator{
		intervals: intervals,
		cursor:    start,
		end:       end,
		size:      size,
	}
}

// Next returns the next bucket, or false when the window is exhausted.
func (it *BucketIterator) Next() (*Bucket, bool) {
	if !it.cursor.Before(it.end) || it.size <= 0 {
		return nil, false
	}

	bucketEnd := it.cursor.Add(it.size)
	if bucketEnd.After(it.end) {
		bucketEnd = it.end
	}

	bucket := &Bucket{Start: it.cursor, End: bucketEnd}
	for i := range it.intervals {
		iv := &it.intervals[i]
		if iv.Start.Before(bucketEnd) && (iv.End == nil || iv.End.After(bucket.Start)) {
			bucket.Intervals = append(bucket.Intervals, *iv)
		}
	}

	it.cursor = bucketEnd
	return bucket, true
}
