package parser

import "fmt"

// Range is a half-open product index range [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int { return r.End - r.Start }

// Chunks partitions [0, count) into contiguous ranges of at most maxSize
// indices. The chunk size is spread evenly over the fewest chunks that
// respect maxSize and never drops below minSize; only the last chunk may
// be shorter. It panics when maxSize is not positive.
func Chunks(count, minSize, maxSize int) []Range {
	if maxSize <= 0 {
		panic(fmt.Sprintf("parser: chunk size must be positive, got %d", maxSize))
	}
	if count <= 0 {
		return nil
	}
	if minSize < 1 {
		minSize = 1
	}
	if minSize > maxSize {
		minSize = maxSize
	}

	n := (count + maxSize - 1) / maxSize
	size := (count + n - 1) / n
	if size < minSize {
		size = minSize
	}

	ranges := make([]Range, 0, n)
	for start := 0; start < count; start += size {
		end := min(start+size, count)
		ranges = append(ranges, Range{Start: start, End: end})
	}
	return ranges
}
