package letter

// MaxColumns is the widest grid the letter layout uses.
const MaxColumns = 3

// Partition splits items into the ones for which isAbnormal is false and the
// ones for which it is true. Relative order is kept; every item lands in
// exactly one of the two results.
func Partition[T any](items []T, isAbnormal func(T) bool) (normal, abnormal []T) {
	normal = make([]T, 0, len(items))
	abnormal = make([]T, 0)
	for _, it := range items {
		if isAbnormal(it) {
			abnormal = append(abnormal, it)
		} else {
			normal = append(normal, it)
		}
	}
	return normal, abnormal
}

// SplitColumns spreads items over at most maxCols columns, filling column by
// column with ceil(n/maxCols) items each. Sizes differ by at most one and
// columns that would be empty are omitted. maxCols <= 0 means MaxColumns.
func SplitColumns[T any](items []T, maxCols int) [][]T {
	if maxCols <= 0 {
		maxCols = MaxColumns
	}
	n := len(items)
	if n == 0 {
		return nil
	}
	cols := maxCols
	if n < cols {
		cols = n
	}
	out := make([][]T, 0, cols)
	start := 0
	for i := 0; i < cols; i++ {
		// Remaining items spread over remaining columns, rounded up.
		size := (n - start + cols - i - 1) / (cols - i)
		// Capacity is capped so appending to a column cannot overwrite the next.
		out = append(out, items[start:start+size:start+size])
		start += size
	}
	return out
}
