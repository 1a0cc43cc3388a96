package converter

import "fmt"

// IdRange is the half-open interval [Start, End) of event_no values owned
// by one worker.
type IdRange struct {
	Start int64
	End   int64
}

func (r IdRange) Len() int64 {
	return r.End - r.Start
}

func (r IdRange) Contains(id int64) bool {
	return id >= r.Start && id < r.End
}

func (r IdRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// AllocateEventIDs partitions [0, upper) into workers contiguous ranges.
// Range sizes differ by at most one, the larger ones first. Every run
// starts again from 0, so event_no is only unique within one run.
func AllocateEventIDs(upper int64, workers int) ([]IdRange, error) {
	if workers < 1 {
		return nil, fmt.Errorf("cannot allocate event ids for %d workers", workers)
	}
	if upper < int64(workers) {
		return nil, fmt.Errorf("cannot split %d event ids between %d workers", upper, workers)
	}
	ranges := make([]IdRange, workers)
	size := upper / int64(workers)
	extra := upper % int64(workers)
	start := int64(0)
	for i := range ranges {
		end := start + size
		if int64(i) < extra {
			end++
		}
		ranges[i] = IdRange{Start: start, End: end}
		start = end
	}
	return ranges, nil
}

// IdCursor hands out the ids of one range in order. It is owned by a
// single worker.
type IdCursor struct {
	r    IdRange
	next int64
}

func NewIdCursor(r IdRange) *IdCursor {
	return &IdCursor{r: r, next: r.Start}
}

func (c *IdCursor) Next() (int64, error) {
	if c.next >= c.r.End {
		return 0, fmt.Errorf("%w: %v", ErrIdRangeExhausted, c.r)
	}
	id := c.next
	c.next++
	return id, nil
}

func (c *IdCursor) Used() int64 {
	return c.next - c.r.Start
}
