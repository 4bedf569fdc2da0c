package domain

import (
	"fmt"
	"sort"
	"time"
)

// Conventional signal column names emitted by strategies. Strategies may add
// columns of their own; these four are the ones the engine dispatches on.
const (
	ColLongEntry  = "long_entry"
	ColShortEntry = "short_entry"
	ColLongExit   = "long_exit"
	ColShortExit  = "short_exit"
)

// EntryColumns are the signal columns carried across resolutions.
func EntryColumns() []string {
	return []string{ColLongEntry, ColShortEntry, ColLongExit, ColShortExit}
}

// Frame is a candle series with named boolean signal columns aligned to it.
// After signal generation a frame is treated as read-only and is safe for
// concurrent reads across subscriber goroutines.
type Frame struct {
	Candles []*Candle
	Signals map[string][]bool
}

// NewFrame builds a frame over the given candles with no signal columns.
func NewFrame(candles []*Candle) *Frame {
	return &Frame{Candles: candles, Signals: make(map[string][]bool)}
}

// Len returns the number of candles in the frame.
func (f *Frame) Len() int { return len(f.Candles) }

// Last returns the most recent candle, or nil for an empty frame.
func (f *Frame) Last() *Candle {
	if len(f.Candles) == 0 {
		return nil
	}
	return f.Candles[len(f.Candles)-1]
}

// SetSignal marks the signal column at the given candle index.
// The column is allocated on first use.
func (f *Frame) SetSignal(column string, idx int, value bool) {
	if f.Signals == nil {
		f.Signals = make(map[string][]bool)
	}
	col, ok := f.Signals[column]
	if !ok {
		col = make([]bool, len(f.Candles))
		f.Signals[column] = col
	}
	if idx >= 0 && idx < len(col) {
		col[idx] = value
	}
}

// Signal reads the signal column at the given candle index.
// A missing column reads as false, never as an error.
func (f *Frame) Signal(column string, idx int) bool {
	col, ok := f.Signals[column]
	if !ok || idx < 0 || idx >= len(col) {
		return false
	}
	return col[idx]
}

// HasColumn reports whether the named signal column exists.
func (f *Frame) HasColumn(column string) bool {
	_, ok := f.Signals[column]
	return ok
}

// Columns returns the signal column names in sorted order.
func (f *Frame) Columns() []string {
	names := make([]string, 0, len(f.Signals))
	for name := range f.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Window returns a new frame over candles [lo, hi) sharing no mutable state
// with the receiver. Signal columns are copied for the same range.
func (f *Frame) Window(lo, hi int) *Frame {
	if lo < 0 {
		lo = 0
	}
	if hi > len(f.Candles) {
		hi = len(f.Candles)
	}
	if lo >= hi {
		return NewFrame(nil)
	}
	w := NewFrame(f.Candles[lo:hi])
	for name, col := range f.Signals {
		cp := make([]bool, hi-lo)
		copy(cp, col[lo:hi])
		w.Signals[name] = cp
	}
	return w
}

// Resample aggregates the frame into buckets of the target resolution:
// open is the first value, high the max, low the min, close the last,
// volume the sum. Candles must be in ascending time order.
func (f *Frame) Resample(target time.Duration) (*Frame, error) {
	if target <= 0 {
		return nil, fmt.Errorf("resample target must be positive, got %v", target)
	}
	var out []*Candle
	var cur *Candle
	for _, c := range f.Candles {
		bucket := c.OpenTime.Truncate(target)
		if cur == nil || !cur.OpenTime.Equal(bucket) {
			if cur != nil {
				out = append(out, cur)
			}
			cloned := *c
			cloned.OpenTime = bucket
			cloned.CloseTime = bucket.Add(target)
			cur = &cloned
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if cur != nil {
		out = append(out, cur)
	}
	return NewFrame(out), nil
}

// MergeSignals forward-fills the named signal columns from a coarser frame
// onto the receiver: each base candle takes the value of the most recent
// coarse candle whose open time is not after its own. Only signal columns
// are filled; price and volume are never touched. Columns missing from the
// source are created as all-false and returned so callers can log them.
func (f *Frame) MergeSignals(from *Frame, columns []string) (missing []string) {
	for _, name := range columns {
		src, ok := from.Signals[name]
		if !ok {
			missing = append(missing, name)
			f.Signals[name] = make([]bool, len(f.Candles))
			continue
		}
		dst := make([]bool, len(f.Candles))
		j := -1
		for i, c := range f.Candles {
			for j+1 < len(from.Candles) && !from.Candles[j+1].OpenTime.After(c.OpenTime) {
				j++
			}
			if j >= 0 && j < len(src) {
				dst[i] = src[j]
			}
		}
		f.Signals[name] = dst
	}
	return missing
}
