// Package buffer holds the in-memory daily accumulator for polled samples.
package buffer

import (
	"sync"
	"time"

	"github.com/tidegate/cryptoharvest/internal/storage"
)

// Key identifies one tracked series in the buffer.
type Key struct {
	Market  string
	Channel string
}

// DailyBuffer accumulates samples for one calendar day per tracked series.
// All samples under the current day share that day in the configured
// timezone; samples stamped after the day boundary are parked in a pending
// area until the completed day is drained. The zero value is not usable,
// create one with New and pass it by reference to every producer.
type DailyBuffer struct {
	mu   sync.Mutex
	loc  *time.Location
	day  time.Time
	cur  map[Key][]storage.Sample
	next map[Key][]storage.Sample
}

// New creates an empty buffer for the calendar day of now.
func New(now time.Time, loc *time.Location) *DailyBuffer {
	return &DailyBuffer{
		loc:  loc,
		day:  dayOf(now, loc),
		cur:  make(map[Key][]storage.Sample),
		next: make(map[Key][]storage.Sample),
	}
}

// dayOf truncates a time to its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Day returns the calendar day the buffer is currently accumulating.
func (b *DailyBuffer) Day() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.day
}

// Rolled reports whether now is past the buffer's day, i.e. the accumulated
// day is complete and should be drained.
func (b *DailyBuffer) Rolled(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return dayOf(now, b.loc).After(b.day)
}

// Append records one sample for a series. Samples stamped within the
// buffer's day extend the current day; samples stamped later go to the
// pending area so a drain of the completed day never includes them.
func (b *DailyBuffer) Append(key Key, s storage.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dayOf(s.Timestamp, b.loc).After(b.day) {
		b.next[key] = append(b.next[key], s)
		return
	}
	b.cur[key] = append(b.cur[key], s)
}

// Drain atomically returns the accumulated day and its series, then resets
// the buffer to the calendar day of now with the pending samples promoted.
func (b *DailyBuffer) Drain(now time.Time) (time.Time, map[Key][]storage.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	day, series := b.day, b.cur
	b.day = dayOf(now, b.loc)
	b.cur = b.next
	b.next = make(map[Key][]storage.Sample)
	return day, series
}

// Snapshot returns a copy of the current day's series for checkpointing.
func (b *DailyBuffer) Snapshot() map[Key][]storage.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	series := make(map[Key][]storage.Sample, len(b.cur))
	for key, samples := range b.cur {
		cp := make([]storage.Sample, len(samples))
		copy(cp, samples)
		series[key] = cp
	}
	return series
}

// Restore seeds the buffer from a checkpoint taken earlier the same day.
// Samples from other days are dropped.
func (b *DailyBuffer) Restore(key Key, samples []storage.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range samples {
		if !dayOf(s.Timestamp, b.loc).Equal(b.day) {
			continue
		}
		b.cur[key] = append(b.cur[key], s)
	}
}

// Len returns the number of current day samples held for a series.
func (b *DailyBuffer) Len(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cur[key])
}
