package domain

// Date is an economy date measured in whole days since the epoch of the
// surrounding simulation. Link graph nodes and edges carry dates to decide
// staleness; the graph itself records the date of its last compression.
type Date int64

// DateNever marks a date field that has not been set yet. Arithmetic
// helpers leave it untouched so that "never updated" survives date shifts.
const DateNever Date = -1

// IsValid reports whether the date has ever been set.
func (d Date) IsValid() bool { return d != DateNever }

// Shift moves a valid date by the given interval and leaves DateNever alone.
// Used when the simulation retroactively adjusts its date epoch.
func (d Date) Shift(interval int64) Date {
	if !d.IsValid() {
		return d
	}
	return d + Date(interval)
}

// AgeSince returns the number of days between then and now, at least 1.
// The floor keeps age ratios well defined when two events share a day.
func (d Date) AgeSince(then Date) int64 {
	if !then.IsValid() || !d.IsValid() || d <= then {
		return 1
	}
	return int64(d - then)
}
