// Package grid defines the value types shared by every layer of the booking
// grid: the Selection span a user proposes on a day × hour × resource grid,
// the BookedFunc predicate the rule engine consults, an immutable Occupancy
// snapshot that implements that predicate, and the classified Error type used
// by the surrounding service layers.
//
// Hours are 0-based indices in [0, HoursPerDay). Days are 0-based indices in
// [0, DaysPerWeek). Resources ("studios") are 0-based indices; their display
// label is "Resource N" with N = index + 1.
package grid
