// Package interval maps the named reminder offsets to fixed durations.
// Months and weeks are approximated as 30 and 7 days, not calendar-exact.
package interval

import "time"

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// Canonical interval keys.
const (
	Key3Months = "P3M"
	Key1Month  = "P1M"
	Key3Weeks  = "P3W"
	Key2Weeks  = "P2W"
	Key1Week   = "P1W"
	Key3Days   = "P3D"
	Key1Day    = "P1D"
)

var catalog = map[string]time.Duration{
	Key3Months: 3 * 30 * day,
	Key1Month:  30 * day,
	Key3Weeks:  3 * week,
	Key2Weeks:  2 * week,
	Key1Week:   week,
	Key3Days:   3 * day,
	Key1Day:    day,
}

var labels = map[string]string{
	Key3Months: "3 months before deadline",
	Key1Month:  "1 month before deadline",
	Key3Weeks:  "3 weeks before deadline",
	Key2Weeks:  "2 weeks before deadline",
	Key1Week:   "1 week before deadline",
	Key3Days:   "3 days before deadline",
	Key1Day:    "1 day before deadline",
}

// Older rows and clients used a short lowercase scheme; Normalize maps it
// onto the canonical keys and leaves anything unrecognized untouched.
var aliases = map[string]string{
	"3m": Key3Months,
	"1m": Key1Month,
	"3w": Key3Weeks,
	"2w": Key2Weeks,
	"1w": Key1Week,
	"7d": Key1Week,
	"3d": Key3Days,
	"1d": Key1Day,
}

// keyOrder lists the catalog from the widest to the narrowest offset.
var keyOrder = []string{Key3Months, Key1Month, Key3Weeks, Key2Weeks, Key1Week, Key3Days, Key1Day}

// DurationOf returns the offset for a canonical interval key.
func DurationOf(key string) (time.Duration, bool) {
	d, ok := catalog[key]
	return d, ok
}

// Normalize converts legacy short keys to canonical ones. Unknown input is
// returned as is so lookups downstream fail the normal way.
func Normalize(key string) string {
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// Label returns a human-readable description of an interval key for use in
// notification text. Unknown keys get a generic fallback rather than an error.
func Label(key string) string {
	if key == "" {
		return "Reminder"
	}
	if label, ok := labels[key]; ok {
		return label
	}
	return key + " before deadline"
}

// Keys returns all canonical keys, widest offset first. The returned slice is
// a copy and safe to append to.
func Keys() []string {
	keys := make([]string, len(keyOrder))
	copy(keys, keyOrder)
	return keys
}
