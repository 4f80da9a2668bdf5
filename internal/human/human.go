// Package human formats durations for people.
package human

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 12 * month
)

// magnitudes are searched for the first entry whose D exceeds the duration.
// Durations reaching them are already rounded by round, so every bound is
// inclusive of its last whole unit.
var magnitudes = []humanize.RelTimeMagnitude{
	{D: 45 * time.Second, Format: "a few seconds %s"},
	{D: 90 * time.Second, Format: "a minute %s"},
	{D: 44*time.Minute + time.Second, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 89*time.Minute + time.Second, Format: "an hour %s"},
	{D: 21*time.Hour + time.Second, Format: "%d hours %s", DivBy: time.Hour},
	{D: 35*time.Hour + time.Second, Format: "a day %s"},
	{D: 25*day + time.Second, Format: "%d days %s", DivBy: day},
	{D: 45*day + time.Second, Format: "a month %s"},
	{D: 10*month + time.Second, Format: "%d months %s", DivBy: month},
	{D: 17*month + time.Second, Format: "a year %s"},
	{D: math.MaxInt64, Format: "%d years %s", DivBy: year},
}

// Ago formats how long ago something happened, e.g. "3 hours ago". Negative
// durations read "from now".
func Ago(d time.Duration) string {
	r := round(d.Abs())
	if d < 0 {
		r = -r
	}
	now := time.Unix(0, 0)
	return humanize.CustomRelTime(now.Add(-r), now, "ago", "from now", magnitudes)
}

// Since is Ago(now.Sub(t)).
func Since(t, now time.Time) string {
	return Ago(now.Sub(t))
}

// round brings d to the unit its bucket counts in: minutes, hours and days
// round up, months and years to the nearest, halves to even. A year and a
// half or less stays "a year".
func round(d time.Duration) time.Duration {
	d = d.Truncate(time.Second)
	switch {
	case d <= 89*time.Second:
		return d
	case d <= 89*time.Minute:
		return ceil(d, time.Minute)
	case d <= 35*time.Hour:
		return ceil(d, time.Hour)
	case d <= 45*day:
		return ceil(d, day)
	case d <= 10*month:
		return nearest(d, month)
	case d <= 17*month:
		return d
	default:
		return nearest(d, year)
	}
}

func ceil(d, unit time.Duration) time.Duration {
	return (d + unit - 1) / unit * unit
}

func nearest(d, unit time.Duration) time.Duration {
	return time.Duration(math.RoundToEven(float64(d)/float64(unit))) * unit
}
