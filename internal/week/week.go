// Package week computes recommendation batch labels.
package week

import (
	"fmt"
	"regexp"
	"time"
)

// Pattern matches a batch label such as "2025-W37".
var Pattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// Seoul is the zone the backend cuts batches in.
var Seoul = mustLoad("Asia/Seoul")

// Label returns the ISO-8601 week label of t as observed in Seoul.
// The year is the ISO week-based year, so 2024-12-30 yields "2025-W01".
func Label(t time.Time) string {
	year, wk := t.In(Seoul).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, wk)
}

// Current is Label(time.Now()).
func Current() string {
	return Label(time.Now())
}

// Valid reports whether s is a well formed label.
func Valid(s string) bool {
	return Pattern.MatchString(s)
}

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// no tzdata on the host; Korea has no DST so a fixed zone is exact
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
