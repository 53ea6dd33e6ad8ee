// Package timefmt renders key ages for status output.
package timefmt

import (
	"fmt"
	"time"
)

// Age returns a friendly description of how old t is relative to now.
// Key material is usually days to years old, so sub-minute precision
// is not worth chasing.
func Age(t, now time.Time) string {
	if t.IsZero() {
		return "unknown age"
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 365*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2006")
	}
}
