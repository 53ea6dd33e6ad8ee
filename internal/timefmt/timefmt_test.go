package timefmt

import (
	"testing"
	"time"
)

func TestAge(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, "unknown age"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-30 * time.Minute), "30m ago"},
		{now.Add(-5 * time.Hour), "5h ago"},
		{now.Add(-72 * time.Hour), "3d ago"},
		{time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "Feb 2024"},
	}
	for _, c := range cases {
		if got := Age(c.at, now); got != c.want {
			t.Fatalf("Age(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}
