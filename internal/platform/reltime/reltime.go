// Package reltime formats timestamps as human-relative strings ("3 minutes ago").
package reltime

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Since describes then relative to now.
func Since(then, now time.Time) string {
	return humanize.RelTime(then, now, "ago", "from now")
}
