package content

import (
	"fmt"
	"time"
)

var sizeUnits = []string{"B", "kB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with one decimal place in 1024-based units.
func FormatFileSize(bytes int64) string {
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

// FormatDateTime renders t as MM/DD/YY HH:MM:SS in local time.
func FormatDateTime(t time.Time) string {
	return t.Local().Format("01/02/06 15:04:05")
}
