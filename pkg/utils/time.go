package utils

import "fmt"

// FormatClock formats elapsed seconds as m:ss for display.
func FormatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
