// formatação pequena de valores numéricos para headers, sem passar por fmt.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// formatSeconds arredonda para cima: nunca anuncia menos tempo do que falta.
func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	s := int64(d / time.Second)
	if d%time.Second != 0 {
		s++
	}
	return formatInt64(s)
}
