package util

import (
	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count for info responses ("4.2 MB").
func FormatBytes(n uint64) string {
	return humanize.Bytes(n)
}
