package render

import (
	"fmt"

	"github.com/starford/voxsync/internal/ledger"
)

// FormatDate renders a remote timestamp with the given Go reference layout.
// Unparseable values are returned as-is rather than failing the record.
func FormatDate(raw, layout string) string {
	t, ok := ledger.ParseTimestamp(raw)
	if !ok || layout == "" {
		return raw
	}
	return t.Format(layout)
}

// FormatDuration renders a millisecond duration as "MmSSs", or "Ns" when
// under a minute.
func FormatDuration(ms int64) string {
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	if minutes > 0 {
		return fmt.Sprintf("%dm%02ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
