package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"etf-flow-lab/internal/domain"
)

// RenderMetricsCSV renders one line per metrics row. Undefined values are empty.
func RenderMetricsCSV(rows []domain.MetricsRow, windows []domain.Window) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,aggregate,unavailable")
	for _, w := range windows {
		sb.WriteString(fmt.Sprintf(",%s_change,%s_pct", strings.ToLower(w.Name), strings.ToLower(w.Name)))
	}
	sb.WriteString(",moving_average\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%d", r.Date.Format(domain.DateLayout), formatFloat(r.Aggregate), r.Unavailable))
		for _, w := range windows {
			d, ok := r.Window(w.Name)
			if !ok {
				sb.WriteString(",,")
				continue
			}
			sb.WriteString("," + formatFloat(d.Change) + ",")
			if d.Pct != nil {
				sb.WriteString(fmt.Sprintf("%.6f", *d.Pct))
			}
		}
		sb.WriteString(",")
		if r.MovingAverage != nil {
			sb.WriteString(fmt.Sprintf("%.6f", *r.MovingAverage))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
