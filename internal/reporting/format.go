package reporting

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"etf-flow-lab/internal/domain"
)

// Arrows used for directions and window signs.
const (
	ArrowUp   = "🔺"
	ArrowDown = "🔻"
)

var windowLabels = map[string]string{
	"DoD": "Day over Day Change",
	"WoW": "Week over Week Change",
	"MoM": "Month over Month Change",
}

// WindowLabel returns the display label for a window name.
func WindowLabel(name string) string {
	if l, ok := windowLabels[name]; ok {
		return l
	}
	return name + " Change"
}

var printer = message.NewPrinter(language.English)

// FormatNumber groups thousands and drops the fraction for whole numbers.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) {
		return printer.Sprintf("%.0f", f)
	}
	return printer.Sprintf("%.2f", f)
}

// FormatValue renders a cell, keeping the unavailable sentinel as is.
func FormatValue(v domain.Value) string {
	d, ok := v.Decimal()
	if !ok {
		return domain.UnavailableText
	}
	if d.IsInteger() {
		return printer.Sprintf("%d", d.IntPart())
	}
	f, _ := d.Float64()
	return printer.Sprintf("%.2f", f)
}

// FormatPct renders a percentage with one decimal.
func FormatPct(p float64) string {
	return printer.Sprintf("%.1f%%", p)
}

func arrow(d domain.Direction) string {
	switch d {
	case domain.DirectionUp:
		return ArrowUp
	case domain.DirectionDown:
		return ArrowDown
	default:
		return ""
	}
}

func signArrow(change float64) string {
	switch {
	case change > 0:
		return ArrowUp + " "
	case change < 0:
		return ArrowDown + " "
	default:
		return ""
	}
}
