package reporting

import (
	"fmt"
	"strings"
	"time"

	"etf-flow-lab/internal/domain"
)

// Options controls rendering of a change set.
type Options struct {
	Title          string // heading, defaults to the dataset name
	Unit           string // appended to window figures, e.g. "shares"
	NoChangesLabel string // line used when nothing changed
}

func (o Options) withDefaults(dataset string) Options {
	if o.Title == "" {
		o.Title = dataset
	}
	if o.NoChangesLabel == "" {
		o.NoChangesLabel = "No changes today."
	}
	return o
}

// RenderChangeSet renders the notification body as Markdown.
func RenderChangeSet(cs domain.ChangeSet, opts Options) string {
	opts = opts.withDefaults(cs.Dataset)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", opts.Title))
	sb.WriteString(fmt.Sprintf("Date: %s\n\n", cs.Date.Format(domain.DateLayout)))

	sb.WriteString("## Daily Changes\n\n")
	if cs.NoChanges {
		sb.WriteString(opts.NoChangesLabel + "\n")
	}
	for _, c := range cs.Changes {
		line := fmt.Sprintf("- %s: %s", c.Series, FormatValue(c.Current))
		if a := arrow(c.Direction); a != "" {
			line += " " + a
		}
		line += fmt.Sprintf(" (previous: %s)", FormatValue(c.Previous))
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Flow Metrics\n\n")
	if cs.Aggregate != nil {
		sb.WriteString(fmt.Sprintf("Total: %s%s\n", FormatNumber(*cs.Aggregate), unitSuffix(opts.Unit)))
	}
	if len(cs.Figures) == 0 {
		sb.WriteString("Not enough history for window metrics yet.\n")
	}
	for _, f := range cs.Figures {
		line := fmt.Sprintf("%s: %s%s%s", WindowLabel(f.Name), signArrow(f.Change), FormatNumber(f.Change), unitSuffix(opts.Unit))
		if f.Pct != nil {
			line += fmt.Sprintf(" (%s)", FormatPct(*f.Pct))
		}
		sb.WriteString(line + "\n")
	}

	return sb.String()
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}

// RenderMarkdown renders a dataset report.
func RenderMarkdown(r *Report, opts Options) string {
	opts = opts.withDefaults(r.Dataset)
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s Report\n\n", opts.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Rows))
	sb.WriteString(fmt.Sprintf("| Series | %d |\n", len(r.Series)))
	if r.Rows > 0 {
		sb.WriteString(fmt.Sprintf("| First Date | %s |\n", r.FirstDate.Format(domain.DateLayout)))
		sb.WriteString(fmt.Sprintf("| Last Date | %s |\n", r.LastDate.Format(domain.DateLayout)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Series\n\n")
	if len(r.Series) == 0 {
		sb.WriteString("No series recorded.\n\n")
	} else {
		sb.WriteString("| Series | Latest | Unavailable Days |\n")
		sb.WriteString("|--------|--------|------------------|\n")
		for _, s := range r.Series {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", s.Series, FormatValue(s.Latest), s.UnavailableDays))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Flow Metrics\n\n")
	if r.Latest == nil {
		sb.WriteString("No metrics available.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Total on %s: %s%s\n\n", r.Latest.Date.Format(domain.DateLayout), FormatNumber(r.Latest.Aggregate), unitSuffix(opts.Unit)))
	sb.WriteString("| Window | Rows Back | Change | Pct |\n")
	sb.WriteString("|--------|-----------|--------|-----|\n")
	for _, w := range r.Windows {
		d, ok := r.Latest.Window(w.Name)
		if !ok {
			sb.WriteString(fmt.Sprintf("| %s | %d | - | - |\n", w.Name, w.Offset))
			continue
		}
		pct := "-"
		if d.Pct != nil {
			pct = FormatPct(*d.Pct)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n", w.Name, w.Offset, FormatNumber(d.Change), pct))
	}
	if r.Latest.MovingAverage != nil {
		sb.WriteString(fmt.Sprintf("\nMoving average (%d rows): %s\n", r.MovingAverage, FormatNumber(*r.Latest.MovingAverage)))
	}

	writeSeriesChanges(&sb, r)
	return sb.String()
}

// writeSeriesChanges renders each series' window changes for the latest row.
// A window is "-" when either end of the series is unavailable.
func writeSeriesChanges(sb *strings.Builder, r *Report) {
	if len(r.Series) == 0 || len(r.Windows) == 0 {
		return
	}

	sb.WriteString("\n### Per-Series Changes\n\n")
	sb.WriteString("| Series |")
	for _, w := range r.Windows {
		sb.WriteString(" " + w.Name + " |")
	}
	sb.WriteString("\n|--------|")
	for range r.Windows {
		sb.WriteString("-----|")
	}
	sb.WriteString("\n")

	for _, s := range r.Series {
		sb.WriteString("| " + s.Series + " |")
		for _, w := range r.Windows {
			d, ok := r.Latest.SeriesWindow(s.Series, w.Name)
			if !ok {
				sb.WriteString(" - |")
				continue
			}
			cell := FormatNumber(d.Change)
			if d.Pct != nil {
				cell += " (" + FormatPct(*d.Pct) + ")"
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteString("\n")
	}
}
