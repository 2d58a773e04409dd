package reporting

import (
	"etf-flow-lab/internal/domain"
)

// BuildChangeSet diffs the new observation against the previous row and
// appends the defined report windows of latest. latest may be nil.
// All unavailable spellings compare equal, so a blank cell followed by "N/A"
// is not a change.
func BuildChangeSet(dataset string, obs domain.Observation, previous domain.Snapshot, latest *domain.MetricsRow, report []domain.Window) domain.ChangeSet {
	cs := domain.ChangeSet{
		Dataset: dataset,
		Date:    obs.Date,
		Current: make([]domain.SeriesValue, 0, len(obs.Series)),
	}

	for _, s := range obs.Series {
		cur := obs.Values.Get(s)
		prev := previous.Get(s)
		cs.Current = append(cs.Current, domain.SeriesValue{Series: s, Value: cur})

		if cur.Equal(prev) {
			continue
		}
		cs.Changes = append(cs.Changes, domain.SeriesChange{
			Series:    s,
			Current:   cur,
			Previous:  prev,
			Direction: direction(cur, prev),
		})
	}
	cs.NoChanges = len(cs.Changes) == 0

	if latest == nil {
		return cs
	}

	agg := latest.Aggregate
	cs.Aggregate = &agg
	for _, w := range report {
		d, ok := latest.Window(w.Name)
		if !ok {
			continue
		}
		fig := domain.WindowFigure{Name: w.Name, Offset: w.Offset, Change: d.Change}
		if d.Pct != nil {
			pct := *d.Pct
			fig.Pct = &pct
		}
		cs.Figures = append(cs.Figures, fig)
	}
	return cs
}

// direction is only meaningful when both sides are numbers.
func direction(cur, prev domain.Value) domain.Direction {
	c, ok1 := cur.Decimal()
	p, ok2 := prev.Decimal()
	if !ok1 || !ok2 {
		return domain.DirectionNone
	}
	switch c.Cmp(p) {
	case 1:
		return domain.DirectionUp
	case -1:
		return domain.DirectionDown
	default:
		return domain.DirectionNone
	}
}
