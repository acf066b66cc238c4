package domain

import (
	"cmp"
	"slices"
)

// aggregateKey uses the day's text form so days built in different
// *time.Location values still group together.
type aggregateKey struct {
	day      string
	operator string
}

// AggregateDaily groups readings by calendar day, or by (day, operator) when
// byOperator is set, and reduces river level to mean, min and max. Zero
// levels are not re-filtered here; readings without a numeric level
// contribute nothing. The result is ascending by day, then operator, and
// does not depend on input order: each group's levels are summed in sorted
// order.
func AggregateDaily(readings []Reading, byOperator bool) []DailyAggregate {
	type group struct {
		day    Day
		levels []float64
	}
	groups := make(map[aggregateKey]*group)
	for _, r := range readings {
		v, ok := r.Level()
		if !ok {
			continue
		}
		k := aggregateKey{day: r.Date.String()}
		if byOperator {
			k.operator = r.Operator
		}
		g, found := groups[k]
		if !found {
			g = &group{day: r.Date}
			groups[k] = g
		}
		g.levels = append(g.levels, v)
	}

	out := make([]DailyAggregate, 0, len(groups))
	for k, g := range groups {
		slices.Sort(g.levels)
		var sum float64
		for _, v := range g.levels {
			sum += v
		}
		out = append(out, DailyAggregate{
			Day:        g.day,
			Operator:   k.operator,
			MeanLevelM: sum / float64(len(g.levels)),
			MinLevelM:  g.levels[0],
			MaxLevelM:  g.levels[len(g.levels)-1],
			Count:      len(g.levels),
		})
	}
	slices.SortFunc(out, func(a, b DailyAggregate) int {
		if c := cmp.Compare(a.Day.String(), b.Day.String()); c != 0 {
			return c
		}
		return cmp.Compare(a.Operator, b.Operator)
	})
	return out
}
