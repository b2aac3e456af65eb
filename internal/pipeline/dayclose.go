package pipeline

import "time"

// DayCloser detects a calendar-day boundary in Clock.time and, when one is
// crossed, resets every strategy system's day-scoped new_entities marks so
// the next session's strategy systems see only that day's bars (spec §4.3,
// §8 scenario 6). A no-op on the first tick (there is no prior day to
// close) and on every tick within the same day.
type DayCloser struct {
	lastDay time.Time
}

func (d *DayCloser) Name() string { return "DayCloser" }

func (d *DayCloser) Run(ctx *Context) error {
	now := clockTime(ctx.Main)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if d.lastDay.IsZero() {
		d.lastDay = day
		return nil
	}
	if day.Equal(d.lastDay) {
		return nil
	}
	d.lastDay = day

	for _, strat := range ctx.Strategies {
		assets, err := resolveAssets(ctx, strat.Tickers)
		if err != nil {
			continue
		}
		combined := ctx.Assets[strat.CombinedID()]
		for _, sys := range strat.Systems {
			sys.ResetDayMarks(assets, combined)
		}
	}
	return nil
}
