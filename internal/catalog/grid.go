package catalog

import (
	"slices"
	"time"

	"barberline/pkg/model"
)

// Grid lays out the free 30-minute blocks of every active barber for each
// open day from the day containing from up to lookaheadDays ahead, in loc.
// Days are whole: the last day is laid out to closing time. Blocks that
// start before from are skipped.
func (c *Catalog) Grid(from time.Time, lookaheadDays int, loc *time.Location) ([]model.AvailabilitySlot, error) {
	if loc == nil {
		loc = time.UTC
	}
	openMin, closeMin, err := c.OpenClose()
	if err != nil {
		return nil, err
	}
	days := c.OpenDays()
	barbers := c.ActiveBarbers()

	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var slots []model.AvailabilitySlot
	for d := 0; d <= lookaheadDays; d++ {
		date := day.AddDate(0, 0, d)
		if !slices.Contains(days, date.Weekday()) {
			continue
		}
		for m := openMin; m+model.SlotBlockMinutes <= closeMin; m += model.SlotBlockMinutes {
			start := time.Date(date.Year(), date.Month(), date.Day(), m/60, m%60, 0, 0, loc)
			if start.Before(from) {
				continue
			}
			for _, b := range barbers {
				slots = append(slots, model.NewFreeSlot(b.ID, start))
			}
		}
	}
	return slots, nil
}
