package export

import (
	"fmt"

	"gardenplan/internal/domain"

	ics "github.com/arran4/golang-ical"
)

// CalendarICS renders one gardener's month as an iCalendar feed of all-day
// events, one per assignment, so the schedule can be subscribed to from a
// phone calendar.
func CalendarICS(plan *domain.Plan, gardener *domain.Gardener, assignments []domain.Assignment) []byte {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//gardenplan//schedule//EN")
	cal.SetName(fmt.Sprintf("%s %s", gardener.Name, plan.Key()))

	for _, a := range assignments {
		event := cal.AddEvent(fmt.Sprintf("%s@gardenplan", a.ID.Hex()))
		event.SetAllDayStartAt(a.WorkDate)
		event.SetAllDayEndAt(a.WorkDate.AddDate(0, 0, 1))
		event.SetSummary(a.Address)
		event.SetLocation(a.Address)
		if a.Notes != "" {
			event.SetDescription(a.Notes)
		}
		event.SetDtStampTime(a.CreatedAt)
	}

	return []byte(cal.Serialize())
}
