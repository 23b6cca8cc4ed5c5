// Package feed renders a reconciled quarter as an iCalendar document so the
// schedule can be subscribed to from any calendar client.
package feed

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"liturgyd/internal/model"
)

const calendarName = "Liturgist Schedule"

// Build serializes the view as an ICS document with one all-day event per
// service instance.
func Build(view model.ReconciledView) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//liturgyd//schedule//EN")
	cal.SetName(calendarName)

	now := time.Now().UTC()
	for _, inst := range view.Instances {
		ev := cal.AddEvent(inst.DateKey + "@liturgyd")
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(inst.Date)
		ev.SetAllDayEndAt(inst.Date.AddDate(0, 0, 1))
		ev.SetSummary(summaryFor(inst))

		if desc := descriptionFor(inst); desc != "" {
			ev.SetDescription(desc)
		}
	}

	return cal.Serialize()
}

func summaryFor(inst model.ServiceInstance) string {
	service := "Worship Service"
	if strings.Contains(inst.DisplayLabel, "Christmas Eve") {
		service = "Christmas Eve Service"
	}

	if primary := inst.Slots[model.RolePrimary]; primary != nil {
		return service + " - Liturgist: " + primary.Name
	}
	return service + " - Liturgist needed"
}

func descriptionFor(inst model.ServiceInstance) string {
	var lines []string
	if inst.Annotation != "" {
		lines = append(lines, inst.Annotation)
	}
	if a := inst.Slots[model.RoleSecondary]; a != nil {
		lines = append(lines, "Second liturgist: "+a.Name)
	}
	if a := inst.Slots[model.RoleBackup]; a != nil {
		lines = append(lines, "Backup: "+a.Name)
	}
	return strings.Join(lines, "\n")
}
