// Package schedule generates the quarterly service calendar and reconciles
// it against the external assignment records.
package schedule

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"liturgyd/internal/liturgical"
	"liturgyd/internal/model"
)

// displayLayout renders dates the way the sign-up sheet shows them.
const displayLayout = "January 2, 2006"

// Generate enumerates every Sunday service in the window, attaches
// liturgical annotations, and injects the Christmas Eve service when
// December 24 falls inside the window. The result is sorted ascending by
// date. Generation is deterministic and side-effect-free; instances are
// rebuilt on every call and never persisted.
func Generate(w Window, loc *time.Location) ([]model.ServiceInstance, error) {
	if loc == nil {
		loc = time.Local
	}

	start := w.Start(loc)
	end := w.End(loc)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{rrule.SU},
		Dtstart:   start,
		Until:     end,
	})
	if err != nil {
		return nil, err
	}

	instances := make([]model.ServiceInstance, 0, 16)
	for _, sunday := range r.All() {
		instances = append(instances, newInstance(sunday))
	}

	// Christmas Eve is the one non-Sunday service. It is injected and
	// re-sorted into chronological position, not appended. Years where
	// December 24 is itself a Sunday already have the instance.
	eve := liturgical.ChristmasEve(w.Year, loc)
	if w.Contains(eve) && !containsDate(instances, eve) {
		instances = append(instances, newInstance(eve))
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Date.Before(instances[j].Date)
	})

	return instances, nil
}

func containsDate(instances []model.ServiceInstance, date time.Time) bool {
	key := date.Format(model.DateLayout)
	for _, inst := range instances {
		if inst.DateKey == key {
			return true
		}
	}
	return false
}

func newInstance(date time.Time) model.ServiceInstance {
	annotation, _ := liturgical.AnnotationFor(date)

	label := date.Format(displayLayout)
	if date.Month() == time.December && date.Day() == 24 {
		// Downstream consumers key Christmas Eve handling off this prefix.
		label = "Christmas Eve — " + label
	}

	return model.NewServiceInstance(date, label, annotation)
}
