// Package liturgical computes the moveable dates this schedule cares about:
// the four Advent Sundays (counted backward from Christmas) and Christmas
// Eve, plus the candle-lighting annotation text for each.
package liturgical

import (
	"fmt"
	"strings"
	"time"
)

// ChristmasEve returns December 24 of the given year at midnight in loc.
func ChristmasEve(year int, loc *time.Location) time.Time {
	return time.Date(year, time.December, 24, 0, 0, 0, 0, loc)
}

// AdventSundays returns the four Advent Sundays of the given year in
// ascending order.
//
// The fourth Advent Sunday is the Sunday on or immediately before
// December 25; when Christmas Day itself falls on a Sunday, Christmas Day is
// the fourth Advent Sunday. The remaining three are found by stepping back
// seven days at a time.
func AdventSundays(year int, loc *time.Location) [4]time.Time {
	christmas := time.Date(year, time.December, 25, 0, 0, 0, 0, loc)

	fourth := christmas
	for fourth.Weekday() != time.Sunday {
		fourth = fourth.AddDate(0, 0, -1)
	}

	var sundays [4]time.Time
	for i := 3; i >= 0; i-- {
		sundays[i] = fourth
		fourth = fourth.AddDate(0, 0, -7)
	}
	return sundays
}

// AdventWeek reports which Advent week (1..4) the given date is, if any.
// Comparison is by calendar date in the date's own location.
func AdventWeek(date time.Time) (int, bool) {
	for i, s := range AdventSundays(date.Year(), date.Location()) {
		if sameDate(s, date) {
			return i + 1, true
		}
	}
	return 0, false
}

// AnnotationFor returns the liturgical note for the given date, if it has
// one. Advent Sundays carry a cumulative candle count (week k lights candles
// 1 through k); Christmas Eve is the five-candle service where the Christ
// candle joins the four Advent candles.
func AnnotationFor(date time.Time) (string, bool) {
	if sameDate(date, ChristmasEve(date.Year(), date.Location())) {
		return "Christmas Eve — Liturgists light all four Advent candles and the Christ candle.", true
	}
	week, ok := AdventWeek(date)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("Advent Week %d — Liturgist lights %s.", week, candlePhrase(week)), true
}

func candlePhrase(week int) string {
	if week == 1 {
		return "the Advent candle"
	}
	nums := make([]string, week)
	for i := 0; i < week; i++ {
		nums[i] = fmt.Sprint(i + 1)
	}
	last := nums[week-1]
	return "Advent candles " + strings.Join(nums[:week-1], ", ") + " and " + last
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
