package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Calendar action data. Buttons carry "cal:<verb>[:<arg>]".
const (
	calendarPrefix = "cal:"
	calendarDay    = "day"
	calendarPrev   = "prev"
	calendarNext   = "next"
	calendarIgnore = "ignore"
	monthLayout    = "2006-01"
	dayLayout      = "2006-01-02"
)

var weekdayLabels = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

var monthLabels = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// DateLabel renders a date the way sessions are labelled, e.g. "Сб 21.02"
func DateLabel(t time.Time) string {
	return weekdayLabels[t.Weekday()] + " " + t.Format("02.01")
}

// CalendarVerb is what a calendar button asks for
type CalendarVerb int

const (
	CalendarIgnore CalendarVerb = iota
	CalendarPick
	CalendarPrevMonth
	CalendarNextMonth
)

// CalendarAction is a decoded calendar button press
type CalendarAction struct {
	Verb CalendarVerb
	// Day is set for CalendarPick
	Day time.Time
	// Month is the month to show for CalendarPrevMonth and CalendarNextMonth
	Month time.Time
}

// IsCalendarAction reports whether data belongs to the date picker
func IsCalendarAction(data string) bool {
	return strings.HasPrefix(data, calendarPrefix)
}

// ParseCalendarAction decodes calendar button data
func ParseCalendarAction(data string) (CalendarAction, error) {
	rest, ok := strings.CutPrefix(data, calendarPrefix)
	if !ok {
		return CalendarAction{}, fmt.Errorf("not a calendar action: %q", data)
	}
	verb, arg, _ := strings.Cut(rest, ":")
	switch verb {
	case calendarIgnore:
		return CalendarAction{Verb: CalendarIgnore}, nil
	case calendarDay:
		day, err := time.Parse(dayLayout, arg)
		if err != nil {
			return CalendarAction{}, fmt.Errorf("bad calendar day %q: %w", arg, err)
		}
		return CalendarAction{Verb: CalendarPick, Day: day}, nil
	case calendarPrev, calendarNext:
		month, err := time.Parse(monthLayout, arg)
		if err != nil {
			return CalendarAction{}, fmt.Errorf("bad calendar month %q: %w", arg, err)
		}
		v := CalendarPrevMonth
		if verb == calendarNext {
			v = CalendarNextMonth
		}
		return CalendarAction{Verb: v, Month: month}, nil
	}
	return CalendarAction{}, fmt.Errorf("unknown calendar action: %q", data)
}

// MonthKey formats a month for storage in a draft
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// ParseMonthKey parses a month stored with MonthKey
func ParseMonthKey(key string) (time.Time, error) {
	return time.Parse(monthLayout, key)
}

// Calendar builds a month grid date picker. Weeks start on Monday.
func Calendar(month time.Time) *InlineKeyboard {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	ignore := func(text string) InlineButton {
		return InlineButton{Text: text, Data: calendarPrefix + calendarIgnore}
	}

	rows := [][]InlineButton{
		{ignore(monthLabels[first.Month()-1] + " " + strconv.Itoa(first.Year()))},
		{ignore("Пн"), ignore("Вт"), ignore("Ср"), ignore("Чт"), ignore("Пт"), ignore("Сб"), ignore("Вс")},
	}

	// Monday-based column of the first day
	offset := (int(first.Weekday()) + 6) % 7
	week := make([]InlineButton, 0, 7)
	for range offset {
		week = append(week, ignore(" "))
	}
	for day := first; day.Month() == first.Month(); day = day.AddDate(0, 0, 1) {
		week = append(week, InlineButton{
			Text: strconv.Itoa(day.Day()),
			Data: calendarPrefix + calendarDay + ":" + day.Format(dayLayout),
		})
		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]InlineButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, ignore(" "))
		}
		rows = append(rows, week)
	}

	rows = append(rows, []InlineButton{
		{Text: "<", Data: calendarPrefix + calendarPrev + ":" + MonthKey(first.AddDate(0, -1, 0))},
		ignore(" "),
		{Text: ">", Data: calendarPrefix + calendarNext + ":" + MonthKey(first.AddDate(0, 1, 0))},
	})
	return &InlineKeyboard{Rows: rows}
}
