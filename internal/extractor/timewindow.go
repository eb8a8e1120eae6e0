package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"barberline/pkg/model"
)

type dayPart struct {
	name       string
	start, end int // hours
}

var dayParts = []struct {
	words []string
	part  dayPart
}{
	{[]string{"morning"}, dayPart{"morning", 6, 12}},
	{[]string{"noon", "lunchtime", "lunch time", "midday"}, dayPart{"midday", 11, 14}},
	{[]string{"afternoon"}, dayPart{"afternoon", 12, 17}},
	{[]string{"evening", "tonight", "after work"}, dayPart{"evening", 17, 21}},
}

var openWindowPhrases = []string{
	"next available", "soonest", "earliest", "as soon as possible", "asap",
	"anytime", "any time", "whenever", "doesn't matter", "does not matter",
	"first available", "any day",
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

var (
	reWeekday  = regexp.MustCompile(`\b(this |next |on )?(sunday|monday|tuesday|wednesday|thursday|friday|saturday)s?\b`)
	reMonthDay = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december) (\d{1,2})(?:st|nd|rd|th)?\b`)
	reClock    = regexp.MustCompile(`\b(?:at |around |about |by )?(\d{1,2})(?::(\d{2}))? ?(am|pm|a m|p m|o'clock|oclock)?\b`)
	reAtHour   = regexp.MustCompile(`\b(?:at|around|about) (\d{1,2})(?::(\d{2}))?\b`)
	reWordHour = regexp.MustCompile(`\b(?:at|around|about) (?:ten|eleven|twelve)\b|\b(?:ten|eleven|twelve) (?:am|pm|a m|p m|o'clock)\b`)
)

var wordHours = map[string]string{"ten": "10", "eleven": "11", "twelve": "12"}

// WindowResult is the outcome of reading a time preference from an utterance.
type WindowResult struct {
	Window    *model.TimeWindow
	Found     bool
	Ambiguous bool
	Reason    string
}

// ParseWindow resolves relative phrasing ("tomorrow afternoon", "next tuesday
// at 3") against now, in now's location. A day part or clock time with no day,
// or a window entirely in the past, is reported ambiguous instead of guessed.
func ParseWindow(text string, now time.Time) WindowResult {
	text = " " + text + " "

	for _, p := range openWindowPhrases {
		if strings.Contains(text, " "+p+" ") {
			return WindowResult{
				Window: &model.TimeWindow{Start: now, Label: "the next available time", Open: true},
				Found:  true,
			}
		}
	}

	text = reWordHour.ReplaceAllStringFunc(text, func(m string) string {
		for word, n := range wordHours {
			m = strings.Replace(m, word, n, 1)
		}
		return m
	})

	day, dayOK, dayInvalid := parseDay(text, now)
	part, havePart := parseDayPart(text)
	hour, minute, haveClock := parseClock(text)

	if dayInvalid {
		return WindowResult{Found: true, Ambiguous: true, Reason: "date"}
	}
	if !dayOK && !havePart && !haveClock {
		return WindowResult{}
	}
	if !dayOK {
		if !strings.Contains(text, " tonight ") {
			return WindowResult{Found: true, Ambiguous: true, Reason: "day"}
		}
		day = dayRef{start: startOfDay(now), days: 1, label: "today"}
	}

	w := &model.TimeWindow{Label: day.label}
	switch {
	case haveClock && day.days == 1:
		w.Start = day.start.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
		w.End = w.Start.Add(time.Hour)
		w.Label = fmt.Sprintf("%s at %s", day.label, w.Start.Format("3:04 PM"))
	case havePart && day.days == 1:
		w.Start = day.start.Add(time.Duration(part.start) * time.Hour)
		w.End = day.start.Add(time.Duration(part.end) * time.Hour)
		w.Label = fmt.Sprintf("%s %s", day.label, part.name)
	default:
		w.Start = day.start
		w.End = day.start.AddDate(0, 0, day.days)
	}

	if !w.End.After(now) {
		return WindowResult{Window: w, Found: true, Ambiguous: true, Reason: "past"}
	}
	if w.Start.Before(now) {
		w.Start = now
	}
	return WindowResult{Window: w, Found: true}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type dayRef struct {
	start time.Time
	days  int
	label string
}

// parseDay finds the day the caller means. invalid is set for dates that do
// not exist, such as "february 30".
func parseDay(text string, now time.Time) (ref dayRef, found, invalid bool) {
	today := startOfDay(now)
	one := func(d time.Time, label string) (dayRef, bool, bool) {
		return dayRef{start: d, days: 1, label: label}, true, false
	}

	switch {
	case strings.Contains(text, " day after tomorrow "):
		d := today.AddDate(0, 0, 2)
		return one(d, d.Weekday().String())
	case strings.Contains(text, " tomorrow "):
		return one(today.AddDate(0, 0, 1), "tomorrow")
	case strings.Contains(text, " today ") || strings.Contains(text, " this morning ") ||
		strings.Contains(text, " this afternoon ") || strings.Contains(text, " this evening "):
		return one(today, "today")
	}

	if m := reMonthDay.FindStringSubmatch(text); m != nil {
		dayNum, _ := strconv.Atoi(m[2])
		month := months[m[1]]
		d := time.Date(now.Year(), month, dayNum, 0, 0, 0, 0, now.Location())
		if dayNum == 0 || d.Month() != month {
			return dayRef{}, false, true
		}
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		return one(d, d.Format("Monday, January 2"))
	}

	if m := reWeekday.FindStringSubmatch(text); m != nil {
		target := weekdays[m[2]]
		offset := (int(target) - int(today.Weekday()) + 7) % 7
		// "next tuesday" said on a Tuesday means a week out; on any other
		// day it is the coming Tuesday.
		if strings.TrimSpace(m[1]) == "next" && offset == 0 {
			offset = 7
		}
		d := today.AddDate(0, 0, offset)
		if offset == 0 {
			return one(d, "today")
		}
		return one(d, d.Weekday().String())
	}

	if strings.Contains(text, " this week ") {
		return dayRef{start: today, days: 7 - int(today.Weekday()), label: "this week"}, true, false
	}
	if strings.Contains(text, " next week ") {
		offset := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return dayRef{start: today.AddDate(0, 0, offset), days: 7, label: "next week"}, true, false
	}
	if strings.Contains(text, " weekend ") {
		offset := (int(time.Saturday) - int(today.Weekday()) + 7) % 7
		return dayRef{start: today.AddDate(0, 0, offset), days: 2, label: "the weekend"}, true, false
	}
	return dayRef{}, false, false
}

func parseDayPart(text string) (dayPart, bool) {
	for _, dp := range dayParts {
		for _, w := range dp.words {
			if strings.Contains(text, " "+w+" ") {
				return dp.part, true
			}
		}
	}
	return dayPart{}, false
}

// parseClock reads "3pm", "at 3", "3:30" and "10 o'clock". A bare hour only
// counts after "at"/"around" so "book 2 haircuts" is not a time. Hours below 8
// without am/pm are afternoon hours; the shop is never open at 3am.
func parseClock(text string) (hour, minute int, found bool) {
	for _, m := range reClock.FindAllStringSubmatch(text, -1) {
		suffix := strings.ReplaceAll(m[3], " ", "")
		if suffix == "" && m[2] == "" {
			continue
		}
		if h, mm, ok := clockValue(m[1], m[2], suffix); ok {
			return h, mm, true
		}
	}
	if m := reAtHour.FindStringSubmatch(text); m != nil {
		if h, mm, ok := clockValue(m[1], m[2], ""); ok {
			return h, mm, true
		}
	}
	return 0, 0, false
}

func clockValue(hourText, minuteText, suffix string) (int, int, bool) {
	h, err := strconv.Atoi(hourText)
	if err != nil || h > 23 {
		return 0, 0, false
	}
	mm := 0
	if minuteText != "" {
		mm, err = strconv.Atoi(minuteText)
		if err != nil || mm > 59 {
			return 0, 0, false
		}
	}
	switch suffix {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	default:
		if h >= 1 && h < 8 {
			h += 12
		}
	}
	if h > 23 {
		return 0, 0, false
	}
	return h, mm, true
}
