package itinerary

import (
	"strings"

	"github.com/tripcrew/trip-planner/internal/dates"
)

const icsProdID = "-//TripPlanner//EN"

// ICSPlaceholder is returned as raw_markdown by the calendar endpoint, which
// does not run the planning pipeline.
const ICSPlaceholder = "Calendar placeholder: call /api/v1/plan first to generate itinerary content."

// BuildICS renders a minimal iCalendar document with one all-day placeholder
// event per date. Lines are CRLF terminated.
func BuildICS(days dates.Sequence, title string) string {
	if title == "" {
		title = "Trip"
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icsProdID,
		"CALSCALE:GREGORIAN",
	}
	for _, d := range days {
		day := d.Format("20060102")
		next := d.AddDate(0, 0, 1).Format("20060102")
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+day+"@tripplanner",
			"DTSTAMP:"+day+"T090000Z",
			"DTSTART;VALUE=DATE:"+day,
			"DTEND;VALUE=DATE:"+next,
			"SUMMARY:"+escapeText(title+" "+d.Format(dates.ISOLayout)),
			"END:VEVENT",
		)
	}
	lines = append(lines, "END:VCALENDAR")

	return strings.Join(lines, "\r\n")
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

func escapeText(s string) string {
	return icsEscaper.Replace(s)
}
