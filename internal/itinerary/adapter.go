// Package itinerary converts generated itinerary text into structured plans
// and derived exports.
package itinerary

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tripcrew/trip-planner/internal/dates"
	"github.com/tripcrew/trip-planner/internal/model"
)

var listMarkerRe = regexp.MustCompile(`^(?:[-*+•]|\d{1,2}[.)])\s+`)

// ToStructured splits raw Markdown into per-day activity lists.
//
// The parser is a best-effort heuristic over model-authored text. A heading
// line that mentions one of the known dates makes that date active; every
// other non-empty line is appended to the active day with any leading list
// marker ("- ", "* ", "• ", "1. ", "2) ") removed, up to
// model.MaxActivitiesPerDay. RawMarkdown keeps the lines as written. Text before the first dated heading is dropped,
// and a date that never appears in a heading keeps an empty activity list.
func ToStructured(raw string, days dates.Sequence) model.StructuredPlan {
	if len(days) == 0 {
		days, _ = dates.Resolve("", time.Now())
	}
	keys := days.Strings()

	blocks := make(map[string][]string, len(keys))
	var active string

	for _, line := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "#") {
			for _, d := range keys {
				if strings.Contains(text, d) {
					active = d
					break
				}
			}
			continue
		}

		if active == "" || len(blocks[active]) >= model.MaxActivitiesPerDay {
			continue
		}
		if item := listMarkerRe.ReplaceAllString(text, ""); item != "" {
			blocks[active] = append(blocks[active], item)
		}
	}

	plan := model.StructuredPlan{
		Summary:     Summary(len(keys)),
		Days:        make([]model.DayPlan, len(keys)),
		RawMarkdown: raw,
	}
	for i, d := range keys {
		activities := blocks[d]
		if activities == nil {
			activities = []string{}
		}
		plan.Days[i] = model.DayPlan{Date: d, Activities: activities}
	}
	return plan
}

// Summary is the deterministic plan summary for a trip of n days.
func Summary(n int) string {
	unit := "days"
	if n == 1 {
		unit = "day"
	}
	return fmt.Sprintf("%d-%s itinerary covering transport, meals and sights from arrival to departure.", n, unit)
}
