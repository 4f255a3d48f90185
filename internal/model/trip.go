// Package model defines data structures for the trip planner.
package model

import (
	"encoding/json"
	"strings"
)

// TripRequest is one traveler's planning request. It is built per call and
// not modified afterwards.
type TripRequest struct {
	Origin    string
	Cities    []string
	DateRange string
	Interests string
}

// CitiesText renders the candidate cities the way they are shown to stages.
func (r TripRequest) CitiesText() string {
	return strings.Join(r.Cities, ", ")
}

// Validate reports missing required fields.
func (r TripRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Origin) == "" {
		missing = append(missing, "origin")
	}
	if len(r.Cities) == 0 {
		missing = append(missing, "cities")
	}
	if strings.TrimSpace(r.DateRange) == "" {
		missing = append(missing, "date_range")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Message: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

// CityList accepts either a JSON array of names or a comma separated string.
type CityList []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *CityList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = normalizeCities(list)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*c = SplitCities(text)
	return nil
}

// SplitCities splits a comma separated city string, accepting the full-width
// comma too, and drops empty entries.
func SplitCities(text string) []string {
	text = strings.ReplaceAll(text, "，", ",")
	return normalizeCities(strings.Split(text, ","))
}

func normalizeCities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, city := range in {
		if city = strings.TrimSpace(city); city != "" {
			out = append(out, city)
		}
	}
	return out
}

// PlanRequest is the body of POST /plan and POST /plan/ics.
type PlanRequest struct {
	Origin    string   `json:"origin" validate:"required,max=200"`
	Cities    CityList `json:"cities" validate:"required,min=1,max=20,dive,max=200"`
	DateRange string   `json:"date_range" validate:"required,max=100"`
	Interests string   `json:"interests,omitempty" validate:"max=2000"`
}

// TripRequest converts the body into a planning request.
func (p PlanRequest) TripRequest() TripRequest {
	return TripRequest{
		Origin:    strings.TrimSpace(p.Origin),
		Cities:    []string(p.Cities),
		DateRange: strings.TrimSpace(p.DateRange),
		Interests: strings.TrimSpace(p.Interests),
	}
}

// ICSResponse is returned by POST /plan/ics.
type ICSResponse struct {
	ICS         string `json:"ics"`
	RawMarkdown string `json:"raw_markdown"`
}
