package gamma

import (
	"encoding/json"
	"strings"
)

// StringArray handles Gamma fields that arrive as a JSON-encoded array
// string (e.g. "[\"Up\",\"Down\"]") or, defensively, as a plain array.
type StringArray []string

func (a *StringArray) UnmarshalJSON(data []byte) error {
	// Plain array form.
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*a = direct
		return nil
	}

	// Double-encoded form.
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), (*[]string)(a))
}

// flexBool unmarshals from JSON bool or string ("true"/"false") since the
// Gamma API is inconsistent about boolean encoding across endpoints.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIEvent is an event object from the Gamma /events endpoint.
// An event groups one or more markets.
type APIEvent struct {
	ID        string      `json:"id"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	StartTime string      `json:"startTime"`
	EndDate   string      `json:"endDate"`
	Closed    flexBool    `json:"closed"`
	Active    flexBool    `json:"active"`
	Markets   []APIMarket `json:"markets"`
}

// APIMarket is a market object nested in a Gamma event.
type APIMarket struct {
	ID             string      `json:"id"`
	ConditionID    string      `json:"conditionId"`
	Slug           string      `json:"slug"`
	Question       string      `json:"question"`
	EndDate        string      `json:"endDate"`
	EventStartTime string      `json:"eventStartTime"`
	StartTime      string      `json:"startTime"`
	ClobTokenIDs   StringArray `json:"clobTokenIds"`
	Outcomes       StringArray `json:"outcomes"`
	Closed         flexBool    `json:"closed"`
	Active         flexBool    `json:"active"`
}

// EventQuery selects event catalogs. Exactly one of TagSlug, SlugPrefix,
// or Slug is typically set per query.
type EventQuery struct {
	TagSlug    string
	SlugPrefix string
	Slug       string
	Closed     *bool
	Limit      int
}
