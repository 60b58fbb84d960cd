package core

import "strings"

// DefaultActiveActivities lists the lower-cased presence activities that
// mean the subject is on a call or presenting. The first four are the
// values the presence service actually reports; the last two are older
// spellings kept for compatibility.
var DefaultActiveActivities = []string{
	"inacall",
	"inaconferencecall",
	"inameeting",
	"presenting",
	"inaudiocall",
	"inmeeting",
}

// Classifier maps a presence status to the "light should be on" signal
type Classifier struct {
	active map[string]struct{}
}

// NewClassifier builds a classifier from a table of activities.
// An empty table selects DefaultActiveActivities.
func NewClassifier(activities []string) *Classifier {
	if len(activities) == 0 {
		activities = DefaultActiveActivities
	}
	active := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			active[a] = struct{}{}
		}
	}
	return &Classifier{active: active}
}

// IsActive reports whether the status' activity is in the active table.
// Matching is case-insensitive; unknown activities are inactive.
func (c *Classifier) IsActive(status PresenceStatus) bool {
	_, ok := c.active[strings.ToLower(status.Activity)]
	return ok
}

// Activities returns the table in no particular order
func (c *Classifier) Activities() []string {
	out := make([]string, 0, len(c.active))
	for a := range c.active {
		out = append(out, a)
	}
	return out
}

var defaultClassifier = NewClassifier(nil)

// IsActive classifies status using DefaultActiveActivities
func IsActive(status PresenceStatus) bool {
	return defaultClassifier.IsActive(status)
}
