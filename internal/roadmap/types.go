package roadmap

import (
	"encoding/json"
	"strings"
)

// VisualData is the timeline rendered next to the markdown content.
// Keys the model adds beyond the known fields are kept and written back
// on encode.
type VisualData struct {
	Phases        []Phase `json:"phases"`
	TotalDuration string  `json:"total_duration"`

	extra map[string]json.RawMessage
}

// Phase is a single step of the learning timeline.
type Phase struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Milestones  []string `json:"milestones"`

	extra map[string]json.RawMessage
}

func (v *VisualData) UnmarshalJSON(data []byte) error {
	type alias VisualData
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, "phases", "total_duration")
	if err != nil {
		return err
	}
	*v = VisualData(a)
	v.extra = extra
	return nil
}

func (v VisualData) MarshalJSON() ([]byte, error) {
	type alias VisualData
	return marshalWithExtra(alias(v), v.extra)
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	type alias Phase
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := unknownFields(data, "id", "title", "description", "duration", "milestones")
	if err != nil {
		return err
	}
	*p = Phase(a)
	p.extra = extra
	return nil
}

func (p Phase) MarshalJSON() ([]byte, error) {
	type alias Phase
	return marshalWithExtra(alias(p), p.extra)
}

// unknownFields returns the members of a JSON object whose names do not
// match any of known, or nil when there are none.
func unknownFields(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for name := range all {
		for _, k := range known {
			if strings.EqualFold(name, k) {
				delete(all, name)
				break
			}
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func marshalWithExtra(known any, extra map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for name, raw := range extra {
		if _, ok := merged[name]; !ok {
			merged[name] = raw
		}
	}
	return json.Marshal(merged)
}

const (
	// MinQueryLength and MaxQueryLength bound the user query in characters.
	MinQueryLength = 3
	MaxQueryLength = 500

	// MaxTitleLength is the storage bound for roadmap titles.
	MaxTitleLength = 200

	fallbackTitlePrefix   = "Learning Roadmap: "
	fallbackTitleQueryLen = 50
)

// placeholderVisualData is the single-phase timeline used when the model
// reply could not be decoded.
func placeholderVisualData() *VisualData {
	return &VisualData{
		Phases: []Phase{
			{
				ID:          1,
				Title:       "Getting Started",
				Description: "Begin your learning journey",
				Duration:    "1-2 weeks",
				Milestones:  []string{"Complete initial setup", "Understand basics"},
			},
		},
		TotalDuration: "Varies based on dedication",
	}
}

// FallbackTitle labels a roadmap by the first 50 characters of its query.
func FallbackTitle(query string) string {
	return fallbackTitlePrefix + truncateRunes(query, fallbackTitleQueryLen)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
