package models

import (
	"bytes"
	"encoding/json"
)

type RuleStatus string

const (
	RuleStatusPassed     RuleStatus = "passed"
	RuleStatusFailed     RuleStatus = "failed"
	RuleStatusIncomplete RuleStatus = "incomplete"
)

// PlaybookResult is the evaluated, render-ready form of a playbook.
type PlaybookResult struct {
	PlaybookName     string         `json:"playbook_name"`
	Slug             string         `json:"slug,omitempty"`
	Score            int            `json:"score"`
	TotalScorecards  int            `json:"total_scorecards"`
	PassedScorecards int            `json:"passed_scorecards"`
	Pages            []PageResult   `json:"pages"`
	Links            []ResolvedLink `json:"links,omitempty"`
	Sidebar          any            `json:"sidebar,omitempty"`
	Meta             *Meta          `json:"_meta,omitempty"`
}

type Meta struct {
	SourceName string `json:"source_name,omitempty"`
}

type PageResult struct {
	Title            string          `json:"title"`
	Slug             string          `json:"slug,omitempty"`
	Score            int             `json:"score"`
	TotalScorecards  int             `json:"total_scorecards"`
	PassedScorecards int             `json:"passed_scorecards"`
	Sections         []SectionResult `json:"sections"`
}

type SectionResult struct {
	Name             string            `json:"name"`
	Score            int               `json:"score"`
	TotalScorecards  int               `json:"total_scorecards"`
	PassedScorecards int               `json:"passed_scorecards"`
	LevelsSummary    Summary           `json:"levels_summary"`
	TagsSummary      Summary           `json:"tags_summary"`
	Scorecards       []ScorecardResult `json:"scorecards"`
	RenderOrder      []string          `json:"render_order"`
	Hint             any               `json:"hint,omitempty"`
	Condition        any               `json:"condition,omitempty"`
	Display          *Display          `json:"display,omitempty"`
	Widgets          []ResolvedWidget  `json:"widgets,omitempty"`
}

type ScorecardResult struct {
	Name      string     `json:"name"`
	Title     string     `json:"title"`
	Level     string     `json:"level,omitempty"`
	Tags      []string   `json:"tags"`
	Analyzers []string   `json:"analyzers"`
	Passed    bool       `json:"passed"`
	Status    RuleStatus `json:"status"`
	Condition string     `json:"condition"`
	Details   string     `json:"details"`
}

// ResolvedWidget is a widget definition with its expressions evaluated.
type ResolvedWidget struct {
	Widget
	ResolvedValue    any `json:"resolved_value"`
	ResolvedSubvalue any `json:"resolved_subvalue"`
	ResolvedURL      any `json:"resolved_url"`
}

type ResolvedLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type SummaryEntry struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	Percentage int `json:"percentage"`
}

// Summary is an insertion-ordered map of per-level or per-tag statistics.
// It serializes as a JSON object whose keys keep insertion order.
type Summary struct {
	keys    []string
	entries map[string]SummaryEntry
}

func (s *Summary) Set(key string, entry SummaryEntry) {
	if s.entries == nil {
		s.entries = make(map[string]SummaryEntry)
	}
	if _, ok := s.entries[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.entries[key] = entry
}

func (s Summary) Get(key string) (SummaryEntry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

func (s Summary) Keys() []string {
	return append([]string(nil), s.keys...)
}

func (s Summary) Len() int {
	return len(s.keys)
}

func (s Summary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.entries[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = Summary{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var entry SummaryEntry
		if err := dec.Decode(&entry); err != nil {
			return err
		}
		s.Set(key, entry)
	}
	_, err := dec.Token()
	return err
}
