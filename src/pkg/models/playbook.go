package models

import (
	"gopkg.in/yaml.v3"
)

// Playbook is the declarative definition of a dashboard/scorecard set.
// Either Pages or Sections must be present; a playbook with only Sections
// is laid out on a single implicit page.
type Playbook struct {
	Name     string    `yaml:"name" json:"name"`
	Slug     string    `yaml:"slug,omitempty" json:"slug,omitempty"`
	Pages    []Page    `yaml:"pages,omitempty" json:"pages,omitempty"`
	Sections []Section `yaml:"sections,omitempty" json:"sections,omitempty"`
	Links    []Link    `yaml:"links,omitempty" json:"links,omitempty"`
	Sidebar  any       `yaml:"sidebar,omitempty" json:"sidebar,omitempty"`
}

type Page struct {
	Title    string    `yaml:"title,omitempty" json:"title,omitempty"`
	Slug     string    `yaml:"slug,omitempty" json:"slug,omitempty"`
	Sections []Section `yaml:"sections,omitempty" json:"sections,omitempty"`
}

// Section groups scorecards and widgets. KeyOrder keeps the order in which
// the section's keys were declared in the source document.
type Section struct {
	Name       string      `yaml:"name" json:"name"`
	Hint       any         `yaml:"hint,omitempty" json:"hint,omitempty"`
	Condition  any         `yaml:"condition,omitempty" json:"condition,omitempty"`
	Levels     []Level     `yaml:"levels,omitempty" json:"levels,omitempty"`
	Scorecards []Scorecard `yaml:"scorecards,omitempty" json:"scorecards,omitempty"`
	Widgets    []Widget    `yaml:"widgets,omitempty" json:"widgets,omitempty"`
	Display    *Display    `yaml:"display,omitempty" json:"display,omitempty"`

	KeyOrder []string `yaml:"-" json:"-"`
}

func (s *Section) UnmarshalYAML(node *yaml.Node) error {
	type plain Section
	if err := node.Decode((*plain)(s)); err != nil {
		return err
	}
	s.KeyOrder = mappingKeys(node)
	return nil
}

// Display holds presentation hints: extra widgets and the analyzers whose
// raw output should be shown.
type Display struct {
	Widgets   []Widget `yaml:"widgets,omitempty" json:"widgets,omitempty"`
	Analyzers []string `yaml:"analyzers,omitempty" json:"analyzers,omitempty"`

	KeyOrder []string `yaml:"-" json:"-"`
}

func (d *Display) UnmarshalYAML(node *yaml.Node) error {
	type plain Display
	if err := node.Decode((*plain)(d)); err != nil {
		return err
	}
	d.KeyOrder = mappingKeys(node)
	return nil
}

type Level struct {
	Name  string `yaml:"name" json:"name"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Order *int   `yaml:"order,omitempty" json:"order,omitempty"`
}

// Scorecard is a single rule: a JsonLogic condition evaluated against the report.
type Scorecard struct {
	Name      string   `yaml:"name" json:"name"`
	Title     string   `yaml:"title,omitempty" json:"title,omitempty"`
	Level     string   `yaml:"level,omitempty" json:"level,omitempty"`
	Tags      []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Condition any      `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// DisplayTitle returns the title, falling back to the rule name.
func (s Scorecard) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

type Widget struct {
	Label     string         `yaml:"label,omitempty" json:"label,omitempty"`
	Template  string         `yaml:"template,omitempty" json:"template,omitempty"`
	Value     any            `yaml:"value,omitempty" json:"value,omitempty"`
	Subvalue  any            `yaml:"subvalue,omitempty" json:"subvalue,omitempty"`
	URL       any            `yaml:"url,omitempty" json:"url,omitempty"`
	Condition any            `yaml:"condition,omitempty" json:"condition,omitempty"`
	Options   map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// SubvalueExpr returns the subvalue expression, read from the widget itself
// or from its options.
func (w Widget) SubvalueExpr() any {
	if w.Subvalue != nil {
		return w.Subvalue
	}
	if w.Options != nil {
		return w.Options["subvalue"]
	}
	return nil
}

// Identity is the name used in logs for this widget.
func (w Widget) Identity() string {
	switch {
	case w.Label != "":
		return w.Label
	case w.Template != "":
		return w.Template
	default:
		return "unknown"
	}
}

// Link is an external link attached to the playbook. Entries that are not
// mappings are kept with Invalid set so they can be skipped during evaluation.
type Link struct {
	Label     string `yaml:"label,omitempty" json:"label,omitempty"`
	URL       any    `yaml:"url,omitempty" json:"url,omitempty"`
	Condition any    `yaml:"condition,omitempty" json:"condition,omitempty"`

	Invalid bool `yaml:"-" json:"-"`
}

func (l *Link) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		l.Invalid = true
		return nil
	}
	type plain Link
	return node.Decode((*plain)(l))
}

// Normalize converts every free-form value decoded from YAML (conditions,
// widget expressions, sidebar) into JSON-compatible Go types.
func (p *Playbook) Normalize() {
	p.Sidebar = Normalize(p.Sidebar)
	for i := range p.Links {
		p.Links[i].URL = Normalize(p.Links[i].URL)
		p.Links[i].Condition = Normalize(p.Links[i].Condition)
	}
	normalizeSections(p.Sections)
	for i := range p.Pages {
		normalizeSections(p.Pages[i].Sections)
	}
}

func normalizeSections(sections []Section) {
	for i := range sections {
		s := &sections[i]
		s.Hint = Normalize(s.Hint)
		s.Condition = Normalize(s.Condition)
		for j := range s.Scorecards {
			s.Scorecards[j].Condition = Normalize(s.Scorecards[j].Condition)
		}
		normalizeWidgets(s.Widgets)
		if s.Display != nil {
			normalizeWidgets(s.Display.Widgets)
		}
	}
}

func normalizeWidgets(widgets []Widget) {
	for i := range widgets {
		w := &widgets[i]
		w.Value = Normalize(w.Value)
		w.Subvalue = Normalize(w.Subvalue)
		w.URL = Normalize(w.URL)
		w.Condition = Normalize(w.Condition)
		if w.Options != nil {
			w.Options = Normalize(w.Options).(map[string]any)
		}
	}
}

func mappingKeys(node *yaml.Node) []string {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}
