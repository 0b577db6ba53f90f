package playbook

import (
	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

const (
	blockLevels     = "levels"
	blockScorecards = "scorecards"
	blockWidgets    = "widgets"
	blockAnalyzers  = "analyzers"
	blockTags       = "tags"
	keyDisplay      = "display"
)

// renderOrder lists the section's visual blocks in the order their keys were
// declared. Keys under "display" contribute their own blocks in place. The
// tags block precedes the scorecards block when the section has tags.
func renderOrder(def models.Section, hasTags bool) []string {
	keys := def.KeyOrder
	if len(keys) == 0 {
		keys = implicitKeyOrder(def)
	}

	order := make([]string, 0, 5)
	seen := make(map[string]bool)
	add := func(block string) {
		if !seen[block] {
			seen[block] = true
			order = append(order, block)
		}
	}

	for _, key := range keys {
		switch key {
		case blockLevels, blockScorecards, blockWidgets:
			add(key)
		case keyDisplay:
			if def.Display == nil {
				continue
			}
			for _, sub := range displayKeyOrder(def.Display) {
				if sub == blockWidgets || sub == blockAnalyzers {
					add(sub)
				}
			}
		}
	}

	if !hasTags {
		return order
	}
	for i, block := range order {
		if block == blockScorecards {
			order = append(order[:i], append([]string{blockTags}, order[i:]...)...)
			return order
		}
	}
	return append(order, blockTags)
}

// implicitKeyOrder is used for sections built in code rather than decoded
// from a document.
func implicitKeyOrder(def models.Section) []string {
	var keys []string
	if len(def.Levels) > 0 {
		keys = append(keys, blockLevels)
	}
	if len(def.Scorecards) > 0 {
		keys = append(keys, blockScorecards)
	}
	if len(def.Widgets) > 0 {
		keys = append(keys, blockWidgets)
	}
	if def.Display != nil {
		keys = append(keys, keyDisplay)
	}
	return keys
}

func displayKeyOrder(d *models.Display) []string {
	if len(d.KeyOrder) > 0 {
		return d.KeyOrder
	}
	var keys []string
	if len(d.Widgets) > 0 {
		keys = append(keys, blockWidgets)
	}
	if len(d.Analyzers) > 0 {
		keys = append(keys, blockAnalyzers)
	}
	return keys
}
