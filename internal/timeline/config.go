package timeline

import (
	"github.com/cadre-oss/storyline/internal/agents"
	"github.com/cadre-oss/storyline/internal/config"
	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/narrative"
)

// SelectorFromConfig builds a selector with the configured friendly names,
// action types and narration rules, including rules_dir files.
func SelectorFromConfig(cfg *config.Config, logger Logger) (*Selector, error) {
	n := cfg.Narration
	rules, err := n.AllRules()
	if err != nil {
		return nil, sterrors.Wrap(sterrors.CodeConfigInvalid, "failed to load narration rules", err).
			WithSuggestion("Check the files in narration.rules_dir")
	}

	specs := make([]narrative.RuleSpec, 0, len(rules))
	for _, r := range rules {
		specs = append(specs, narrative.RuleSpec{
			ActionType: r.ActionType,
			Name:       r.Name,
			Keywords:   r.Keywords,
			Priority:   r.Priority,
			Steps:      r.Steps,
		})
	}

	registry := agents.NewRegistry(n.FriendlyNames, n.ActionTypes)
	return NewSelector(registry, narrative.NewCatalog(specs...), logger), nil
}
