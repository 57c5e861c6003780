package narrative

import (
	"sort"
	"strings"
)

const (
	// MaxSteps caps the narrative produced for one agent.
	MaxSteps = 9
	// contextThreshold is the step count below which scored contexts are
	// consulted after the unconditional sequence.
	contextThreshold = 6
)

// FallbackSteps is returned when no definition produces any narrative.
var FallbackSteps = []string{
	"Processing received information",
	"Analyzing available context",
	"Compiling clear response",
}

// Step renders one narrative line from a context. An empty result means the
// step does not apply.
type Step func(c *Context) string

// Rule is a specialized narrative that competes on score.
type Rule struct {
	Name  string
	Score func(c *Context) int
	Steps []Step
}

// Definition is the narrative table for one action type.
type Definition struct {
	Sequence []Step
	Contexts []Rule
}

// Catalog maps action types to definitions.
type Catalog struct {
	defs map[string]*Definition
}

// NewCatalog returns the built-in catalog extended with extra rules.
func NewCatalog(extra ...RuleSpec) *Catalog {
	c := &Catalog{defs: builtinDefinitions()}
	for _, spec := range extra {
		c.AddRule(spec)
	}
	return c
}

// Has reports whether actionType has a definition.
func (c *Catalog) Has(actionType string) bool {
	_, ok := c.defs[actionType]
	return ok
}

// AddRule compiles spec into a scored context. ActionType "*" adds the rule
// to every definition.
func (c *Catalog) AddRule(spec RuleSpec) {
	rule := spec.compile()
	if spec.ActionType == AnyAction {
		for _, def := range c.sortedDefs() {
			def.Contexts = append(def.Contexts, rule)
		}
		return
	}
	def, ok := c.defs[spec.ActionType]
	if !ok {
		def = &Definition{}
		c.defs[spec.ActionType] = def
	}
	def.Contexts = append(def.Contexts, rule)
}

func (c *Catalog) sortedDefs() []*Definition {
	keys := make([]string, 0, len(c.defs))
	for k := range c.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	defs := make([]*Definition, len(keys))
	for i, k := range keys {
		defs[i] = c.defs[k]
	}
	return defs
}

// Steps returns the ordered narrative for ctx. The result is stable for a
// given context and never empty.
func (c *Catalog) Steps(ctx *Context) []string {
	if ctx == nil {
		return append([]string(nil), FallbackSteps...)
	}
	def, ok := c.defs[ctx.ActionType]
	if !ok {
		return append([]string(nil), FallbackSteps...)
	}

	out := &stepList{seen: make(map[string]bool)}
	for _, step := range def.Sequence {
		out.add(step(ctx))
	}

	if out.len() < contextThreshold {
		for _, rule := range rankRules(def.Contexts, ctx) {
			if out.full() {
				break
			}
			for _, step := range rule.Steps {
				out.add(step(ctx))
			}
		}
	}

	if out.len() == 0 {
		return append([]string(nil), FallbackSteps...)
	}
	return out.items
}

type scoredRule struct {
	rule  Rule
	score int
}

// rankRules keeps strictly positive scores, highest first; ties keep
// declaration order.
func rankRules(rules []Rule, ctx *Context) []Rule {
	scored := make([]scoredRule, 0, len(rules))
	for _, r := range rules {
		if r.Score == nil {
			continue
		}
		if s := r.Score(ctx); s > 0 {
			scored = append(scored, scoredRule{rule: r, score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	ranked := make([]Rule, len(scored))
	for i, s := range scored {
		ranked[i] = s.rule
	}
	return ranked
}

type stepList struct {
	items []string
	seen  map[string]bool
}

func (l *stepList) len() int   { return len(l.items) }
func (l *stepList) full() bool { return len(l.items) >= MaxSteps }

func (l *stepList) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" || l.full() {
		return
	}
	key := strings.ToLower(s)
	if l.seen[key] {
		return
	}
	l.seen[key] = true
	l.items = append(l.items, s)
}
