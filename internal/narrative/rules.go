package narrative

import (
	"strconv"
	"strings"
)

// AnyAction targets every definition when used as RuleSpec.ActionType.
const AnyAction = "*"

// RuleSpec is a keyword rule declared in configuration.
//
// Steps may reference {agent}, {rows}, {file}, {table}, {operation} and
// {summary}. A step whose placeholders resolve to nothing is skipped.
type RuleSpec struct {
	ActionType string
	Name       string
	Keywords   []string
	Priority   int
	Steps      []string
}

func (s RuleSpec) compile() Rule {
	keywords := append([]string(nil), s.Keywords...)
	steps := make([]Step, 0, len(s.Steps))
	for _, tmpl := range s.Steps {
		steps = append(steps, templateStep(tmpl))
	}
	priority := s.Priority
	if priority <= 0 {
		priority = 10
	}
	return Rule{
		Name:  s.Name,
		Score: keywordScore(priority, keywords...),
		Steps: steps,
	}
}

var placeholders = []string{"{agent}", "{rows}", "{file}", "{table}", "{operation}", "{summary}"}

func templateStep(tmpl string) Step {
	return func(c *Context) string {
		values := map[string]string{
			"{agent}":     c.Agent,
			"{file}":      c.ExportFile(),
			"{table}":     c.Table(),
			"{operation}": c.OperationName(),
			"{summary}":   c.Summary(),
		}
		if n, ok := c.RowCount(); ok {
			values["{rows}"] = strconv.Itoa(n)
		}
		out := tmpl
		for _, ph := range placeholders {
			if !strings.Contains(out, ph) {
				continue
			}
			v := values[ph]
			if v == "" {
				return ""
			}
			out = strings.ReplaceAll(out, ph, v)
		}
		return out
	}
}

// keywordScore scores priority plus one per additional distinct keyword hit,
// or zero when none match.
func keywordScore(priority int, keywords ...string) func(*Context) int {
	return func(c *Context) int {
		hits := c.countMentions(keywords)
		if hits == 0 {
			return 0
		}
		return priority + hits - 1
	}
}

// when scores priority if the predicate holds.
func when(priority int, pred func(*Context) bool) func(*Context) int {
	return func(c *Context) int {
		if pred(c) {
			return priority
		}
		return 0
	}
}

func hasOperation(c *Context) bool {
	_, ok := c.Operation()
	return ok
}

func hasRows(c *Context) bool {
	_, ok := c.RowCount()
	return ok
}

func hasSQL(c *Context) bool     { return c.SQL() != "" }
func hasExport(c *Context) bool  { return c.ExportFile() != "" }
func hasSummary(c *Context) bool { return c.Summary() != "" }

func hasItems(field string) func(*Context) bool {
	return func(c *Context) bool {
		n, _ := c.ListLen(field)
		return n > 0
	}
}

// text is a step that always renders s.
func text(s string) Step {
	return func(*Context) string { return s }
}
