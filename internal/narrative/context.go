// Package narrative turns one agent's artifact into ordered, human-readable
// narrative steps using per-action-type scored rule tables.
package narrative

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cadre-oss/storyline/internal/payload"
)

// Corpus bounds. Artifacts are arbitrary upstream JSON.
const (
	maxCorpusDepth     = 3
	maxCorpusFragments = 60
	maxFragmentLen     = 240
)

// Artifact fields walked into the corpus, in this order.
var corpusFields = []string{
	"summary_message", "summary", "message", "description",
	"operation", "sql", "query", "metadata",
	"analysis", "alerts", "recommendations", "insights",
	"rows", "data", "result",
	"export_file", "export_path", "file_path", "filename",
}

var tablePattern = regexp.MustCompile(`(?i)\b(?:from|into|update|join)\s+([a-z0-9_.\[\]"]+)`)

// Context is the immutable view of one agent's output that rules score.
type Context struct {
	Agent      string
	ActionType string
	Artifact   map[string]any
	Plan       *payload.PlanStep

	corpus string
}

// NewContext builds a scoring context. artifact and plan may be nil.
func NewContext(agent, actionType string, artifact map[string]any, plan *payload.PlanStep) *Context {
	c := &Context{
		Agent:      agent,
		ActionType: actionType,
		Artifact:   artifact,
		Plan:       plan,
	}
	c.corpus = strings.Join(collectCorpus(artifact, plan), " \n ")
	return c
}

// Corpus returns the normalized search text.
func (c *Context) Corpus() string { return c.corpus }

// Mentions reports whether any keyword occurs in the corpus. Keywords are
// normalized the same way as the corpus.
func (c *Context) Mentions(keywords ...string) bool {
	return c.countMentions(keywords) > 0
}

func (c *Context) countMentions(keywords []string) int {
	n := 0
	for _, kw := range keywords {
		kw = NormalizeText(kw)
		if kw != "" && strings.Contains(c.corpus, kw) {
			n++
		}
	}
	return n
}

// Operation returns the explicit operation descriptor, if any.
func (c *Context) Operation() (map[string]any, bool) {
	return payload.Map(c.Artifact, "operation")
}

// OperationName is a readable label for the operation descriptor.
func (c *Context) OperationName() string {
	op, ok := c.Operation()
	if !ok {
		return ""
	}
	name, _ := payload.FirstText(op, "type", "name", "kind", "action")
	return strings.ReplaceAll(name, "_", " ")
}

// SQL returns the query text attached to the artifact.
func (c *Context) SQL() string {
	s, _ := payload.FirstText(c.Artifact, "operation.sql", "operation.query", "sql", "query")
	return s
}

// Table returns the primary table touched, from explicit fields or the SQL.
func (c *Context) Table() string {
	if t, ok := payload.FirstText(c.Artifact, "operation.table", "table", "metadata.table", "operation.metadata.table"); ok {
		return t
	}
	if m := tablePattern.FindStringSubmatch(c.SQL()); m != nil {
		return strings.Trim(m[1], `[]"`)
	}
	return ""
}

// RowCount returns the number of result rows reported by the artifact.
func (c *Context) RowCount() (int, bool) {
	for _, p := range [][]string{
		{"rowcount"}, {"row_count"}, {"rows_count"}, {"total_rows"}, {"count"},
		{"operation", "rowcount"}, {"operation", "row_count"}, {"metadata", "rowcount"},
	} {
		if n, ok := payload.Number(payload.Lookup(c.Artifact, p...)); ok && n >= 0 {
			return int(n), true
		}
	}
	if rows, ok := payload.Slice(c.Artifact, "rows"); ok {
		return len(rows), true
	}
	return 0, false
}

// ExportFile returns the base name of an exported file.
func (c *Context) ExportFile() string {
	p, ok := payload.FirstText(c.Artifact,
		"export_file", "export_path", "file_path", "filename", "output_file",
		"export.path", "export.filename", "operation.export_file")
	if !ok {
		return ""
	}
	return path.Base(strings.ReplaceAll(p, `\`, "/"))
}

// Summary returns the artifact's own summary message.
func (c *Context) Summary() string {
	s, _ := payload.FirstText(c.Artifact, "summary_message", "summary", "message")
	return s
}

// ListLen returns the length of an array field and whether it was present.
func (c *Context) ListLen(field string) (int, bool) {
	items, ok := payload.Slice(c.Artifact, field)
	return len(items), ok
}

// PlanTitle returns the plan step title, or its description.
func (c *Context) PlanTitle() string {
	if c.Plan == nil {
		return ""
	}
	if c.Plan.Title != "" {
		return c.Plan.Title
	}
	return c.Plan.Description
}

// NormalizeText lowercases s, strips diacritics and drops remaining
// non-ASCII characters.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return unicode.ToLower(r)
	}, out)
	return strings.TrimSpace(out)
}

// collectCorpus gathers up to maxCorpusFragments normalized strings from the
// artifact's known fields and the plan step.
func collectCorpus(artifact map[string]any, plan *payload.PlanStep) []string {
	c := &collector{}
	if plan != nil {
		c.add(plan.Title)
		c.add(plan.Description)
		c.add(plan.ExpectedOutput)
	}
	for _, field := range corpusFields {
		if v, ok := artifact[field]; ok {
			c.walk(v, 1)
		}
	}
	return c.fragments
}

type collector struct {
	fragments []string
}

func (c *collector) full() bool { return len(c.fragments) >= maxCorpusFragments }

func (c *collector) add(s string) {
	if c.full() {
		return
	}
	if len(s) > maxFragmentLen {
		s = s[:maxFragmentLen]
	}
	if s = NormalizeText(s); s != "" {
		c.fragments = append(c.fragments, s)
	}
}

func (c *collector) walk(v any, depth int) {
	if c.full() || depth > maxCorpusDepth {
		return
	}
	switch val := v.(type) {
	case string:
		c.add(val)
	case float64:
		c.add(strconv.FormatFloat(val, 'f', -1, 64))
	case []any:
		for _, item := range val {
			if c.full() {
				return
			}
			c.walk(item, depth+1)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if c.full() {
				return
			}
			c.walk(val[k], depth+1)
		}
	}
}
