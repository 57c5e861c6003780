package agents

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Narrative action types understood by the rule catalog.
const (
	ActionDatabaseQuery       = "database_query"
	ActionBranchOperations    = "branch_operations"
	ActionDesktopOperation    = "desktop_operation"
	ActionNewsAnalysis        = "news_analysis"
	ActionConversationSummary = "conversation_summary"
	ActionBranchAnalysis      = "branch_analysis"
	ActionAnomalyDetection    = "anomaly_detection"
	ActionConversation        = "conversation"
)

type profile struct {
	friendly string
	action   string
}

// Keyed by normalized name.
var defaultProfiles = map[string]profile{
	"capidatab":          {"Database Agent", ActionDatabaseQuery},
	"capielcajas":        {"Branch Operations Agent", ActionBranchOperations},
	"capidesktop":        {"Desktop Agent", ActionDesktopOperation},
	"capinoticias":       {"News Agent", ActionNewsAnalysis},
	"capisummary":        {"Summary Agent", ActionConversationSummary},
	"summary":            {"Summary Agent", ActionConversationSummary},
	"capibranchanalysis": {"Branch Analysis Agent", ActionBranchAnalysis},
	"branchanalysis":     {"Branch Analysis Agent", ActionBranchAnalysis},
	"capianomaly":        {"Anomaly Detection Agent", ActionAnomalyDetection},
	"anomalydetector":    {"Anomaly Detection Agent", ActionAnomalyDetection},
	"capiconversation":   {"Conversation Agent", ActionConversation},
	"assistant":          {"Assistant", ActionConversation},
}

// Substring hints used when an agent has no registered profile. Order matters.
var actionHints = []struct {
	fragment string
	action   string
}{
	{"datab", ActionDatabaseQuery},
	{"sql", ActionDatabaseQuery},
	{"cajas", ActionBranchOperations},
	{"desktop", ActionDesktopOperation},
	{"noticia", ActionNewsAnalysis},
	{"news", ActionNewsAnalysis},
	{"summar", ActionConversationSummary},
	{"resumen", ActionConversationSummary},
	{"anomal", ActionAnomalyDetection},
	{"alert", ActionAnomalyDetection},
	{"branch", ActionBranchAnalysis},
	{"sucursal", ActionBranchAnalysis},
}

// Registry resolves display names and narrative action types for agents.
// Each selector owns its own Registry; there is no process-wide instance.
type Registry struct {
	friendly map[string]string
	actions  map[string]string
}

// NewRegistry builds a registry from the built-in profiles plus overrides.
// Override keys may use any spelling; they are normalized.
func NewRegistry(friendlyNames, actionTypes map[string]string) *Registry {
	r := &Registry{
		friendly: make(map[string]string, len(defaultProfiles)+len(friendlyNames)),
		actions:  make(map[string]string, len(defaultProfiles)+len(actionTypes)),
	}
	for k, p := range defaultProfiles {
		r.friendly[k] = p.friendly
		r.actions[k] = p.action
	}
	for k, v := range friendlyNames {
		if v = strings.TrimSpace(v); v != "" {
			r.friendly[NormalizeName(k)] = v
		}
	}
	for k, v := range actionTypes {
		if v = strings.TrimSpace(v); v != "" {
			r.actions[NormalizeName(k)] = v
		}
	}
	return r
}

// DefaultRegistry returns a registry with only the built-in profiles.
func DefaultRegistry() *Registry {
	return NewRegistry(nil, nil)
}

// FriendlyName returns a human-readable label such as "Database Agent".
func (r *Registry) FriendlyName(agent string) string {
	if r != nil {
		if name, ok := r.friendly[NormalizeName(agent)]; ok {
			return name
		}
	}
	return humanizeAgent(agent)
}

// ActionType returns the narrative action type for agent.
func (r *Registry) ActionType(agent string) string {
	n := NormalizeName(agent)
	if r != nil {
		if a, ok := r.actions[n]; ok {
			return a
		}
	}
	for _, h := range actionHints {
		if strings.Contains(n, h.fragment) {
			return h.action
		}
	}
	return ActionConversation
}

// humanizeAgent turns "capi_risk-score" into "Risk Score Agent".
func humanizeAgent(agent string) string {
	parts := strings.FieldsFunc(strings.ToLower(agent), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	if len(parts) > 1 && parts[0] == "capi" {
		parts = parts[1:]
	}
	if len(parts) == 0 {
		return "Agent"
	}
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	if parts[len(parts)-1] != "Agent" {
		parts = append(parts, "Agent")
	}
	return strings.Join(parts, " ")
}
