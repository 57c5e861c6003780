// Package agents classifies backend agent identifiers.
package agents

import "strings"

// orchestration holds normalized names of control-plane pseudo-agents.
var orchestration = map[string]bool{
	"orchestrator": true,
	"router":       true,
	"intent":       true,
	"start":        true,
	"finalize":     true,
	"assemble":     true,
	"react":        true,
	"reasoning":    true,
	"supervisor":   true,
	"system":       true,
	"capi":         true,
	"finalizenode": true,
}

// NormalizeName lowercases an agent identifier and strips '-' and '_'.
func NormalizeName(agent string) string {
	var b strings.Builder
	b.Grow(len(agent))
	for _, r := range strings.ToLower(strings.TrimSpace(agent)) {
		if r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsOrchestration reports whether agent is a control-plane pseudo-agent that
// must never be narrated on its own.
func IsOrchestration(agent string) bool {
	n := NormalizeName(agent)
	if n == "" {
		return false
	}
	if orchestration[n] {
		return true
	}
	return strings.HasPrefix(n, "loop") || strings.HasSuffix(n, "controller")
}
