package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cadre-oss/storyline/internal/archive"
)

// completionTurnLimit bounds how many archived turns are offered as
// completions.
const completionTurnLimit = 50

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a completion script for storyline.

Besides commands and flags, the scripts complete turn IDs for
"storyline history show" and session IDs for "storyline history --session"
from the configured archive.

Examples:
  source <(storyline completion bash)
  storyline completion zsh > "${fpath[1]}/_storyline"
  storyline completion fish > ~/.config/fish/completions/storyline.fish
  storyline completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func completeTurnIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return withArchive(func(mgr *archive.Manager) ([]string, error) {
		return turnCompletions(mgr, toComplete)
	})
}

func completeSessionIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return withArchive(func(mgr *archive.Manager) ([]string, error) {
		return sessionCompletions(mgr, toComplete)
	})
}

// withArchive opens the configured archive for one completion request.
// Completion must stay quiet, so any failure yields no suggestions.
func withArchive(fn func(*archive.Manager) ([]string, error)) ([]string, cobra.ShellCompDirective) {
	a, err := newApp()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer a.Close()

	mgr, err := a.openArchive()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out, err := fn(mgr)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// turnCompletions lists recent turn IDs starting with prefix, each described
// by its status and query.
func turnCompletions(mgr *archive.Manager, prefix string) ([]string, error) {
	turns, err := mgr.ListTurns(completionTurnLimit)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range turns {
		if strings.HasPrefix(t.ID, prefix) {
			out = append(out, fmt.Sprintf("%s\t%s %q", t.ID, t.Status, t.Query))
		}
	}
	return out, nil
}

// sessionCompletions lists the distinct sessions of recent turns, newest
// first.
func sessionCompletions(mgr *archive.Manager, prefix string) ([]string, error) {
	turns, err := mgr.ListTurns(completionTurnLimit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range turns {
		if t.SessionID == "" || seen[t.SessionID] || !strings.HasPrefix(t.SessionID, prefix) {
			continue
		}
		seen[t.SessionID] = true
		out = append(out, t.SessionID)
	}
	return out, nil
}
