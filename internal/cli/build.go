package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/timeline"
)

var buildJSON bool

var buildCmd = &cobra.Command{
	Use:   "build [input.json]",
	Short: "Build a timeline from recorded agent activity",
	Long: `Build the narrated timeline for one turn and print it.

The input is a JSON object with any of:
  agentEvents   live agent frames, newest first
  planSteps     the reasoning plan
  finalMessage  the final answer, in any envelope shape

Examples:
  storyline build turn.json
  cat turn.json | storyline build --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildJSON, "json", false, "print the timeline as JSON")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	sel, err := a.selector()
	if err != nil {
		return err
	}
	res := sel.Build(in)

	out := cmd.OutOrStdout()
	if buildJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintln(out, a.renderer().Result(res))
	return nil
}

// readInput decodes a turn input from the named file, or stdin when no file
// or "-" is given.
func readInput(args []string, stdin io.Reader) (timeline.Input, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return timeline.Input{}, sterrors.Wrap(sterrors.CodeInputInvalid, "failed to read input", err)
	}

	var in timeline.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return timeline.Input{}, sterrors.Wrap(sterrors.CodeInputInvalid, "input is not valid JSON", err).
			WithSuggestion("Pass an object with agentEvents, planSteps or finalMessage")
	}
	return in, nil
}
