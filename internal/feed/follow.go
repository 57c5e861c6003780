package feed

import (
	"context"
	"errors"
	"io"

	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/telemetry"
)

// LiveQuery labels turns whose first frame names no query.
const LiveQuery = "(live)"

// Follow plays every turn read from the feed on p until the server closes
// the feed or ctx is cancelled, and returns how many turns were delivered.
// A turn starts on its first frame and its timeline is delivered when the
// final answer arrives.
func Follow(ctx context.Context, c *Client, p *playback.Player) (int, error) {
	delivered := 0
	for {
		var (
			startErr error
			agent    string
		)
		turn, err := c.NextTurn(ctx, func(frame map[string]any) {
			agent, _ = frame["agent"].(string)
			query, _ := frame["query"].(string)
			if query == "" {
				query = LiveQuery
			}
			_, startErr = p.StartTurn(query)
		})
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, err
		}
		if startErr != nil {
			return delivered, startErr
		}

		res, err := p.Deliver(turn.Input())
		if err != nil {
			return delivered, err
		}
		delivered++

		tc := telemetry.NewTurnContext(p.SessionID(), p.TurnID()).WithQuery(turn.Query).WithAgent(agent)
		c.opts.Logger.WithTurn(telemetry.ContextWithTurn(ctx, tc)).Info("Feed turn delivered",
			"frames", len(turn.Frames), "source", string(res.Source), "steps", len(res.Events))
	}
}
