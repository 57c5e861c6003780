package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadre-oss/storyline/internal/config"
	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/payload"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Frame types that carry the turn's final answer.
var finalTypes = map[string]bool{
	"final":          true,
	"final_answer":   true,
	"final_message":  true,
	"assistant_done": true,
}

// IsFinalFrame reports whether a decoded frame is the final answer of a turn:
// either one of the final frame types, or a non-agent frame carrying
// response metadata.
func IsFinalFrame(frame map[string]any) bool {
	if payload.IsRawEvent(frame) {
		return false
	}
	if t, _ := frame["type"].(string); finalTypes[t] {
		return true
	}
	_, ok := frame["response_metadata"].(map[string]any)
	return ok
}

// Options configures a feed client.
type Options struct {
	URL              string
	BufferSize       int
	HandshakeTimeout time.Duration
	Header           http.Header
	Bus              *event.Bus
	Metrics          *telemetry.Metrics
	Logger           *telemetry.Logger
}

// OptionsFromConfig reads the feed section of the configuration.
func OptionsFromConfig(cfg config.FeedConfig) (Options, error) {
	timeout, err := cfg.ParsedHandshakeTimeout()
	if err != nil {
		return Options{}, sterrors.Wrap(sterrors.CodeConfigInvalid, "invalid feed.handshake_timeout", err)
	}
	return Options{
		URL:              cfg.URL,
		BufferSize:       cfg.BufferSize,
		HandshakeTimeout: timeout,
	}, nil
}

// Turn is everything the feed saw for one turn.
type Turn struct {
	Frames []map[string]any // newest first
	Final  *timeline.FinalMessage
	Query  string
}

// Input converts the turn into timeline builder input.
func (t Turn) Input() timeline.Input {
	return timeline.Input{AgentEvents: t.Frames, FinalMessage: t.Final}
}

// Client is a connected feed.
type Client struct {
	opts   Options
	conn   *websocket.Conn
	buffer *Buffer
	frames int
	query  string
}

// Dial connects to the feed.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, sterrors.New(sterrors.CodeFeedError, "feed URL is empty").
			WithSuggestion("Pass --url or set feed.url in storyline.yaml")
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewMetrics()
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		return nil, sterrors.Wrap(sterrors.CodeFeedError, "failed to connect to "+opts.URL, err)
	}

	c := &Client{
		opts:   opts,
		conn:   conn,
		buffer: NewBuffer(opts.BufferSize),
	}
	opts.Logger.Info("Feed connected", "url", opts.URL)
	c.emit(event.FeedConnected, map[string]interface{}{"url": opts.URL})
	return c, nil
}

// Buffer returns the frames buffered for the turn in progress.
func (c *Client) Buffer() *Buffer {
	return c.buffer
}

// NextTurn reads frames until the final answer of a turn arrives. Agent
// frames are buffered; other frames and undecodable payloads are skipped.
// onFirst, when set, is called with the first frame of the turn. A clean
// close by the server returns io.EOF.
func (c *Client) NextTurn(ctx context.Context, onFirst func(frame map[string]any)) (Turn, error) {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer stop()

	started := false
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Turn{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Turn{}, io.EOF
			}
			return Turn{}, sterrors.Wrap(sterrors.CodeFeedError, "feed read failed", err)
		}

		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			c.opts.Logger.Debug("Skipping undecodable frame", "error", err)
			continue
		}

		final := IsFinalFrame(frame)
		if !final && !payload.IsRawEvent(frame) {
			continue
		}
		if !started {
			started = true
			c.query, _ = frame["query"].(string)
			if onFirst != nil {
				onFirst(frame)
			}
		}

		if !final {
			c.buffer.Push(frame)
			c.frames++
			c.opts.Metrics.IncFeedFrames()
			continue
		}

		msg, err := timeline.ParseFinalMessage(data)
		if err != nil {
			msg = nil
		}
		turn := Turn{Frames: c.buffer.Snapshot(), Final: msg, Query: c.query}
		c.buffer.Reset()
		c.emit(event.FeedFinal, map[string]interface{}{"frames": len(turn.Frames)})
		return turn, nil
	}
}

// Close closes the connection, telling the server first.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.emit(event.FeedClosed, map[string]interface{}{"frames": c.frames})
	return err
}

func (c *Client) emit(t event.EventType, data map[string]interface{}) {
	if err := c.opts.Bus.Emit(event.NewEvent(t, data)); err != nil {
		c.opts.Logger.Warn("Feed hook failed", "event", string(t), "error", err)
	}
}
