package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	sterrors "github.com/cadre-oss/storyline/internal/errors"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// --- Helpers ---

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps a storyline error code onto an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := sterrors.AsCode(err)
	switch code {
	case sterrors.CodeInputInvalid, sterrors.CodeConfigInvalid:
		status = http.StatusBadRequest
	case sterrors.CodeTurnNotFound, sterrors.CodeSessionNotFound:
		status = http.StatusNotFound
	}
	body := map[string]string{"error": err.Error()}
	if code != "" {
		body["code"] = code
	}
	if s := sterrors.Suggestion(err); s != "" {
		body["suggestion"] = s
	}
	jsonResponse(w, status, body)
}

// sessionView is the JSON shape of a live session.
type sessionView struct {
	SessionID string         `json:"session_id"`
	TurnID    string         `json:"turn_id,omitempty"`
	Phase     playback.Phase `json:"phase"`
	State     playback.State `json:"state"`
}

func viewOf(p *playback.Player) sessionView {
	st := p.Snapshot()
	return sessionView{
		SessionID: p.SessionID(),
		TurnID:    p.TurnID(),
		Phase:     st.Phase(),
		State:     st,
	}
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  s.cfg.Version,
		"name":     s.cfg.Name,
		"sessions": len(s.sessions.IDs()),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.metrics.GetSummary())
}

// --- Timelines ---

func (s *Server) handleBuildTimeline(w http.ResponseWriter, r *http.Request) {
	var in timeline.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, s.selector.Build(in))
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	ids := s.sessions.IDs()
	views := make([]sessionView, 0, len(ids))
	for _, id := range ids {
		p, err := s.sessions.Get(id)
		if err != nil {
			continue // reaped meanwhile
		}
		views = append(views, viewOf(p))
	}
	jsonResponse(w, http.StatusOK, views)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, viewOf(p))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Remove(id) {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("session not found: %s", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Query) == "" {
		jsonError(w, http.StatusBadRequest, "query is required")
		return
	}

	p := s.sessions.GetOrCreate(r.PathValue("id"))
	turnID, err := p.StartTurn(body.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	tc := telemetry.NewTurnContext(p.SessionID(), turnID).WithQuery(body.Query)
	s.logger.WithTurn(telemetry.ContextWithTurn(r.Context(), tc)).Debug("Turn requested", "remote", r.RemoteAddr)
	jsonResponse(w, http.StatusCreated, viewOf(p))
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	p, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var in timeline.Input
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := p.Deliver(in)
	if err != nil {
		writeError(w, err)
		return
	}
	tc := telemetry.NewTurnContext(p.SessionID(), p.TurnID())
	s.logger.WithTurn(telemetry.ContextWithTurn(r.Context(), tc)).Debug("Answer delivered",
		"agent_events", len(in.AgentEvents), "source", string(res.Source), "steps", len(res.Events))
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"session_id": p.SessionID(),
		"turn_id":    p.TurnID(),
		"source":     res.Source,
		"events":     res.Events,
	})
}

func (s *Server) handleSessionTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.archive.SessionTurns(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, turns)
}

// --- Archive ---

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	turns, err := s.archive.ListTurns(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, turns)
}

func (s *Server) handleGetTurn(w http.ResponseWriter, r *http.Request) {
	turn, err := s.archive.GetTurn(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, turn)
}

// --- SSE ---

func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, "")
}

func (s *Server) handleSSEEventsFiltered(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, r.PathValue("sessionID"))
}

func (s *Server) serveSSE(w http.ResponseWriter, r *http.Request, sessionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	client := s.broker.Subscribe(r.Context(), clientID, sessionID)

	data, _ := json.Marshal(map[string]string{"type": "connected", "client_id": clientID})
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	for ev := range client.Events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
