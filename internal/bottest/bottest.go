// Package bottest runs an in-process fake of the bot platform for tests: the
// per-session websocket endpoint plus the session-logs endpoint, with
// scripted replies and log records.
package bottest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// DummyWriter discards log output in tests.
type DummyWriter struct{}

func NewDummyWriter() *DummyWriter {
	return &DummyWriter{}
}

func (d *DummyWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// Turn scripts the platform's behavior for one generate request.
type Turn struct {
	// Reply is the answer text sent back on the channel.
	Reply string
	// Event overrides the reply event, "message" when empty.
	Event string
	// LogRecord is appended to the session's log history after replying.
	// Empty means the platform logged nothing for this turn.
	LogRecord string
	// Drop closes the connection instead of replying.
	Drop bool
}

// Service is the fake platform. One instance serves any number of sessions;
// every session gets the same scripted turns.
type Service struct {
	Greeting  string
	Turns     []Turn
	LogStatus int // non-zero forces this status on /session-logs

	mu   sync.Mutex
	logs map[string][]string

	srv      *httptest.Server
	upgrader websocket.Upgrader
}

func NewService(greeting string, turns []Turn) *Service {
	s := &Service{
		Greeting: greeting,
		Turns:    turns,
		logs:     make(map[string][]string),
	}

	r := mux.NewRouter()
	r.HandleFunc("/bots/{bot_name}/sessions/{session_id}", s.handleSession)
	r.HandleFunc("/session-logs/{session_id}", s.handleSessionLogs).Methods(http.MethodGet)

	s.srv = httptest.NewServer(r)
	return s
}

// Host returns the host:port the fake listens on, the form the harness takes
// as a hostname.
func (s *Service) Host() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

func (s *Service) Close() {
	s.srv.Close()
}

// SetRecords replaces the stored log history for a session.
func (s *Service) SetRecords(sessionID string, records []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[sessionID] = records
}

// Records returns a copy of the stored log history for a session.
func (s *Service) Records(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs[sessionID]))
	copy(out, s.logs[sessionID])
	return out
}

func (s *Service) appendRecord(sessionID, record string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[sessionID] = append(s.logs[sessionID], record)
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	turn := 0
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		event, _ := msg["event"].(string)
		if event == "start" {
			reply := replyMessage("message", s.Greeting)
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
			continue
		}

		scripted := Turn{Reply: "ok"}
		if turn < len(s.Turns) {
			scripted = s.Turns[turn]
		}
		turn++

		if scripted.Drop {
			return
		}

		if scripted.LogRecord != "" {
			s.appendRecord(sessionID, scripted.LogRecord)
		}

		event = scripted.Event
		if event == "" {
			event = "message"
		}
		if err := conn.WriteJSON(replyMessage(event, scripted.Reply)); err != nil {
			return
		}
	}
}

func (s *Service) handleSessionLogs(w http.ResponseWriter, r *http.Request) {
	if s.LogStatus != 0 && s.LogStatus != http.StatusOK {
		w.WriteHeader(s.LogStatus)
		return
	}

	sessionID := mux.Vars(r)["session_id"]
	s.mu.Lock()
	records := s.logs[sessionID]
	s.mu.Unlock()
	if records == nil {
		records = []string{}
	}

	data, err := sonic.Marshal(records)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func replyMessage(event, text string) map[string]any {
	return map[string]any{
		"event": event,
		"payload": map[string]any{
			"text": text,
		},
	}
}

// Record renders a log record the way the platform's logger does: a text blob
// with Python-style single-quoted dicts. Tool calls are cumulative across the
// session, so callers pass the full list observed so far.
func Record(dialogStates []string, toolCalls []string) string {
	var b strings.Builder
	b.WriteString("INFO processing turn {'dialog_state': [")
	for i, state := range dialogStates {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s'", state)
	}
	b.WriteString("]}")

	for _, call := range toolCalls {
		fmt.Fprintf(&b, " tool_call={'name': '%s', 'args': {}}", call)
	}
	return b.String()
}
