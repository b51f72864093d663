// Package server is the HTTP front-end: it accepts test-run requests,
// manages interactive chat sessions, and returns session reports.
package server

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/botceptor/botceptor/bot"
	"github.com/botceptor/botceptor/engine"
	"github.com/botceptor/botceptor/logger"
	"github.com/botceptor/botceptor/model"
	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
)

// Server routes front-end requests and keeps the process-wide registry of
// live interactive chat sessions, keyed by session id. Registry entries are
// created by /start-chat, looked up by /chat, and removed by /end-chat.
type Server struct {
	addr   string
	router *mux.Router

	mu   sync.RWMutex
	bots map[string]*bot.TestBot
}

func NewServer(addr string) *Server {
	s := &Server{
		addr: addr,
		bots: make(map[string]*bot.TestBot),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/run-test", s.handleRunTest).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/start-chat", s.handleStartChat).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/end-chat", s.handleEndChat).Methods(http.MethodPost, http.MethodOptions)

	s.router = r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe() error {
	logger.Logger.Info("Front-end listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

// ============================================================================
// REQUEST / RESPONSE SHAPES
// ============================================================================

type runTestResponse struct {
	Success bool                   `json:"success"`
	Data    []*model.SessionReport `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
}

type startChatRequest struct {
	BotName  string `json:"bot_name"`
	Hostname string `json:"hostname"`
}

type startChatResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Greeting  string `json:"greeting,omitempty"`
	Message   string `json:"message,omitempty"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type chatData struct {
	Response       string   `json:"response"`
	UsedObjectives []string `json:"used_objectives"`
	UsedToolCalls  []string `json:"used_tool_calls"`
}

type chatResponse struct {
	Success bool      `json:"success"`
	Data    *chatData `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Botceptor server is running!"})
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	var input model.TestInput
	if err := decodeBody(r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, runTestResponse{Success: false, Message: "Invalid request body."})
		return
	}
	if err := input.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, runTestResponse{Success: false, Message: err.Error()})
		return
	}

	input.Render(model.GetAllEnv())

	controller := engine.NewController(&input)
	if err := controller.InitializeBots(); err != nil {
		logger.Logger.Error("Failed to initialize test bots", "error", err)
		writeJSON(w, http.StatusBadGateway, runTestResponse{Success: false, Message: "Failed to connect to the bot service."})
		return
	}

	controller.RunBots()
	controller.Wait()

	writeJSON(w, http.StatusOK, runTestResponse{Success: true, Data: controller.Reports()})
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	var req startChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, startChatResponse{Success: false, Message: "Invalid request body."})
		return
	}
	if req.BotName == "" || req.Hostname == "" {
		writeJSON(w, http.StatusBadRequest, startChatResponse{Success: false, Message: "bot_name and hostname are required."})
		return
	}

	tb := bot.NewTestBot(0, req.Hostname, req.BotName, nil)
	greeting, err := tb.StartSession(nil)
	if err != nil {
		logger.Logger.Error("Failed to start chat session", "error", err)
		writeJSON(w, http.StatusBadGateway, startChatResponse{Success: false, Message: "Failed to start chat session."})
		return
	}

	s.mu.Lock()
	s.bots[tb.SessionID] = tb
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, startChatResponse{
		Success:   true,
		SessionID: tb.SessionID,
		Greeting:  greeting,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Success: false, Message: "Invalid request body."})
		return
	}

	s.mu.RLock()
	tb, ok := s.bots[req.SessionID]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusOK, chatResponse{Success: false, Message: "Session not found."})
		return
	}

	response, err := tb.Chat(req.Query)
	if err != nil || response == "" {
		logger.Logger.Warn("No response from bot", "session_id", req.SessionID, "error", err)
		writeJSON(w, http.StatusOK, chatResponse{Success: false, Message: "No response from bot."})
		return
	}

	data := &chatData{
		Response:       response,
		UsedObjectives: []string{},
		UsedToolCalls:  []string{},
	}
	metrics, err := tb.MetricsForLastRequest()
	if err != nil {
		logger.Logger.Warn("Failed to fetch metrics for last request",
			"session_id", req.SessionID,
			"error", err)
	} else {
		data.UsedObjectives = metrics.UsedObjectives
		data.UsedToolCalls = metrics.UsedToolCalls
	}

	writeJSON(w, http.StatusOK, chatResponse{Success: true, Data: data})
}

func (s *Server) handleEndChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Success: false, Message: "Invalid request body."})
		return
	}

	s.mu.Lock()
	tb, ok := s.bots[req.SessionID]
	if ok {
		delete(s.bots, req.SessionID)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, chatResponse{Success: false, Message: "Session not found."})
		return
	}

	tb.Close()
	logger.Logger.Info("Chat session ended", "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, chatResponse{Success: true})
}

// SessionCount returns the number of live interactive sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bots)
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		logger.Logger.Error("Failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Logger.Warn("Failed to write response", "error", err)
	}
}

// corsMiddleware mirrors the permissive policy the browser front-end relies
// on.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
