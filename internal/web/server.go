// Package web is the sidecar HTTP/WebSocket boundary: the UI reads and
// answers pending confirmations here, and the settings surface reads and
// writes per-user sandbox configuration.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/pipali/pipali/internal/audit"
	"github.com/pipali/pipali/internal/config"
	"github.com/pipali/pipali/internal/confirm"
	"github.com/pipali/pipali/internal/consts"
	"github.com/pipali/pipali/internal/logger"
	"github.com/pipali/pipali/internal/sandbox"
	"github.com/pipali/pipali/internal/shell"
)

// Server hosts the tool invocation, confirmation delivery and settings
// boundaries.
type Server struct {
	addr        string
	httpServer  *http.Server
	store       *config.Store
	adapter     *sandbox.Adapter
	gateway     *confirm.Gateway
	engine      *shell.Engine
	trail       *audit.Trail
	hub         *Hub
	unsubscribe func()
}

// NewServer wires the boundary. trail may be nil when auditing is
// disabled.
func NewServer(store *config.Store, adapter *sandbox.Adapter, gateway *confirm.Gateway, engine *shell.Engine, trail *audit.Trail) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", consts.DefaultHost, consts.DefaultPort),
		store:   store,
		adapter: adapter,
		gateway: gateway,
		engine:  engine,
		trail:   trail,
		hub:     NewHub(),
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()
	router.GET("/api/health", s.handleHealth)
	router.GET("/api/confirmations/:context", s.handleListPending)
	router.POST("/api/confirmations/:id/respond", s.handleRespond)
	router.POST("/api/confirmations/:id/dismiss", s.handleDismiss)
	router.GET("/api/users/:user/sandbox", s.handleGetSandbox)
	router.PUT("/api/users/:user/sandbox", s.handlePutSandbox)
	router.POST("/api/contexts/:context/execute", s.handleExecute)
	router.POST("/api/contexts/:context/stop", s.handleStop)
	router.GET("/api/audit/executions", s.handleRecentExecutions)
	router.GET("/ws", s.handleWebSocket)
	return router
}

// Start begins serving. Non-blocking; errors from the listener are logged.
func (s *Server) Start() error {
	router := s.routes()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go s.hub.Run()

	// Forward newly-registered confirmations to connected UIs.
	pushes, cancel := s.gateway.Subscribe()
	s.unsubscribe = cancel
	go func() {
		for req := range pushes {
			req := req
			s.hub.Broadcast(&WebMessage{
				Type:       MessageTypeConfirmation,
				RequestID:  req.ID,
				ContextKey: req.ContextKey,
				Request:    &req,
			})
		}
	}()

	go func() {
		logger.Info("web: listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("web: server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	logger.Info("web: stopping server")
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("web: failed to encode response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"sandbox_active": s.adapter.Active(),
		"clients":        s.hub.ClientCount(),
	})
}

func (s *Server) handleListPending(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	pending := s.gateway.ListPending(ps.ByName("context"))
	writeJSON(w, http.StatusOK, pending)
}

type respondBody struct {
	OptionID string `json:"option_id"`
	Guidance string `json:"guidance,omitempty"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}
	if body.OptionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "option_id is required"})
		return
	}

	if !s.gateway.Respond(ps.ByName("id"), body.OptionID, body.Guidance) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found or already resolved"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (s *Server) handleDismiss(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if !s.gateway.Dismiss(ps.ByName("id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "request not found or already resolved"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (s *Server) handleGetSandbox(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	cfg, err := s.store.Load(ps.ByName("user"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handlePutSandbox persists the update and reloads the enforcement rules
// before replying, so callers can rely on immediate effect.
func (s *Server) handlePutSandbox(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update config.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}

	cfg, err := s.store.Save(ps.ByName("user"), update)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.adapter.Reload(cfg)

	writeJSON(w, http.StatusOK, cfg)
}

// handleExecute is the tool invocation boundary. The call blocks for the
// lifetime of the command, including any confirmation wait; disconnecting
// cancels the wait and denies the confirmation.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req shell.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body: " + err.Error()})
		return
	}

	result := s.engine.Execute(r.Context(), ps.ByName("context"), req)
	writeJSON(w, http.StatusOK, result.Tool(req.Command))
}

// handleStop drains every pending confirmation of a context, denying each
// as interrupted.
func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	drained := s.gateway.StopContext(ps.ByName("context"))
	writeJSON(w, http.StatusOK, map[string]int{"drained": drained})
}

// handleRecentExecutions returns the newest execution records, most
// recent first. ?limit= caps the count.
func (s *Server) handleRecentExecutions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.trail == nil {
		writeJSON(w, http.StatusOK, []audit.ExecutionRow{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.trail.RecentExecutions(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Loopback-only listener; the embedding shell is the only peer.
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("web: failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.gateway)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
