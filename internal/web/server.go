// Package web serves the HTTP and WebSocket control surface.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/xyscope/internal/config"
	"github.com/guidoenr/xyscope/internal/params"
	"github.com/guidoenr/xyscope/internal/render"
)

const (
	defaultStatusInterval = 250 * time.Millisecond
	maxStateBytes         = 64 << 10
	maxBodyBytes          = 64 << 10

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Backend is what the control surface needs from the running scope.
type Backend interface {
	Params() *params.Registry
	Snapshot() *image.RGBA
	Status() render.Status
	// Reset restores default parameters and clears the trace.
	Reset()
}

// Config controls the server.
type Config struct {
	Addr string
	// SettingsPath is written by POST /api/save.
	SettingsPath string
	// Settings supplies the runtime options stored next to the parameters.
	Settings       func() config.Settings
	StatusInterval time.Duration
	Logger         *slog.Logger
}

// Server exposes parameters, state, snapshots and a status stream.
type Server struct {
	backend  Backend
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// ParamView is one entry of GET /api/params.
type ParamView struct {
	params.Spec
	Value      float64 `json:"value"`
	Normalized float64 `json:"normalized"`
}

// New builds a server around backend.
func New(backend Backend, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaultStatusInterval
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Defaults
	}
	s := &Server{
		backend: backend,
		cfg:     cfg,
		log:     cfg.Logger.With("component", "web"),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/params", s.handleGetParams)
	s.mux.HandleFunc("POST /api/params", s.handlePostParams)
	s.mux.HandleFunc("GET /api/state", s.handleGetState)
	s.mux.HandleFunc("PUT /api/state", s.handlePutState)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/snapshot.png", s.handleSnapshot)
	s.mux.HandleFunc("POST /api/save", s.handleSave)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler { return s.mux }

// Run listens on cfg.Addr and serves until ctx is cancelled, then shuts
// down the listener and every WebSocket client.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Broadcast(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("control surface listening", "addr", ln.Addr().String())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("shutdown", "error", err)
	}
	<-done
	if serveErr == nil {
		serveErr = <-errCh
	}
	if errors.Is(serveErr, http.ErrServerClosed) {
		serveErr = nil
	}
	return serveErr
}

// Broadcast pushes the status to every WebSocket client each interval
// until ctx ends. On return all clients are closed and their goroutines
// have exited.
func (s *Server) Broadcast(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()
	defer s.closeClients()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data, err := json.Marshal(s.backend.Status())
			if err != nil {
				s.log.Warn("encode status", "error", err)
				continue
			}
			s.publish(data)
		}
	}
}

func (s *Server) publish(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// drop the frame for slow readers
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		close(c.send)
		delete(s.clients, c)
	}
	s.mu.Unlock()
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.paramViews())
}

func (s *Server) paramViews() []ParamView {
	reg := s.backend.Params()
	specs := params.Specs()
	out := make([]ParamView, len(specs))
	for i, spec := range specs {
		out[i] = ParamView{
			Spec:       spec,
			Value:      reg.Get(spec.ID),
			Normalized: reg.Normalized(spec.ID),
		}
	}
	return out
}

// handlePostParams applies a partial update such as
// {"zoom": 2, "monoShape": "star", "particleMode": true}. Either every
// field applies or none does. With ?scale=normalized numbers are read on
// the [0,1] scale reported by GET /api/params.
func (s *Server) handlePostParams(w http.ResponseWriter, r *http.Request) {
	var normalized bool
	switch scale := r.URL.Query().Get("scale"); scale {
	case "", "plain":
	case "normalized":
		normalized = true
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown scale %q", scale))
		return
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode params: %w", err))
		return
	}

	type update struct {
		id    params.ID
		value float64
	}
	updates := make([]update, 0, len(body))
	for key, raw := range body {
		id, ok := params.Lookup(key)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", params.ErrUnknownParameter, key))
			return
		}
		v, err := decodeValue(id, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", key, err))
			return
		}
		updates = append(updates, update{id: id, value: v})
	}

	reg := s.backend.Params()
	for _, u := range updates {
		if normalized {
			reg.SetNormalized(u.id, u.value)
		} else {
			reg.Set(u.id, u.value)
		}
	}
	s.log.Debug("params updated", "count", len(updates))
	writeJSON(w, http.StatusOK, s.paramViews())
}

// decodeValue accepts a number for any parameter, a bool for toggles and
// a choice name for choice parameters.
func decodeValue(id params.ID, raw json.RawMessage) (float64, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return 0, errors.New("value must not be null")
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, nil
	}
	spec, _ := params.SpecOf(id)
	switch spec.Kind {
	case params.KindToggle:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			if b {
				return 1, nil
			}
			return 0, nil
		}
	case params.KindChoice:
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			for i, c := range spec.Choices {
				if c == name {
					return float64(i), nil
				}
			}
			return 0, fmt.Errorf("unknown choice %q", name)
		}
	}
	return 0, fmt.Errorf("invalid value %s", string(raw))
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="xyscope.state"`)
	blob := s.backend.Params().MarshalState()
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	if _, err := w.Write(blob); err != nil {
		s.log.Warn("write state", "error", err)
	}
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	err := s.backend.Params().LoadState(io.LimitReader(r.Body, maxStateBytes))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, params.ErrInvalidState) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	s.log.Info("parameter state restored")
	writeJSON(w, http.StatusOK, s.paramViews())
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.backend.Reset()
	s.log.Info("parameters reset to defaults")
	writeJSON(w, http.StatusOK, s.paramViews())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	img := s.backend.Snapshot()
	if img == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no frame rendered yet"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.EncodePNG(w, img); err != nil {
		s.log.Warn("encode snapshot", "error", err)
	}
}

func (s *Server) handleSave(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.SettingsPath == "" {
		writeError(w, http.StatusConflict, errors.New("no settings path configured"))
		return
	}
	settings := s.cfg.Settings()
	settings.Params = s.backend.Params().Snapshot()
	if err := config.Save(s.cfg.SettingsPath, settings); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to save config: %w", err))
		return
	}
	s.log.Info("settings saved", "path", s.cfg.SettingsPath)
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": s.cfg.SettingsPath})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 8)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

// readPump discards client messages and tracks liveness through pongs.
func (s *Server) readPump(c *client) {
	defer func() {
		s.removeClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
