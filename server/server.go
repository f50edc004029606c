// Package server serves the generated cloud for previewing: the mesh as
// JSON, the OBJ text, a websocket that pushes regenerated meshes, and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cloudgenerator/cloud"
	"cloudgenerator/config"
	"cloudgenerator/core"
	"cloudgenerator/internal/metrics"
	"cloudgenerator/objfile"
)

// MeshData is sent to preview clients
type MeshData struct {
	Type     string        `json:"type"`
	Seed     uint64        `json:"seed"`
	Vertices []core.Vertex `json:"vertices"`
	Indices  []int         `json:"indices"`
	Stats    cloud.Stats   `json:"stats"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// clientMessage is read from the websocket. A seed asks for a rebuild.
type clientMessage struct {
	Seed *uint64 `json:"seed"`
}

type Server struct {
	settings  config.Settings
	generator *cloud.Generator
	logger    *zap.Logger
	metrics   *metrics.Collector
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	seed    uint64
	mesh    core.Mesh
	payload []byte

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex
}

// New builds the initial cloud from settings and returns a server ready
// to serve it. gatherer backs /metrics and may be nil.
func New(settings config.Settings, generator *cloud.Generator, logger *zap.Logger, collector *metrics.Collector, gatherer prometheus.Gatherer) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if generator == nil {
		generator = cloud.New(logger, collector)
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}

	s := &Server{
		settings:  settings,
		generator: generator,
		logger:    logger.With(zap.String("component", "server")),
		metrics:   collector,
		gatherer:  gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local preview tool
			},
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}

	if err := s.regenerate(settings.Cloud.Seed); err != nil {
		return nil, err
	}
	return s, nil
}

// regenerate builds the configured sphere list with seed and swaps it in.
func (s *Server) regenerate(seed uint64) error {
	spec := s.settings.CloudSpec()
	spec.Seed = seed

	mesh, err := s.generator.Build(spec)
	if err != nil {
		return err
	}

	data := MeshData{
		Type:     "mesh",
		Seed:     seed,
		Vertices: mesh.Vertices,
		Indices:  make([]int, 0, len(mesh.Faces)*3),
		Stats:    cloud.StatsOf(mesh, len(spec.Spheres)),
	}
	for _, f := range mesh.Faces {
		data.Indices = append(data.Indices, f[0], f[1], f[2])
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding mesh: %w", err)
	}

	s.mu.Lock()
	s.seed = seed
	s.mesh = mesh
	s.payload = payload
	s.mu.Unlock()
	return nil
}

func (s *Server) current() (uint64, core.Mesh, []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seed, s.mesh, s.payload
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mesh", s.serveMesh)
	mux.HandleFunc("/cloud.obj", s.serveOBJ)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) serveMesh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_, _, payload := s.current()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (s *Server) serveOBJ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	seed, mesh, _ := s.current()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Cloud-Seed", strconv.FormatUint(seed, 10))
	if err := objfile.Encode(w, mesh, s.settings.ObjOptions()); err != nil {
		s.logger.Warn("OBJ download failed", zap.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = connMutex
	s.clientsMu.Unlock()
	s.metrics.ConnectionOpened()
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		s.metrics.ConnectionClosed()
	}()

	// Send initial mesh data
	_, _, payload := s.current()
	if err := s.send(conn, connMutex, payload); err != nil {
		return
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if msg.Seed == nil {
			continue
		}

		s.logger.Info("regenerating cloud", zap.Uint64("seed", *msg.Seed))
		if err := s.regenerate(*msg.Seed); err != nil {
			reply, _ := json.Marshal(errorMessage{Type: "error", Error: err.Error()})
			if err := s.send(conn, connMutex, reply); err != nil {
				return
			}
			continue
		}
		s.broadcast()
	}
}

func (s *Server) send(conn *websocket.Conn, connMutex *sync.Mutex, payload []byte) error {
	connMutex.Lock()
	defer connMutex.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// broadcast pushes the current mesh to every connected client.
func (s *Server) broadcast() {
	_, _, payload := s.current()

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for conn, connMutex := range s.clients {
		_ = s.send(conn, connMutex, payload)
	}
}

// Run serves on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.settings.Server.Port))
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("preview server listening", zap.String("addr", listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		timeout := time.Duration(s.settings.Server.ShutdownTimeoutMs) * time.Millisecond
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.closeClients()
		s.logger.Info("preview server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// closeClients ends open websockets, which Shutdown does not track.
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for conn, connMutex := range s.clients {
		connMutex.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		connMutex.Unlock()
		_ = conn.Close()
	}
}
