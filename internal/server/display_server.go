package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/dn51/speedtracker/internal/display"
)

// Command is a message from a display client: the speed-limit picker result
// or the permission-request affordance.
type Command struct {
	Type  string `json:"type"`
	Value int    `json:"value,omitempty"`
}

// Command types accepted from display clients.
const (
	CommandSetLimit          = "set_limit"
	CommandRequestPermission = "request_permission"
)

// DisplayServer broadcasts presenter frames to connected display clients over
// WebSocket and forwards client commands to the dispatcher.
type DisplayServer struct {
	addr      string
	logger    zerolog.Logger
	upgrader  websocket.Upgrader
	clients   cmap.ConcurrentMap[string, *wsClient]
	onCommand func(Command)

	mu        sync.Mutex
	lastFrame []byte

	httpServer *http.Server
	wg         sync.WaitGroup
	running    bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// NewDisplayServer creates a new DisplayServer listening on addr.
func NewDisplayServer(addr string, logger zerolog.Logger) *DisplayServer {
	return &DisplayServer{
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: cmap.New[*wsClient](),
	}
}

// SetCommandHandler registers the dispatcher callback for client commands.
// Must be called before Start.
func (s *DisplayServer) SetCommandHandler(handler func(Command)) {
	s.onCommand = handler
}

// Start begins serving the WebSocket endpoint.
func (s *DisplayServer) Start() error {
	if s.running {
		s.logger.Warn().Msg("DisplayServer is already running")
		return errors.New("display server is already running")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Display server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("addr", s.addr).Msg("DisplayServer started")
	return nil
}

// Stop closes all client connections and shuts the server down.
func (s *DisplayServer) Stop() error {
	if !s.running {
		s.logger.Warn().Msg("DisplayServer is not running")
		return errors.New("display server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	for item := range s.clients.IterBuffered() {
		item.Val.conn.Close()
		s.clients.Remove(item.Key)
	}

	s.wg.Wait()
	s.running = false
	s.logger.Info().Msg("DisplayServer stopped")
	return err
}

// Broadcast renders a frame to every connected client. Clients that cannot
// keep up have the frame dropped rather than blocking the dispatcher.
func (s *DisplayServer) Broadcast(frame display.Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to serialize display frame")
		return
	}

	s.mu.Lock()
	s.lastFrame = payload
	s.mu.Unlock()

	for item := range s.clients.IterBuffered() {
		select {
		case item.Val.send <- payload:
		default:
			s.logger.Debug().Str("client", item.Key).Msg("Dropping frame for slow display client")
		}
	}
}

func (s *DisplayServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	id := uuid.New().String()
	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 8),
		done: make(chan struct{}),
	}
	s.clients.Set(id, client)
	s.logger.Info().Str("client", id).Msg("Display client connected")

	// New clients get the current frame immediately.
	s.mu.Lock()
	if s.lastFrame != nil {
		client.send <- s.lastFrame
	}
	s.mu.Unlock()

	go s.writePump(id, client)
	go s.readPump(id, client)
}

func (s *DisplayServer) writePump(id string, c *wsClient) {
	for {
		select {
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug().Err(err).Str("client", id).Msg("Write to display client failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *DisplayServer) readPump(id string, c *wsClient) {
	defer func() {
		s.clients.Remove(id)
		close(c.done)
		c.conn.Close()
		s.logger.Info().Str("client", id).Msg("Display client disconnected")
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.logger.Warn().Err(err).Str("client", id).Msg("Ignoring malformed display command")
			continue
		}

		if s.onCommand != nil {
			s.onCommand(cmd)
		}
	}
}
