// Package wsserver exposes the agent over a websocket: it broadcasts the
// ordered event stream to connected presentation clients and accepts
// chat and control commands from them. The agent runs fine with zero
// clients connected.
package wsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	luna "github.com/lunasparkai/luna"
)

const (
	defaultMaxChatLength = 500
	defaultChatBacklog   = 100

	// sendBuffer is the per-client outbound queue. A client that falls
	// this far behind is disconnected rather than allowed to stall the
	// broadcast.
	sendBuffer = 64
)

// Command is an inbound client message.
type Command struct {
	Type    string   `json:"type"`
	UserID  string   `json:"user_id,omitempty"`
	Text    string   `json:"text,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
	Words   []string `json:"words,omitempty"`
}

// Command types accepted from clients.
const (
	CmdChat          = "chat"
	CmdCancelNext    = "cancel_next"
	CmdSetGeneration = "set_generation"
	CmdGetBlacklist  = "get_blacklist"
	CmdSetBlacklist  = "set_blacklist"
)

// Server bridges the core state to websocket clients.
type Server struct {
	state  *luna.State
	filter *luna.Blacklist
	logger *slog.Logger

	maxChatLength int
	chatBacklog   int

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	recent  []luna.ChatMessageIn
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxChatLength caps accepted chat message length in runes.
func WithMaxChatLength(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxChatLength = n
		}
	}
}

// WithChatBacklog sets how many recent chat messages are replayed to a
// newly connected client.
func WithChatBacklog(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.chatBacklog = n
		}
	}
}

// New creates a Server over the given state and content filter.
func New(state *luna.State, filter *luna.Blacklist, opts ...Option) *Server {
	s := &Server{
		state:         state,
		filter:        filter,
		logger:        slog.New(slog.DiscardHandler),
		maxChatLength: defaultMaxChatLength,
		chatBacklog:   defaultChatBacklog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the websocket upgrade handler. Mount it wherever the
// presentation layer expects to connect.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// Run pumps core events to all connected clients until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	for {
		ev, err := s.state.Events().Next(ctx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Warn("event marshal failed", "event", ev.Name, "error", err)
			continue
		}
		s.broadcast(data)
	}
}

func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client too slow; drop it.
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	replay := make([]luna.ChatMessageIn, len(s.recent))
	copy(replay, s.recent)
	s.mu.Unlock()

	s.sendEvent(c, luna.Event{Name: luna.EventRecentChat, Payload: replay})

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) writePump(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	c.conn.Close()
}

func (s *Server) readPump(c *client) {
	defer s.removeClient(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Warn("bad command payload", "error", err)
			continue
		}
		s.handleCommand(c, cmd)
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.mu.Unlock()
	c.conn.Close()
}

func (s *Server) handleCommand(c *client, cmd Command) {
	switch cmd.Type {
	case CmdChat:
		s.handleChat(cmd)
	case CmdCancelNext:
		s.state.CancelNext()
	case CmdSetGeneration:
		if cmd.Enabled != nil {
			s.state.SetGenerationEnabled(*cmd.Enabled)
		}
	case CmdGetBlacklist:
		s.sendEvent(c, luna.Event{Name: luna.EventBlacklist, Payload: s.filter.Words()})
	case CmdSetBlacklist:
		if err := s.filter.Replace(cmd.Words); err != nil {
			s.logger.Warn("blacklist update failed", "error", err)
		}
	default:
		s.logger.Warn("unknown command", "type", cmd.Type)
	}
}

func (s *Server) handleChat(cmd Command) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return
	}
	if runes := []rune(text); len(runes) > s.maxChatLength {
		text = string(runes[:s.maxChatLength])
	}
	userID := cmd.UserID
	if userID == "" {
		userID = "viewer"
	}
	msg := luna.ChatMessageIn{
		UserID:    userID,
		Text:      text,
		Timestamp: luna.NowUnix(),
	}

	s.mu.Lock()
	s.recent = append(s.recent, msg)
	if len(s.recent) > s.chatBacklog {
		s.recent = s.recent[len(s.recent)-s.chatBacklog:]
	}
	s.mu.Unlock()

	s.state.QueueChatMessage(msg)
	s.state.TouchLastMessage()
	if !s.state.AIThinking() {
		s.state.SetNewMessage(true)
	}
}

func (s *Server) sendEvent(c *client, ev luna.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
