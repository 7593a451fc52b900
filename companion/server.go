// Package companion serves a local folder over the remixd protocol.
package companion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/donovanhide/eventsource"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/remixgo/remix-shell/protocol"
)

type Options struct {
	ReadOnly bool
	Logger   *zap.Logger
}

type Server struct {
	folder *Folder
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*websocket.Conn
	streams  map[chan protocol.Notification]struct{}
}

func New(root string, opts Options) (*Server, error) {
	folder, err := NewFolder(root, opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		folder:   folder,
		logger:   logger.Named("companion"),
		sessions: make(map[string]*websocket.Conn),
		streams:  make(map[chan protocol.Notification]struct{}),
	}, nil
}

func (s *Server) Folder() *Folder { return s.folder }

// Handler serves the remixd socket on / and a server-sent event stream of
// folder changes on /events.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", websocket.Server{
		Handshake: checkProtocol,
		Handler:   s.serveSession,
	})
	mux.HandleFunc("/events", s.serveEvents)
	return mux
}

func checkProtocol(config *websocket.Config, r *http.Request) error {
	for _, p := range config.Protocol {
		if p == protocol.SubProtocol {
			config.Protocol = []string{protocol.SubProtocol}
			return nil
		}
	}
	return fmt.Errorf("unsupported sub-protocol %v", config.Protocol)
}

func (s *Server) serveSession(ws *websocket.Conn) {
	id := uuid.NewString()
	logger := s.logger.With(zap.String("session", id))

	s.mu.Lock()
	s.sessions[id] = ws
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		ws.Close()
	}()
	logger.Info("session opened", zap.String("remote", ws.Request().RemoteAddr))

	for {
		var req protocol.Request
		if err := websocket.JSON.Receive(ws, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("receive", zap.Error(err))
			}
			logger.Info("session closed")
			return
		}

		result, err := s.folder.Call(req.Service, req.Fn, req.Args)
		if err != nil {
			logger.Debug("call failed", zap.Int64("id", req.ID), zap.String("fn", req.Fn), zap.Error(err))
		}
		reply, err := protocol.Reply(req.ID, result, err)
		if err != nil {
			logger.Error("encode reply", zap.Error(err))
			return
		}
		if err := websocket.Message.Send(ws, string(reply)); err != nil {
			logger.Warn("send", zap.Error(err))
			return
		}
	}
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := make(chan protocol.Notification, 16)
	s.mu.Lock()
	s.streams[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.streams, ch)
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := eventsource.NewEncoder(w, false)
	for {
		select {
		case n := <-ch:
			if err := enc.Encode(n); err != nil {
				s.logger.Warn("event stream", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// Broadcast sends n to every open session and event stream.
func (s *Server) Broadcast(n protocol.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		s.logger.Error("encode notification", zap.Error(err))
		return
	}

	s.mu.Lock()
	sessions := make([]*websocket.Conn, 0, len(s.sessions))
	for _, ws := range s.sessions {
		sessions = append(sessions, ws)
	}
	for ch := range s.streams {
		select {
		case ch <- n:
		default:
			// slow reader
		}
	}
	s.mu.Unlock()

	for _, ws := range sessions {
		if err := websocket.Message.Send(ws, string(data)); err != nil {
			s.logger.Debug("notify", zap.Error(err))
		}
	}
}

// Sessions returns the number of connected clients.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Watch broadcasts changes below the shared folder until ctx ends.
func (s *Server) Watch(ctx context.Context) error {
	return watch(ctx, s.folder.Root(), s.logger, func(name, path string) {
		rel, err := filepath.Rel(s.folder.Root(), path)
		if err != nil {
			return
		}
		s.Broadcast(protocol.NewNotification(scope, name, filepath.ToSlash(rel)))
	})
}
