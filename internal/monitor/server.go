package monitor

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sub := s.hub.Subscribe(64)
	slog.Info("monitor client connected", "remote", r.RemoteAddr)

	// Reader exists only to notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Unsubscribe(sub)
				return
			}
		}
	}()

	defer conn.Close()
	for entry := range sub.C {
		if err := conn.WriteJSON(entry); err != nil {
			slog.Debug("monitor client write failed", "remote", r.RemoteAddr, "error", err)
			s.hub.Unsubscribe(sub)
			return
		}
	}
}

// ListenAndServe runs the monitor endpoint until the listener fails.
func ListenAndServe(addr string, hub *Hub) error {
	server := &http.Server{Addr: addr, Handler: NewServer(hub).Routes()}
	slog.Info("monitor listening", "addr", addr)
	return server.ListenAndServe()
}
