package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/w1xm/ioptron_interface/ioptron"
	"github.com/w1xm/ioptron_interface/telemetry"
	"go.uber.org/zap"
)

// Server holds the latest sample from the watch loop for HTTP clients.
type Server struct {
	statusMu   sync.RWMutex
	statusCond *sync.Cond
	// seq counts updates so socket clients can tell a new sample from a
	// spurious wakeup.
	seq       uint64
	closed    bool
	connected bool
	model     ioptron.Model
	info      ioptron.Info
	pos       ioptron.Position
	updated   time.Time
}

func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const socketWriteTimeout = 10 * time.Second

func (s *Server) setConnected(connected bool, model ioptron.Model) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.connected = connected
	s.model = model
	s.seq++
	s.statusCond.Broadcast()
}

func (s *Server) statusCallback(info ioptron.Info, pos ioptron.Position) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.info, s.pos = info, pos
	s.updated = time.Now()
	s.seq++
	s.statusCond.Broadcast()
}

// Close ends all status sockets.
func (s *Server) Close() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.closed = true
	s.statusCond.Broadcast()
}

// snapshot must be called with statusMu held.
func (s *Server) snapshot() map[string]interface{} {
	status := map[string]interface{}{
		"connected": s.connected,
		"model":     s.model.String(),
	}
	if !s.updated.IsZero() {
		status["updated"] = s.updated
		status["mount"] = telemetry.Fields(s.info, s.pos)
	}
	return status
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.snapshot()
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		logger.Warn("encoding status", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// StatusSocketHandler sends the current sample, then every new one, until
// the client goes away or the server is closed.
func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrading status socket", zap.Error(err))
		return
	}
	defer conn.Close()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients never send anything we act on; a read error means they left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		s.statusMu.Lock()
		s.statusCond.Broadcast()
		s.statusMu.Unlock()
	}()

	s.statusMu.RLock()
	for {
		if s.closed {
			s.statusMu.RUnlock()
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(socketWriteTimeout))
			return
		}
		if ctx.Err() != nil {
			s.statusMu.RUnlock()
			return
		}
		status, seq := s.snapshot(), s.seq
		s.statusMu.RUnlock()

		conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		if err := conn.WriteJSON(status); err != nil {
			logger.Debug("writing status socket", zap.Error(err))
			return
		}

		s.statusMu.RLock()
		for s.seq == seq && !s.closed && ctx.Err() == nil {
			s.statusCond.Wait()
		}
	}
}
