package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/strata-dev/strata/pkg/payload"
	"github.com/strata-dev/strata/pkg/tree"
)

// clientCommand is what a session sends over the socket.
type clientCommand struct {
	// Action is "refresh" or "navigate".
	Action string `json:"action"`

	// View names the target view for navigate.
	View string `json:"view,omitempty"`
}

// handleSocket runs one session: an initial snapshot frame, then a
// diff frame for every refresh or navigation the client requests.
// The diff path is single-threaded per session, so the last tree
// needs no locking.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := s.view(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Sessions ride a cookie issued on a prior HTTP response; the
	// upgrade handshake cannot set one.
	req := s.newRequest(name, nil, r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	last, err := s.render(r, v, req)
	if err != nil {
		s.logger.Error("session render failed", "view", name, "error", err)
		s.sendErrorFrame(conn, "E100", err.Error())
		return
	}
	frame, err := payload.SnapshotFrame(last)
	if err != nil {
		s.sendErrorFrame(conn, "E200", err.Error())
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.logger.Warn("bad session command", "error", err)
			continue
		}

		switch cmd.Action {
		case "refresh":
		case "navigate":
			if cmd.View == "" {
				s.logger.Warn("navigate without view")
				continue
			}
			nv, ok := s.view(cmd.View)
			if !ok {
				s.sendErrorFrame(conn, "E500", "view "+cmd.View+" not registered")
				continue
			}
			name, v = cmd.View, nv
		default:
			s.logger.Warn("unknown session action", "action", cmd.Action)
			continue
		}

		// Every render gets a fresh request: session values carried over
		// from the previous render would mask changes a refresh is
		// supposed to pick up.
		next, err := s.render(r, v, s.newRequest(name, nil, r))
		if err != nil {
			s.logger.Error("session render failed", "view", name, "error", err)
			s.sendErrorFrame(conn, "E100", err.Error())
			continue
		}

		diff := tree.Diff(last, next)
		last = next
		if diff.Empty() {
			continue
		}
		dframe, err := payload.DiffFrame(diff)
		if err != nil {
			s.sendErrorFrame(conn, "E200", err.Error())
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, dframe.Encode()); err != nil {
			return
		}
	}
}

func (s *Server) sendErrorFrame(conn *websocket.Conn, code, message string) {
	frame := payload.ErrorFrame(code, message)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		s.logger.Error("error frame write failed", "error", err)
	}
}
