package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lumenstay/copilot/core"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The API has no browser origin to protect; clients are internal tools.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Message string `json:"message"`
}

type wsReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// handleCopilotChatWS upgrades to a websocket and runs one chat turn per
// incoming message. The whole connection shares a single session, so
// confirmations work across messages.
func (s *Server) handleCopilotChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn().Err(err).Str("session", sessionID).Msg("websocket read failed")
			}
			return
		}

		reply, chatErr := s.copilot.Chat(r.Context(), sessionID, msg.Message)
		out := wsReply{Reply: reply, SessionID: sessionID}
		if chatErr != nil && !errors.Is(chatErr, core.ErrToolLoopExceeded) {
			out.Error = chatErr.Error()
		}
		if err := conn.WriteJSON(out); err != nil {
			s.log.Warn().Err(err).Str("session", sessionID).Msg("websocket write failed")
			return
		}
	}
}
