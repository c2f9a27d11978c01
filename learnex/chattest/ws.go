// learnex/chattest/ws.go
package chattest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"learnex/learnex/types"
)

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// handleWS is the socket side of the fake server: one connection per client,
// a join frame registers it under its user id, send_message fans the stored
// message out as receive_message to the receiver and message_sent back to the
// sender, mark_as_read flips the read flag.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	c := &wsConn{conn: conn}
	var joinedAs string
	defer func() {
		if joinedAs != "" {
			s.removeConn(joinedAs, c)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		switch frame.Event {
		case types.EventJoin:
			var userID string
			if err := json.Unmarshal(frame.Data, &userID); err != nil || userID == "" {
				continue
			}
			joinedAs = userID
			s.mu.Lock()
			s.conns[userID] = append(s.conns[userID], c)
			s.mu.Unlock()

		case types.EventSendMessage:
			var out types.OutgoingMessage
			if err := json.Unmarshal(frame.Data, &out); err != nil {
				continue
			}
			if out.Sender == "" || out.Receiver == "" || (out.Content == "" && out.FileURL == "") {
				continue
			}
			msg := s.storeMessage(out)
			s.emitTo(msg.Receiver, types.EventReceiveMessage, msg)
			s.emitTo(msg.Sender, types.EventMessageSent, msg)

		case types.EventMarkAsRead:
			var msgID string
			if err := json.Unmarshal(frame.Data, &msgID); err != nil {
				continue
			}
			s.mu.Lock()
			for i := range s.messages {
				if s.messages[i].ID == msgID {
					s.messages[i].Read = true
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) storeMessage(out types.OutgoingMessage) types.Message {
	messageType := out.MessageType
	if messageType == "" {
		switch {
		case out.FileURL != "" && out.Content != "":
			messageType = types.MessageTextWithFile
		case out.FileURL != "":
			messageType = types.MessageFile
		default:
			messageType = types.MessageText
		}
	}
	msg := types.Message{
		ID:          uuid.New().String(),
		Sender:      out.Sender,
		Receiver:    out.Receiver,
		Content:     out.Content,
		MessageType: messageType,
		FileURL:     out.FileURL,
		FileName:    out.FileName,
		FileType:    out.FileType,
		FileSize:    out.FileSize,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	return msg
}

func (s *Server) emitTo(userID, event string, msg types.Message) {
	frame, err := types.NewFrame(event, msg)
	if err != nil {
		return
	}
	s.mu.Lock()
	conns := append([]*wsConn(nil), s.conns[userID]...)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.writeFrame(frame)
	}
}

func (s *Server) removeConn(userID string, c *wsConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := s.conns[userID]
	for i, cc := range conns {
		if cc == c {
			s.conns[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(s.conns[userID]) == 0 {
		delete(s.conns, userID)
	}
}
