// learnex/transport/transport.go
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"learnex/learnex/types"
	"learnex/learnex/utils/logging"
)

// Handler receives the two server-to-client events. The transport does not
// decide what a message means for the open thread; that is the caller's job.
type Handler interface {
	HandleReceiveMessage(msg types.Message)
	HandleMessageSent(msg types.Message)
}

var (
	ErrClosed          = errors.New("transport closed")
	ErrIncompleteFrame = errors.New("send_message requires sender, receiver and content or a file")
)

// Transport is one live duplex connection per mounted chat view. It joins the
// per-user channel on dial and stays subscribed until Close. There is no
// reconnect policy: a dropped connection delivers nothing until the caller
// dials again.
type Transport struct {
	conn    *websocket.Conn
	handler Handler

	send chan types.Frame

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Dial opens the connection and announces presence under userID.
func Dial(ctx context.Context, socketURL, userID string, h Handler) (*Transport, error) {
	conn, _, err := websocket.Dial(ctx, socketURL, nil)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		conn:    conn,
		handler: h,
		send:    make(chan types.Frame, 64),
		ctx:     runCtx,
		cancel:  cancel,
	}

	go t.writeLoop()
	go t.readLoop()
	go t.keepAliveLoop()

	if err := t.enqueue(types.EventJoin, userID); err != nil {
		t.Close()
		return nil, err
	}
	logging.TransportLogger.Info("transport connected", zap.String("user_id", userID))
	return t, nil
}

// SendMessage emits send_message without blocking. The optimistic clearing of
// the composer is the caller's responsibility; the message renders only when
// the server echoes message_sent.
func (t *Transport) SendMessage(out types.OutgoingMessage) error {
	if out.Sender == "" || out.Receiver == "" || (out.Content == "" && out.FileURL == "") {
		return ErrIncompleteFrame
	}
	return t.enqueue(types.EventSendMessage, out)
}

// MarkAsRead acknowledges delivery of one message.
func (t *Transport) MarkAsRead(messageID string) error {
	return t.enqueue(types.EventMarkAsRead, messageID)
}

func (t *Transport) enqueue(event string, data interface{}) error {
	frame, err := types.NewFrame(event, data)
	if err != nil {
		return err
	}
	if t.ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case t.send <- frame:
		return nil
	default:
		// channel full: drop rather than block the UI loop
		logging.TransportLogger.Warn("send queue full, frame dropped", zap.String("event", event))
		return nil
	}
}

func (t *Transport) writeLoop() {
	for {
		select {
		case <-t.ctx.Done():
			return
		case frame := <-t.send:
			data, err := json.Marshal(frame)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err = t.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logging.TransportLogger.Warn("write failed", zap.Error(err))
				return
			}
		}
	}
}

func (t *Transport) readLoop() {
	defer t.Close()
	for {
		typ, data, err := t.conn.Read(t.ctx)
		if err != nil {
			if t.ctx.Err() == nil {
				logging.TransportLogger.Warn("read failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var frame types.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logging.TransportLogger.Warn("bad frame", zap.Error(err))
			continue
		}
		t.dispatch(frame)
	}
}

func (t *Transport) dispatch(frame types.Frame) {
	switch frame.Event {
	case types.EventReceiveMessage, types.EventMessageSent:
		var msg types.Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			logging.TransportLogger.Warn("bad message payload", zap.Error(err))
			return
		}
		if frame.Event == types.EventReceiveMessage {
			t.handler.HandleReceiveMessage(msg)
		} else {
			t.handler.HandleMessageSent(msg)
		}
	default:
		logging.TransportLogger.Info("unhandled event", zap.String("event", frame.Event))
	}
}

func (t *Transport) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = t.conn.Ping(pingCtx)
			cancel()
		}
	}
}

// Close tears the connection down exactly once.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		_ = t.conn.Close(websocket.StatusNormalClosure, "bye")
		logging.TransportLogger.Info("transport closed")
	})
}
