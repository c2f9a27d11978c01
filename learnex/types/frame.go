package types

import "encoding/json"

// Socket event names, client to server and server to client.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventMarkAsRead     = "mark_as_read"
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
)

// Frame is the envelope for every socket event in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewFrame(event string, data interface{}) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}
