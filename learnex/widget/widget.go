// learnex/widget/widget.go
package widget

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnex/learnex/storage"
	httputils "learnex/learnex/utils/http"
)

const greeting = "Hi! I am the Campus Bot. 🤖\nHow can I help you today?"

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// Message is one line of the widget transcript.
type Message struct {
	ID        string
	Sender    string
	Text      string
	IsError   bool
	Timestamp time.Time
}

// API is the assistant endpoint of the campus client.
type API interface {
	AskChatbot(ctx context.Context, message string) (string, error)
}

// Widget is the Campus Bot assistant: open/closed state plus a transcript
// hydrated from and persisted to the local store on every append. The
// transcript is never pruned.
type Widget struct {
	api   API
	store *storage.Local

	mu       sync.Mutex
	open     bool
	messages []Message
}

// New hydrates the transcript; an empty store seeds the greeting (in memory
// only, like the browser widget's initial state).
func New(api API, store *storage.Local) (*Widget, error) {
	w := &Widget{api: api, store: store}
	if store != nil {
		persisted, err := store.WidgetMessages()
		if err != nil {
			return nil, err
		}
		for _, p := range persisted {
			w.messages = append(w.messages, Message{
				ID: p.ID, Sender: p.Sender, Text: p.Text, IsError: p.IsError, Timestamp: p.CreatedAt,
			})
		}
	}
	if len(w.messages) == 0 {
		w.messages = []Message{{
			ID: uuid.New().String(), Sender: SenderBot, Text: greeting, Timestamp: time.Now(),
		}}
	}
	return w, nil
}

func (w *Widget) Toggle() {
	w.mu.Lock()
	w.open = !w.open
	w.mu.Unlock()
}

func (w *Widget) Open()  { w.mu.Lock(); w.open = true; w.mu.Unlock() }
func (w *Widget) Close() { w.mu.Lock(); w.open = false; w.mu.Unlock() }

func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

func (w *Widget) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Ask sends one prompt and appends both sides of the exchange. Failures are
// appended to the transcript as bot messages flagged as errors, never
// returned to the caller as failures.
func (w *Widget) Ask(ctx context.Context, text string) Message {
	w.append(Message{
		ID: uuid.New().String(), Sender: SenderUser, Text: text, Timestamp: time.Now(),
	})

	reply, err := w.api.AskChatbot(ctx, text)
	msg := Message{ID: uuid.New().String(), Sender: SenderBot, Timestamp: time.Now()}
	if err != nil {
		msg.Text = errorText(err)
		msg.IsError = true
	} else {
		msg.Text = reply
	}
	w.append(msg)
	return msg
}

func (w *Widget) append(msg Message) {
	w.mu.Lock()
	w.messages = append(w.messages, msg)
	w.mu.Unlock()
	if w.store != nil {
		_ = w.store.AppendWidgetMessage(storage.WidgetMessage{
			ID: msg.ID, Sender: msg.Sender, Text: msg.Text, IsError: msg.IsError, CreatedAt: msg.Timestamp,
		})
	}
}

// errorText mirrors the browser widget's error mapping: server message with
// optional details, status-specific fallbacks, and a network-unreachable
// fallback.
func errorText(err error) string {
	var serverErr *httputils.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.Message != "Server Error" {
			return serverErr.Message
		}
		switch serverErr.Status {
		case http.StatusInternalServerError:
			return "My AI processor is offline. Please ask the admin to check the AI API Key."
		case http.StatusNotFound:
			return "Connection failed (Error 404). Please ensure the server has been restarted to register new routes."
		default:
			return fmt.Sprintf("An error occurred (Status %d). Please try again later.", serverErr.Status)
		}
	}
	return "Cannot reach the server. Please check if the backend is running."
}
