package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnex/learnex/chattest"
	"learnex/learnex/types"
	"learnex/learnex/utils/logging"
)

func TestMain(m *testing.M) {
	logging.InitNop()
	m.Run()
}

type capturingHandler struct {
	mu       sync.Mutex
	received []types.Message
	echoed   []types.Message
}

func (h *capturingHandler) HandleReceiveMessage(msg types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, msg)
}

func (h *capturingHandler) HandleMessageSent(msg types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.echoed = append(h.echoed, msg)
}

func (h *capturingHandler) receivedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func (h *capturingHandler) echoedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.echoed)
}

func waitJoined(t *testing.T, s *chattest.Server, userIDs ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, id := range userIDs {
			if !s.Joined(id) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func startServer(t *testing.T) (*chattest.Server, string) {
	t.Helper()
	s := chattest.NewServer()
	s.AddUser(types.UserSummary{ID: "s1", Name: "Asha", Role: types.RoleStudent})
	s.AddUser(types.UserSummary{ID: "f1", Name: "Dr. Rao", Role: types.RoleFaculty})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestSendAndEchoRoundTrip(t *testing.T) {
	server, wsURL := startServer(t)

	sender := &capturingHandler{}
	receiver := &capturingHandler{}

	ts, err := Dial(context.Background(), wsURL, "s1", sender)
	require.NoError(t, err)
	defer ts.Close()
	tr, err := Dial(context.Background(), wsURL, "f1", receiver)
	require.NoError(t, err)
	defer tr.Close()
	waitJoined(t, server, "s1", "f1")

	require.NoError(t, ts.SendMessage(types.OutgoingMessage{
		Sender: "s1", Receiver: "f1", Content: "Hello",
	}))

	// sender sees the message only through the server echo
	require.Eventually(t, func() bool { return sender.echoedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	sender.mu.Lock()
	echo := sender.echoed[0]
	sender.mu.Unlock()
	assert.Equal(t, "Hello", echo.Content)
	assert.Equal(t, "s1", echo.Sender)
	assert.Equal(t, "f1", echo.Receiver)
	assert.NotEmpty(t, echo.ID)
	assert.Zero(t, sender.receivedCount(), "own messages never arrive as receive_message")

	// receiver gets the same message as receive_message
	require.Eventually(t, func() bool { return receiver.receivedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	receiver.mu.Lock()
	got := receiver.received[0]
	receiver.mu.Unlock()
	assert.Equal(t, echo.ID, got.ID)
	assert.False(t, got.Read)

	// acknowledging flips the stored read flag server-side
	require.NoError(t, tr.MarkAsRead(got.ID))
	require.Eventually(t, func() bool {
		msgs := server.MessagesBetween("s1", "f1")
		return len(msgs) == 1 && msgs[0].Read
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileMessageRoundTrip(t *testing.T) {
	server, wsURL := startServer(t)

	sender := &capturingHandler{}
	receiver := &capturingHandler{}

	ts, err := Dial(context.Background(), wsURL, "s1", sender)
	require.NoError(t, err)
	defer ts.Close()
	tr, err := Dial(context.Background(), wsURL, "f1", receiver)
	require.NoError(t, err)
	defer tr.Close()
	waitJoined(t, server, "s1", "f1")

	require.NoError(t, ts.SendMessage(types.OutgoingMessage{
		Sender:   "s1",
		Receiver: "f1",
		FileURL:  "uploads/chat/file-abc.png",
		FileName: "photo.png",
		FileType: "image/png",
		FileSize: 1024,
	}))

	require.Eventually(t, func() bool { return receiver.receivedCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	receiver.mu.Lock()
	got := receiver.received[0]
	receiver.mu.Unlock()
	assert.Equal(t, types.MessageFile, got.MessageType, "server infers the file type when content is empty")
	assert.Equal(t, "photo.png", got.FileName)
	assert.Empty(t, got.Content)
}

func TestIncompleteFrameRejectedLocally(t *testing.T) {
	_, wsURL := startServer(t)

	ts, err := Dial(context.Background(), wsURL, "s1", &capturingHandler{})
	require.NoError(t, err)
	defer ts.Close()

	assert.ErrorIs(t, ts.SendMessage(types.OutgoingMessage{Receiver: "f1", Content: "x"}), ErrIncompleteFrame)
	assert.ErrorIs(t, ts.SendMessage(types.OutgoingMessage{Sender: "s1", Content: "x"}), ErrIncompleteFrame)
	assert.ErrorIs(t, ts.SendMessage(types.OutgoingMessage{Sender: "s1", Receiver: "f1"}), ErrIncompleteFrame)
}

func TestCloseIsIdempotent(t *testing.T) {
	_, wsURL := startServer(t)

	ts, err := Dial(context.Background(), wsURL, "s1", &capturingHandler{})
	require.NoError(t, err)

	ts.Close()
	ts.Close()

	assert.ErrorIs(t, ts.SendMessage(types.OutgoingMessage{
		Sender: "s1", Receiver: "f1", Content: "late",
	}), ErrClosed)
}
