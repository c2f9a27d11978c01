package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnex/learnex/directory"
	"learnex/learnex/session"
	"learnex/learnex/types"
	"learnex/learnex/utils/logging"
)

func TestMain(m *testing.M) {
	logging.InitNop()
	m.Run()
}

var (
	self = session.Identity{ID: "s1", Name: "Asha", Role: types.RoleStudent}
	f1   = types.UserSummary{ID: "f1", Name: "Dr. Rao", Role: types.RoleFaculty}
	f2   = types.UserSummary{ID: "f2", Name: "Dr. Iyer", Role: types.RoleFaculty}
)

// fakeAPI backs both the thread fetches and the directory refreshes.
type fakeAPI struct {
	mu          sync.Mutex
	threads     map[string][]types.Message
	threadCalls map[string]int
	threadGates map[string]chan struct{}
	convs       []types.Conversation
	convCalls   int
	clearErr    error
	clearCalls  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		threads:     map[string][]types.Message{},
		threadCalls: map[string]int{},
		threadGates: map[string]chan struct{}{},
	}
}

func (f *fakeAPI) Thread(_ context.Context, userID string) ([]types.Message, error) {
	f.mu.Lock()
	f.threadCalls[userID]++
	gate := f.threadGates[userID]
	msgs := append([]types.Message(nil), f.threads[userID]...)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return msgs, nil
}

func (f *fakeAPI) ClearChat(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	if f.clearErr != nil {
		return f.clearErr
	}
	delete(f.threads, userID)
	return nil
}

func (f *fakeAPI) Conversations(context.Context) ([]types.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.convCalls++
	return f.convs, nil
}

func (f *fakeAPI) Recommended(context.Context) ([]types.UserSummary, error) {
	return nil, nil
}

func (f *fakeAPI) SearchUsers(context.Context, string) ([]types.UserSummary, error) {
	return nil, nil
}

func (f *fakeAPI) directoryRefreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convCalls
}

type fakeSender struct {
	mu   sync.Mutex
	sent []types.OutgoingMessage
	read []string
}

func (s *fakeSender) SendMessage(out types.OutgoingMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, out)
	return nil
}

func (s *fakeSender) MarkAsRead(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = append(s.read, messageID)
	return nil
}

func (s *fakeSender) reads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.read...)
}

func newTestController(api *fakeAPI) (*Controller, *fakeSender) {
	sender := &fakeSender{}
	ctrl := NewController(self, api, directory.New(api))
	ctrl.BindTransport(sender)
	return ctrl, sender
}

func textMsg(id, sender, receiver, content string, at time.Time) types.Message {
	return types.Message{
		ID: id, Sender: sender, Receiver: receiver, Content: content,
		MessageType: types.MessageText, CreatedAt: at,
	}
}

func TestSendHasNoLocalEcho(t *testing.T) {
	api := newFakeAPI()
	ctrl, sender := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	require.NoError(t, ctrl.Send("Hello"))

	assert.Empty(t, ctrl.Messages(), "message renders only on the message_sent echo")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, types.OutgoingMessage{Sender: "s1", Receiver: "f1", Content: "Hello"}, sender.sent[0])
}

func TestMessageSentEchoAppendsExactlyOnce(t *testing.T) {
	api := newFakeAPI()
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))
	before := api.directoryRefreshes()

	echo := textMsg("m1", "s1", "f1", "Hello", time.Now())
	ctrl.HandleMessageSent(echo)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, "s1", msgs[0].Sender)
	assert.Greater(t, api.directoryRefreshes(), before, "outbound echo refreshes the directory")
}

func TestThirdPartyMessagesNeverLeakIntoThread(t *testing.T) {
	api := newFakeAPI()
	ctrl, sender := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))
	before := api.directoryRefreshes()

	// f2 writes to the current user while the f1 thread is open
	ctrl.HandleReceiveMessage(textMsg("m9", "f2", "s1", "hi from f2", time.Now()))

	assert.Empty(t, ctrl.Messages(), "message from a third party must not enter the open thread")
	assert.Empty(t, sender.reads(), "only rendered messages are acknowledged")
	assert.Greater(t, api.directoryRefreshes(), before, "directory still refreshes on every inbound event")
}

func TestReceiveForOpenCounterpartAppendsAndAcks(t *testing.T) {
	api := newFakeAPI()
	ctrl, sender := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	ctrl.HandleReceiveMessage(textMsg("m5", "f1", "s1", "namaste", time.Now()))

	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "namaste", msgs[0].Content)
	assert.Equal(t, []string{"m5"}, sender.reads())
}

func TestNoSelectionIgnoresInbound(t *testing.T) {
	api := newFakeAPI()
	ctrl, sender := newTestController(api)

	ctrl.HandleReceiveMessage(textMsg("m1", "f1", "s1", "hi", time.Now()))

	assert.Empty(t, ctrl.Messages())
	assert.Empty(t, sender.reads())
	assert.ErrorIs(t, ctrl.Send("hi"), ErrNoContactSelected)
}

func TestStaleFetchNeverPopulatesWrongThread(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{textMsg("a1", "f1", "s1", "old thread", time.Now())}
	api.threads["f2"] = []types.Message{textMsg("b1", "f2", "s1", "new thread", time.Now())}
	gate := make(chan struct{})
	api.threadGates["f1"] = gate

	ctrl, _ := newTestController(api)

	done := make(chan error, 1)
	go func() { done <- ctrl.Select(context.Background(), f1) }()

	// wait for the f1 fetch to be in flight, then switch away
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.threadCalls["f1"] == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, ctrl.Select(context.Background(), f2))

	// the slow f1 response resolves after the switch and must be discarded
	close(gate)
	require.NoError(t, <-done)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "new thread", msgs[0].Content)
}

func TestReselectingSameContactIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{
		textMsg("m1", "f1", "s1", "one", time.Now().Add(-time.Minute)),
		textMsg("m2", "s1", "f1", "two", time.Now()),
	}
	ctrl, _ := newTestController(api)

	require.NoError(t, ctrl.Select(context.Background(), f1))
	require.NoError(t, ctrl.Select(context.Background(), f1))

	assert.Len(t, ctrl.Messages(), 2, "no duplicate entries beyond the second fetch's own result")
	api.mu.Lock()
	assert.Equal(t, 2, api.threadCalls["f1"])
	api.mu.Unlock()
}

func TestThreadSortedByCreatedAt(t *testing.T) {
	now := time.Now()
	api := newFakeAPI()
	// server returns wire order, not chronological order
	api.threads["f1"] = []types.Message{
		textMsg("m2", "f1", "s1", "second", now),
		textMsg("m1", "s1", "f1", "first", now.Add(-time.Minute)),
	}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	// a live message older than the tail lands at its chronological position
	ctrl.HandleReceiveMessage(textMsg("m0", "f1", "s1", "earliest", now.Add(-time.Hour)))
	msgs = ctrl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "earliest", msgs[0].Content)
}

func TestDeselectDiscardsThread(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{textMsg("m1", "f1", "s1", "hi", time.Now())}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))
	require.NotEmpty(t, ctrl.Messages())

	ctrl.Deselect()

	assert.Empty(t, ctrl.Messages())
	_, ok := ctrl.Selected()
	assert.False(t, ok)
}

func TestClearChatRequiresConfirmation(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{textMsg("m1", "f1", "s1", "hi", time.Now())}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	err := ctrl.ClearChat(context.Background(), func(types.UserSummary) bool { return false })

	assert.ErrorIs(t, err, ErrClearCancelled)
	assert.Len(t, ctrl.Messages(), 1)
	assert.Zero(t, api.clearCalls, "declined confirmation must not issue the delete")
}

func TestClearChatFailureLeavesThreadUntouched(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{textMsg("m1", "f1", "s1", "hi", time.Now())}
	api.clearErr = errors.New("boom")
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	err := ctrl.ClearChat(context.Background(), nil)

	assert.Error(t, err)
	assert.Len(t, ctrl.Messages(), 1, "thread must survive a failed delete")
}

func TestClearChatEmptiesAfterSuccess(t *testing.T) {
	api := newFakeAPI()
	api.threads["f1"] = []types.Message{textMsg("m1", "f1", "s1", "hi", time.Now())}
	ctrl, _ := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	confirmed := false
	err := ctrl.ClearChat(context.Background(), func(u types.UserSummary) bool {
		confirmed = true
		assert.Equal(t, "f1", u.ID)
		return true
	})

	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Empty(t, ctrl.Messages())
	assert.Equal(t, 1, api.clearCalls)
}

func TestAnnounceBuildsFileMessage(t *testing.T) {
	api := newFakeAPI()
	ctrl, sender := newTestController(api)
	require.NoError(t, ctrl.Select(context.Background(), f1))

	desc := types.FileDescriptor{
		MessageType: types.MessageTextWithFile,
		FileURL:     "uploads/chat/file-1.png",
		FileName:    "photo.png",
		FileType:    "image/png",
		FileSize:    2 << 20,
	}
	require.NoError(t, ctrl.Announce(desc, "check this"))

	require.Len(t, sender.sent, 1)
	out := sender.sent[0]
	assert.Equal(t, types.MessageTextWithFile, out.MessageType)
	assert.Equal(t, "check this", out.Content)
	assert.Equal(t, "photo.png", out.FileName)
	assert.Equal(t, "f1", out.Receiver)
}
