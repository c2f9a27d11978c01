// learnex/chat/controller.go
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"learnex/learnex/directory"
	"learnex/learnex/session"
	"learnex/learnex/types"
	"learnex/learnex/utils/logging"
)

// API is the slice of the campus client the thread needs.
type API interface {
	Thread(ctx context.Context, userID string) ([]types.Message, error)
	ClearChat(ctx context.Context, userID string) error
}

// Sender is the outbound half of the message transport.
type Sender interface {
	SendMessage(out types.OutgoingMessage) error
	MarkAsRead(messageID string) error
}

// ErrNoContactSelected is returned by operations that need an open thread.
var ErrNoContactSelected = errors.New("no contact selected")

// ErrClearCancelled means the user declined the clear-chat confirmation.
var ErrClearCancelled = errors.New("clear chat cancelled")

// Controller owns the open thread and routes transport events into it and the
// conversation directory. One controller per mounted chat view.
type Controller struct {
	self      session.Identity
	api       API
	dir       *directory.Directory
	transport Sender

	mu         sync.Mutex
	selected   *types.UserSummary
	generation uint64
	messages   []types.Message
}

func NewController(self session.Identity, api API, dir *directory.Directory) *Controller {
	return &Controller{self: self, api: api, dir: dir}
}

// BindTransport attaches the live connection. Done after dial because the
// transport's handler is the controller itself.
func (c *Controller) BindTransport(t Sender) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

// Select opens the thread with a contact: empties the local log, fetches the
// history, and applies it only if no later Select happened while the fetch
// was in flight. A stale response for a previously selected contact is
// discarded, never applied to the wrong thread.
func (c *Controller) Select(ctx context.Context, user types.UserSummary) error {
	c.mu.Lock()
	c.selected = &user
	c.generation++
	gen := c.generation
	c.messages = nil
	c.mu.Unlock()

	msgs, err := c.api.Thread(ctx, user.ID)
	if err != nil {
		return err
	}
	sortThread(msgs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	c.messages = msgs
	return nil
}

// Deselect discards the open thread; history is not kept client-side.
func (c *Controller) Deselect() {
	c.mu.Lock()
	c.selected = nil
	c.generation++
	c.messages = nil
	c.mu.Unlock()
}

func (c *Controller) Selected() (types.UserSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return types.UserSummary{}, false
	}
	return *c.selected, true
}

// Messages returns a copy of the open thread in render order.
func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Send emits a text message to the open counterpart. The thread is not
// touched here: the message renders when the server echoes message_sent.
func (c *Controller) Send(content string) error {
	c.mu.Lock()
	sel := c.selected
	t := c.transport
	c.mu.Unlock()
	if sel == nil {
		return ErrNoContactSelected
	}
	if t == nil {
		return errors.New("transport not connected")
	}
	return t.SendMessage(types.OutgoingMessage{
		Sender:   c.self.ID,
		Receiver: sel.ID,
		Content:  content,
	})
}

// Announce emits a file message built from an upload descriptor.
func (c *Controller) Announce(desc types.FileDescriptor, caption string) error {
	c.mu.Lock()
	sel := c.selected
	t := c.transport
	c.mu.Unlock()
	if sel == nil {
		return ErrNoContactSelected
	}
	if t == nil {
		return errors.New("transport not connected")
	}
	return t.SendMessage(types.OutgoingMessage{
		Sender:      c.self.ID,
		Receiver:    sel.ID,
		Content:     caption,
		MessageType: desc.MessageType,
		FileURL:     desc.FileURL,
		FileName:    desc.FileName,
		FileType:    desc.FileType,
		FileSize:    desc.FileSize,
	})
}

// HandleReceiveMessage appends an inbound message when it concerns the open
// counterpart and acknowledges it as read; messages between third parties
// never touch the thread. Every inbound event refreshes the directory.
func (c *Controller) HandleReceiveMessage(msg types.Message) {
	c.mu.Lock()
	if c.concernsSelected(msg) {
		c.messages = insertSorted(c.messages, msg)
		if t := c.transport; t != nil {
			if err := t.MarkAsRead(msg.ID); err != nil {
				logging.ErrorLogger.Error("mark as read failed", zap.Error(err))
			}
		}
	}
	c.mu.Unlock()
	c.refreshDirectory()
}

// HandleMessageSent appends the server echo of an own outbound message; this
// is the only way the sender sees their message rendered.
func (c *Controller) HandleMessageSent(msg types.Message) {
	c.mu.Lock()
	if c.concernsSelected(msg) {
		c.messages = insertSorted(c.messages, msg)
	}
	c.mu.Unlock()
	c.refreshDirectory()
}

func (c *Controller) concernsSelected(msg types.Message) bool {
	return c.selected != nil && (msg.Sender == c.selected.ID || msg.Receiver == c.selected.ID)
}

// ClearChat deletes the thread server-side after confirmation. The local log
// is emptied only once the delete resolves; on failure it is left untouched.
func (c *Controller) ClearChat(ctx context.Context, confirm func(types.UserSummary) bool) error {
	c.mu.Lock()
	sel := c.selected
	gen := c.generation
	c.mu.Unlock()
	if sel == nil {
		return ErrNoContactSelected
	}
	if confirm != nil && !confirm(*sel) {
		return ErrClearCancelled
	}

	if err := c.api.ClearChat(ctx, sel.ID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.messages = nil
	}
	c.mu.Unlock()
	c.refreshDirectory()
	return nil
}

func (c *Controller) refreshDirectory() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.dir.Refresh(ctx); err != nil {
		logging.ErrorLogger.Error("conversation refresh failed", zap.Error(err))
	}
}
