// learnex/directory/directory.go
package directory

import (
	"context"
	"strings"
	"sync"

	"learnex/learnex/types"
)

// API is the slice of the campus client the directory needs.
type API interface {
	Conversations(ctx context.Context) ([]types.Conversation, error)
	Recommended(ctx context.Context) ([]types.UserSummary, error)
	SearchUsers(ctx context.Context, query string) ([]types.UserSummary, error)
}

// Directory holds the conversation list and the recommended-contacts list.
// Every refresh replaces the conversation snapshot wholesale; there is no
// merge, the latest server snapshot always wins.
type Directory struct {
	api API

	mu            sync.RWMutex
	conversations []types.Conversation
	recommended   []types.UserSummary
	recFetched    bool
}

func New(api API) *Directory {
	return &Directory{api: api}
}

// Refresh replaces the in-memory conversation list with the server snapshot.
func (d *Directory) Refresh(ctx context.Context) error {
	convs, err := d.api.Conversations(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.conversations = convs
	d.mu.Unlock()
	return nil
}

func (d *Directory) Conversations() []types.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// Conversation looks up the directory entry for one counterpart.
func (d *Directory) Conversation(counterpartID string) (types.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, c := range d.conversations {
		if c.User.ID == counterpartID {
			return c, true
		}
	}
	return types.Conversation{}, false
}

// Recommended returns the role-complementary contact list, fetched once per
// mount and cached afterwards.
func (d *Directory) Recommended(ctx context.Context) ([]types.UserSummary, error) {
	d.mu.RLock()
	fetched := d.recFetched
	cached := d.recommended
	d.mu.RUnlock()
	if fetched {
		return cached, nil
	}

	users, err := d.api.Recommended(ctx)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.recommended = users
	d.recFetched = true
	d.mu.Unlock()
	return users, nil
}

// Search runs a server-side user search. A blank query short-circuits to an
// empty result without a network call.
func (d *Directory) Search(ctx context.Context, query string) ([]types.UserSummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return d.api.SearchUsers(ctx, query)
}

// Empty reports whether the user has no conversations yet; the UI shows the
// "no active conversations, start a new chat" state.
func (d *Directory) Empty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conversations) == 0
}
