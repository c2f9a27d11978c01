// learnex/api/client.go
package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	httputils "learnex/learnex/utils/http"

	"learnex/learnex/types"
)

// Client talks to the campus API server with bearer-token auth. All entities
// it returns are server-owned snapshots; nothing is cached here.
type Client struct {
	base  string
	token string
	hc    *http.Client
}

func NewClient(base, token string) *Client {
	return &Client{base: base, token: token, hc: http.DefaultClient}
}

// WithHTTPClient swaps the underlying HTTP client. Tests use this to count
// or stub requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.hc = hc
	return c
}

func (c *Client) Conversations(ctx context.Context) ([]types.Conversation, error) {
	var convs []types.Conversation
	err := httputils.GetJSON(ctx, c.hc, c.base+"/api/chat/conversations", c.token, &convs)
	return convs, err
}

func (c *Client) Recommended(ctx context.Context) ([]types.UserSummary, error) {
	var users []types.UserSummary
	err := httputils.GetJSON(ctx, c.hc, c.base+"/api/chat/recommended", c.token, &users)
	return users, err
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]types.UserSummary, error) {
	var users []types.UserSummary
	u := c.base + "/api/chat/search?q=" + url.QueryEscape(query)
	err := httputils.GetJSON(ctx, c.hc, u, c.token, &users)
	return users, err
}

// Thread returns the full ordered message history with one counterpart.
func (c *Client) Thread(ctx context.Context, userID string) ([]types.Message, error) {
	var msgs []types.Message
	err := httputils.GetJSON(ctx, c.hc, c.base+"/api/chat/"+url.PathEscape(userID), c.token, &msgs)
	return msgs, err
}

// ClearChat deletes the whole thread with userID server-side.
func (c *Client) ClearChat(ctx context.Context, userID string) error {
	return httputils.Delete(ctx, c.hc, c.base+"/api/chat/"+url.PathEscape(userID), c.token, nil)
}

// UploadAttachment streams a file plus optional caption; the server stores it
// and answers with the descriptor to announce over the transport.
func (c *Client) UploadAttachment(ctx context.Context, receiverID, content, fileName string, file io.Reader) (types.FileDescriptor, error) {
	var desc types.FileDescriptor
	fields := map[string]string{
		"receiverId": receiverID,
		"content":    content,
	}
	err := httputils.PostMultipart(ctx, c.hc, c.base+"/api/chat/upload", c.token, fields, "file", fileName, file, &desc)
	return desc, err
}

// AskChatbot sends one prompt to the campus assistant. Unauthenticated on the
// original server; the token is sent anyway when present.
func (c *Client) AskChatbot(ctx context.Context, message string) (string, error) {
	var resp struct {
		Text string `json:"text"`
	}
	err := httputils.PostJSON(ctx, c.hc, c.base+"/api/chatbot", c.token, map[string]string{"message": message}, &resp)
	return resp.Text, err
}

// VAPIDKey fetches the server's public key for push subscriptions.
func (c *Client) VAPIDKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"publicKey"`
	}
	err := httputils.GetJSON(ctx, c.hc, c.base+"/api/notifications/vapid-key", c.token, &resp)
	return resp.PublicKey, err
}

// PushSubscription is the browser PushSubscription shape the server expects.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (c *Client) SubscribePush(ctx context.Context, sub PushSubscription) error {
	return httputils.PostJSON(ctx, c.hc, c.base+"/api/notifications/subscribe", c.token, sub, nil)
}
